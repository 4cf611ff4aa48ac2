package cli

import (
	"github.com/spf13/cobra"
)

func newChangesCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show the story's change log (newest first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			storyID, err := app.storyFor(cmd.Context(), s, "")
			if err != nil {
				return writeErr(cmd, err)
			}
			changes, err := s.ListChanges(cmd.Context(), storyID, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": changes})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Max changes to return")
	return cmd
}
