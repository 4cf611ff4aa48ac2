package cli

import (
	"storyline-cli/internal/tui"

	"github.com/spf13/cobra"
)

func newTUICmd(app *App) *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse the story one level at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app, node)
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "Start focused on this node (default: the root)")
	return cmd
}

func runTUI(cmd *cobra.Command, app *App, node string) error {
	s, err := app.open(cmd.Context())
	if err != nil {
		return writeErr(cmd, err)
	}
	storyID, err := app.storyFor(cmd.Context(), s, node)
	if err != nil {
		return writeErr(cmd, err)
	}
	return tui.Run(cmd.Context(), s, tui.Options{
		StoryID: storyID,
		FocusID: node,
		Gap:     app.cfg.Layout.Gap,
		DBPath:  s.Path(),
		Log:     app.logger(),
	})
}
