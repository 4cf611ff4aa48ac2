package cli

import (
	"storyline-cli/internal/layout"
	"storyline-cli/internal/mutate"
	"storyline-cli/internal/store"
	"storyline-cli/internal/tree"

	"github.com/spf13/cobra"
)

func newLayoutCmd(app *App) *cobra.Command {
	var gap int
	cmd := &cobra.Command{
		Use:   "layout <node-id>",
		Short: "Compute the single-level layout of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			storyID, err := app.storyFor(cmd.Context(), s, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			nodes, err := s.ListNodes(cmd.Context(), storyID)
			if err != nil {
				return writeErr(cmd, err)
			}
			events, err := s.ListEvents(cmd.Context(), storyID, store.EventFilter{})
			if err != nil {
				return writeErr(cmd, err)
			}
			ix := tree.Build(nodes, events)
			focus, ok := ix.Node(args[0])
			if !ok {
				return writeErr(cmd, mutate.NotFoundError{Kind: "node", ID: args[0]})
			}
			if gap <= 0 {
				gap = app.cfg.Layout.Gap
			}
			items := layout.Compute(ix, args[0], layout.Options{Gap: gap})
			return writeOut(cmd, app, map[string]any{
				"data": items,
				"meta": map[string]any{
					"focus": focus.Node,
					"gap":   gap,
				},
			})
		},
	}
	cmd.Flags().IntVar(&gap, "gap", 0, "Spacing unit (default: layout.gap from config)")
	return cmd
}
