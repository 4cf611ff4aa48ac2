package cli

import (
	"errors"
	"strings"

	"storyline-cli/internal/mutate"
	"storyline-cli/internal/store"

	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"event"},
		Short:   "Create events and place them on nodes",
	}
	cmd.AddCommand(newEventsCreateCmd(app))
	cmd.AddCommand(newEventsListCmd(app))
	cmd.AddCommand(newEventsDeleteCmd(app))
	cmd.AddCommand(newEventsPlaceCmd(app))
	cmd.AddCommand(newEventsUnplaceCmd(app))
	cmd.AddCommand(newEventsReorderCmd(app))
	return cmd
}

func newEventsCreateCmd(app *App) *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create an event on the root (or on --node)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			storyID, err := app.storyFor(cmd.Context(), s, node)
			if err != nil {
				return writeErr(cmd, err)
			}
			ev, err := mutate.CreateEvent(cmd.Context(), s, app.logger(), storyID, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if node != "" {
				ev, err = mutate.NewPlacement(s, app.logger()).Place(cmd.Context(), mutate.PlaceRequest{
					StoryID: storyID,
					EventID: ev.ID,
					NodeID:  node,
				})
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": ev})
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "Place the new event on this node")
	return cmd
}

func newEventsListCmd(app *App) *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events (grouped by node, in order)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			storyID, err := app.storyFor(cmd.Context(), s, node)
			if err != nil {
				return writeErr(cmd, err)
			}
			evs, err := s.ListEvents(cmd.Context(), storyID, store.EventFilter{NodeID: node})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": evs})
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "Only events placed on this node")
	return cmd
}

func newEventsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <event-id>",
		Short: "Delete an event",
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
			if err := s.DeleteEvent(cmd.Context(), storyID, args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					err = mutate.NotFoundError{Kind: "event", ID: args[0]}
				}
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": args[0], "deleted": true}})
		},
	}
}

func newEventsPlaceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "place <event-id> <node-id>",
		Short: "Place an event at the end of a node's events",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			storyID, err := app.storyFor(cmd.Context(), s, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ev, err := mutate.NewPlacement(s, app.logger()).Place(cmd.Context(), mutate.PlaceRequest{
				StoryID: storyID,
				EventID: args[0],
				NodeID:  args[1],
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": ev})
		},
	}
}

func newEventsUnplaceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unplace <event-id>",
		Short: "Move an event back to the story root",
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
			ev, err := mutate.NewPlacement(s, app.logger()).Unplace(cmd.Context(), storyID, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": ev})
		},
	}
}

func newEventsReorderCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "reorder <event-id> up|down",
		Short:     "Swap an event with its neighbour on the same node",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			storyID, err := app.storyFor(cmd.Context(), s, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := mutate.NewPlacement(s, app.logger()).ReorderEvent(cmd.Context(), mutate.ReorderEventRequest{
				StoryID:   storyID,
				EventID:   args[0],
				Direction: mutate.Direction(strings.ToLower(args[1])),
			})
			if mutate.IsBoundary(err) {
				return writeNoop(cmd, app, mutate.ReorderResult{ID: args[0]}, err)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
}
