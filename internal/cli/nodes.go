package cli

import (
	"errors"
	"fmt"
	"strings"

	"storyline-cli/internal/mutate"
	"storyline-cli/internal/position"
	"storyline-cli/internal/store"
	"storyline-cli/internal/tree"

	"github.com/spf13/cobra"
)

func newNodesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nodes",
		Aliases: []string{"node"},
		Short:   "Edit the story hierarchy",
	}
	cmd.AddCommand(newNodesListCmd(app))
	cmd.AddCommand(newNodesTreeCmd(app))
	cmd.AddCommand(newNodesAppendCmd(app))
	cmd.AddCommand(newNodesInsertCmd(app))
	cmd.AddCommand(newNodesReorderCmd(app))
	cmd.AddCommand(newNodesDeleteCmd(app))
	cmd.AddCommand(newNodesRenameCmd(app))
	return cmd
}

func newNodesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List nodes in position order",
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
			nodes, err := s.ListNodes(cmd.Context(), storyID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": nodes})
		},
	}
}

type outlineRow struct {
	ID       string            `json:"id"`
	Depth    int               `json:"depth"`
	Level    int               `json:"level"`
	Position position.Position `json:"position"`
	Name     string            `json:"name"`
	Title    string            `json:"title,omitempty"`
	Events   int               `json:"events"`
}

func newNodesTreeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the hierarchy as a depth-first outline",
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
			nodes, err := s.ListNodes(cmd.Context(), storyID)
			if err != nil {
				return writeErr(cmd, err)
			}
			events, err := s.ListEvents(cmd.Context(), storyID, store.EventFilter{})
			if err != nil {
				return writeErr(cmd, err)
			}
			rows := []outlineRow{}
			for _, r := range tree.Build(nodes, events).Flatten() {
				n := r.Entry.Node
				rows = append(rows, outlineRow{
					ID:       n.ID,
					Depth:    r.Depth,
					Level:    n.Level,
					Position: n.Position,
					Name:     n.Name,
					Title:    n.Title,
					Events:   len(r.Entry.Events),
				})
			}
			return writeOut(cmd, app, map[string]any{"data": rows})
		},
	}
}

func newNodesAppendCmd(app *App) *cobra.Command {
	var level int
	var title string
	cmd := &cobra.Command{
		Use:   "append <parent-id>",
		Short: "Append a child node (next enabled level unless --level)",
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
			n, err := mutate.NewHierarchy(s, app.logger()).Append(cmd.Context(), mutate.AppendRequest{
				StoryID:  storyID,
				ParentID: args[0],
				Level:    level,
				Title:    title,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}
	cmd.Flags().IntVar(&level, "level", 0, "Explicit level (2..5, deeper than the parent)")
	cmd.Flags().StringVar(&title, "title", "", "Node title")
	return cmd
}

func newNodesInsertCmd(app *App) *cobra.Command {
	var before, after bool
	var title string
	cmd := &cobra.Command{
		Use:   "insert <target-id>",
		Short: "Insert a sibling before or after a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if before == after {
				return writeErr(cmd, errors.New("provide exactly one of --before or --after"))
			}
			where := mutate.Before
			if after {
				where = mutate.After
			}
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			storyID, err := app.storyFor(cmd.Context(), s, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := mutate.NewHierarchy(s, app.logger()).InsertSibling(cmd.Context(), mutate.InsertRequest{
				StoryID:  storyID,
				TargetID: args[0],
				Where:    where,
				Title:    title,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}
	cmd.Flags().BoolVar(&before, "before", false, "Insert before the target")
	cmd.Flags().BoolVar(&after, "after", false, "Insert after the target")
	cmd.Flags().StringVar(&title, "title", "", "Node title")
	return cmd
}

func newNodesReorderCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "reorder <node-id> up|down",
		Short:     "Swap a node (with its subtree) with its neighbour",
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
			res, err := mutate.NewHierarchy(s, app.logger()).Reorder(cmd.Context(), mutate.ReorderRequest{
				StoryID:   storyID,
				NodeID:    args[0],
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

func newNodesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <node-id>",
		Short: "Delete a leaf node; its events move to the root",
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
			res, err := mutate.NewHierarchy(s, app.logger()).Delete(cmd.Context(), storyID, args[0])
			if store.IsConstraintViolation(err, store.ConstraintForeignKey) {
				return writeErr(cmd, fmt.Errorf("node %s still has children; delete leaves first: %w", args[0], err))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
}

func newNodesRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <node-id> <title>",
		Short: "Set a node's title",
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
			n, err := mutate.NewHierarchy(s, app.logger()).Rename(cmd.Context(), storyID, args[0], args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}
}
