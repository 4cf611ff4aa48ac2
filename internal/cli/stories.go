package cli

import (
	"errors"
	"fmt"
	"strings"

	"storyline-cli/internal/config"
	"storyline-cli/internal/model"
	"storyline-cli/internal/mutate"
	"storyline-cli/internal/publish"
	"storyline-cli/internal/store"
	"storyline-cli/internal/tree"

	"github.com/spf13/cobra"
)

func newStoriesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stories",
		Aliases: []string{"story"},
		Short:   "Create and inspect stories",
	}
	cmd.AddCommand(newStoriesCreateCmd(app))
	cmd.AddCommand(newStoriesListCmd(app))
	cmd.AddCommand(newStoriesShowCmd(app))
	cmd.AddCommand(newStoriesExportCmd(app))
	return cmd
}

func newStoriesCreateCmd(app *App) *cobra.Command {
	var levels string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a story with its root node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := model.DefaultLevelConfig()
			if levels != "" {
				c, err := config.LoadLevelPreset(levels)
				if err != nil {
					return writeErr(cmd, err)
				}
				cfg = c
			}
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := s.CreateStory(cmd.Context(), args[0], cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			sum, err := summarize(cmd, s, st)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": sum})
		},
	}
	cmd.Flags().StringVar(&levels, "levels", "", "TOML level naming preset (default: Story/Book/Part/Chapter/Scene)")
	return cmd
}

func newStoriesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stories (oldest first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			stories, err := s.ListStories(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": stories})
		},
	}
}

func newStoriesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [story-id]",
		Short: "Show a story with its root and counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			storyID, err := app.storyFor(cmd.Context(), s, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := s.GetStory(cmd.Context(), storyID)
			if errors.Is(err, store.ErrNotFound) {
				return writeErr(cmd, mutate.NotFoundError{Kind: "story", ID: storyID})
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			sum, err := summarize(cmd, s, st)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": sum})
		},
	}
}

func newStoriesExportCmd(app *App) *cobra.Command {
	var toDir string
	var html, overwrite, render bool
	var width int
	cmd := &cobra.Command{
		Use:   "export [story-id]",
		Short: "Export the story outline as Markdown (stdout, or files with --to)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			storyID, err := app.storyFor(cmd.Context(), s, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := s.GetStory(cmd.Context(), storyID)
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

			if strings.TrimSpace(toDir) != "" {
				res, err := publish.WriteStory(st, ix, toDir, publish.WriteOptions{Overwrite: overwrite, HTML: html})
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"data": res})
			}

			md := publish.RenderStoryMarkdown(st, ix)
			if render {
				md, err = publish.RenderTerminal(md, width, publish.TermStyle())
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), md)
			return err
		},
	}
	cmd.Flags().StringVar(&toDir, "to", "", "Write <story-id>.md into this directory instead of stdout")
	cmd.Flags().BoolVar(&html, "html", false, "With --to, also write <story-id>.html")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&render, "render", false, "Render the Markdown for the terminal")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --render")
	return cmd
}

type storySummary struct {
	model.Story
	RootID string `json:"rootId"`
	Nodes  int    `json:"nodes"`
	Events int    `json:"events"`
}

func summarize(cmd *cobra.Command, s store.Store, st model.Story) (storySummary, error) {
	nodes, err := s.ListNodes(cmd.Context(), st.ID)
	if err != nil {
		return storySummary{}, err
	}
	events, err := s.ListEvents(cmd.Context(), st.ID, store.EventFilter{})
	if err != nil {
		return storySummary{}, err
	}
	sum := storySummary{Story: st, Nodes: len(nodes), Events: len(events)}
	if root, ok := tree.Build(nodes, nil).Root(); ok {
		sum.RootID = root.Node.ID
	}
	return sum, nil
}
