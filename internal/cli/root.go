package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storyline-cli/internal/config"
	"storyline-cli/internal/format"
	"storyline-cli/internal/logging"
	"storyline-cli/internal/mutate"
	"storyline-cli/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	ConfigFile string
	DB         string
	Story      string
	Format     string
	LogLevel   string
	PrettyJSON bool

	cfg   config.Config
	out   format.Format
	log   *zap.Logger
	store *store.SQLite
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "storyline",
		Short:        "Storyline: narrative timeline hierarchy CLI + TUI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a story and browse it
  storyline stories create "The Long Road"
  storyline

  # Build the hierarchy
  storyline nodes append <root-id>
  storyline nodes insert <node-id> --before
  storyline nodes reorder <node-id> down

  # Single-level layout (shortcut for: storyline layout <node-id>)
  storyline node-k3v9q2aa
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app, "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.init(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.close()
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.ConfigFile, "config", "", "Config file (default: ./.storyline.toml, then ~/.storyline.toml)")
	pf.StringVar(&app.DB, "db", "", "SQLite database path (default: ~/.storyline/storyline.sqlite)")
	pf.StringVar(&app.Story, "story", "", "Story id used when a command cannot infer it")
	pf.StringVar(&app.Format, "format", "", "Output format (json|edn|toml)")
	pf.StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	pf.BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print output")

	cmd.AddCommand(newStoriesCmd(app))
	cmd.AddCommand(newNodesCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newLayoutCmd(app))
	cmd.AddCommand(newChangesCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// init resolves configuration (flags > env > file > defaults) and builds the
// logger. The database is opened lazily by the commands that need it.
func (app *App) init(cmd *cobra.Command) error {
	v, err := config.New(app.ConfigFile)
	if err != nil {
		return writeErr(cmd, err)
	}
	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"db":        "db",
		"story":     "story",
		"format":    "format",
		"log.level": "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return writeErr(cmd, err)
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return writeErr(cmd, err)
	}
	out, err := format.Parse(cfg.Format)
	if err != nil {
		return writeErr(cmd, err)
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return writeErr(cmd, err)
	}
	app.cfg, app.out, app.log = cfg, out, log
	return nil
}

func (app *App) close() error {
	var err error
	if app.store != nil {
		err = app.store.Close()
		app.store = nil
	}
	if app.log != nil {
		_ = app.log.Sync()
	}
	return err
}

func (app *App) logger() *zap.Logger {
	if app.log == nil {
		return zap.NewNop()
	}
	return app.log
}

func (app *App) open(ctx context.Context) (*store.SQLite, error) {
	if app.store != nil {
		return app.store, nil
	}
	s, err := store.OpenSQLite(ctx, app.cfg.DB, app.logger())
	if err != nil {
		return nil, err
	}
	app.store = s
	return s, nil
}

// storyFor returns the story owning id (a node, event or story id). With no
// id it falls back to --story / config, then to the only story if there is
// exactly one.
func (app *App) storyFor(ctx context.Context, s store.Store, id string) (string, error) {
	if id != "" {
		storyID, err := s.StoryOf(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return "", mutate.NotFoundError{Kind: kindOf(id), ID: id}
		}
		return storyID, err
	}
	if app.cfg.Story != "" {
		if _, err := s.GetStory(ctx, app.cfg.Story); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", mutate.NotFoundError{Kind: "story", ID: app.cfg.Story}
			}
			return "", err
		}
		return app.cfg.Story, nil
	}
	stories, err := s.ListStories(ctx)
	if err != nil {
		return "", err
	}
	switch len(stories) {
	case 0:
		return "", errors.New("no stories yet; run `storyline stories create <name>`")
	case 1:
		return stories[0].ID, nil
	default:
		return "", errors.New("several stories exist; pass --story <story-id> (see `storyline stories list`)")
	}
}

func kindOf(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return "id"
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.out, app.PrettyJSON)
}

// writeNoop reports an operation that had nothing to do (a reorder past the
// first or last sibling). It is not an error.
func writeNoop(cmd *cobra.Command, app *App, data any, err error) error {
	return writeOut(cmd, app, map[string]any{
		"data": data,
		"meta": map[string]any{"noop": true, "reason": err.Error()},
	})
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
