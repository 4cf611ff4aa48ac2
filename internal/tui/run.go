package tui

import (
	"context"

	"storyline-cli/internal/store"
	"storyline-cli/internal/watch"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
)

type Options struct {
	StoryID string
	// FocusID is the node shown first; empty means the story root.
	FocusID string
	Gap     int
	// DBPath, when set, is watched so writes from other processes (a second
	// terminal running the CLI) show up without pressing r.
	DBPath string
	Log    *zap.Logger
}

func Run(ctx context.Context, s store.Store, opts Options) error {
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	m := newAppModel(ctx, s, opts)
	if opts.DBPath != "" {
		w, err := watch.New(opts.DBPath)
		if err != nil {
			m.log.Warn("watch disabled", zap.String("path", opts.DBPath), zap.Error(err))
		} else {
			defer w.Close()
			m.changes = w.Changes
		}
	}

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
