package tui

import (
	"context"
	"sort"

	"storyline-cli/internal/layout"
	"storyline-cli/internal/model"
	"storyline-cli/internal/mutate"
	"storyline-cli/internal/store"
	"storyline-cli/internal/tree"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type storeChangedMsg struct{}

type appModel struct {
	ctx   context.Context
	store store.Store
	log   *zap.Logger

	hierarchy *mutate.Hierarchy
	placement *mutate.Placement

	storyID string
	gap     int
	story   model.Story
	ix      *tree.Index

	focusID string
	items   []layout.Item
	// selectable holds indexes into items, ordered by X.
	selectable []int
	cursor     int

	width  int
	height int

	keys  keyMap
	help  help.Model
	flash string

	changes <-chan struct{}
}

func newAppModel(ctx context.Context, s store.Store, opts Options) appModel {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := appModel{
		ctx:       ctx,
		store:     s,
		log:       log,
		hierarchy: mutate.NewHierarchy(s, log),
		placement: mutate.NewPlacement(s, log),
		storyID:   opts.StoryID,
		gap:       opts.Gap,
		focusID:   opts.FocusID,
		keys:      defaultKeyMap(),
		help:      help.New(),
		width:     80,
		height:    24,
	}
	m.reload()
	return m
}

func (m appModel) Init() tea.Cmd { return waitForChange(m.changes) }

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case storeChangedMsg:
		// Another process wrote to the database.
		m.reload()
		return m, waitForChange(m.changes)

	case tea.KeyMsg:
		m.flash = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Reload):
			m.reload()
		case key.Matches(msg, m.keys.Left):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Right):
			if m.cursor < len(m.selectable)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Enter):
			if it, ok := m.selected(); ok && it.NodeID != "" {
				m.focus(it.NodeID, "")
			}
		case key.Matches(msg, m.keys.Back):
			m.up()
		case key.Matches(msg, m.keys.Earlier):
			m.move(mutate.Up)
		case key.Matches(msg, m.keys.Later):
			m.move(mutate.Down)
		}
	}
	return m, nil
}

func (m appModel) selected() (layout.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.selectable) {
		return layout.Item{}, false
	}
	return m.items[m.selectable[m.cursor]], true
}

func (m *appModel) reload() {
	keep := ""
	if it, ok := m.selected(); ok {
		keep = itemKey(it)
	}
	if m.story.ID == "" {
		st, err := m.store.GetStory(m.ctx, m.storyID)
		if err != nil {
			m.fail(err)
			return
		}
		m.story = st
	}
	nodes, err := m.store.ListNodes(m.ctx, m.storyID)
	if err != nil {
		m.fail(err)
		return
	}
	events, err := m.store.ListEvents(m.ctx, m.storyID, store.EventFilter{})
	if err != nil {
		m.fail(err)
		return
	}
	m.ix = tree.Build(nodes, events)
	if _, ok := m.ix.Node(m.focusID); !ok {
		// Focus was deleted (or never set); fall back to the root.
		m.focusID = ""
		if root, ok := m.ix.Root(); ok {
			m.focusID = root.Node.ID
		}
	}
	m.focus(m.focusID, keep)
}

// focus lays out nodeID and puts the cursor on the item keyed keep, or on the
// first item when keep is gone.
func (m *appModel) focus(nodeID, keep string) {
	if m.ix == nil {
		return
	}
	m.focusID = nodeID
	m.items = layout.Compute(m.ix, nodeID, layout.Options{Gap: m.gap})
	sort.SliceStable(m.items, func(i, j int) bool { return m.items[i].X < m.items[j].X })

	m.selectable = nil
	for i, it := range m.items {
		if selectable(it) {
			m.selectable = append(m.selectable, i)
		}
	}
	m.cursor = 0
	for i, idx := range m.selectable {
		if keep != "" && itemKey(m.items[idx]) == keep {
			m.cursor = i
			return
		}
	}
	// Start on the first event or sub-level rather than the prev arrow.
	for i, idx := range m.selectable {
		if m.items[idx].Kind != layout.KindNavigation {
			m.cursor = i
			return
		}
	}
}

func (m *appModel) up() {
	e, ok := m.ix.Node(m.focusID)
	if !ok {
		return
	}
	p, ok := m.ix.Parent(e)
	if !ok {
		m.flash = "already at the top"
		return
	}
	m.focus(p.Node.ID, itemKey(layout.Item{Kind: layout.KindSubLevel, NodeID: e.Node.ID}))
}

// move reorders the selected event among the focus node's events, or the
// selected sub-level among its siblings.
func (m *appModel) move(dir mutate.Direction) {
	it, ok := m.selected()
	if !ok {
		return
	}
	var err error
	switch it.Kind {
	case layout.KindEvent:
		_, err = m.placement.ReorderEvent(m.ctx, mutate.ReorderEventRequest{StoryID: m.storyID, EventID: it.EventID, Direction: dir})
	case layout.KindSubLevel:
		_, err = m.hierarchy.Reorder(m.ctx, mutate.ReorderRequest{StoryID: m.storyID, NodeID: it.NodeID, Direction: dir})
	default:
		return
	}
	if err != nil {
		if mutate.IsBoundary(err) {
			m.flash = err.Error()
			return
		}
		m.fail(err)
		return
	}
	m.reload()
}

func (m *appModel) fail(err error) {
	m.log.Warn("tui", zap.Error(err))
	m.flash = err.Error()
}

func selectable(it layout.Item) bool {
	switch it.Kind {
	case layout.KindEvent, layout.KindSubLevel:
		return true
	case layout.KindNavigation:
		return !it.Placeholder
	}
	return false
}

func itemKey(it layout.Item) string {
	if it.EventID != "" {
		return it.EventID
	}
	return string(it.Kind) + ":" + it.NodeID
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}
