// Package tree builds a derived parent -> children index over a story's flat
// node and event lists. Nodes only reference their parent by id; the index
// is rebuilt on demand and never kept live.
package tree

import (
	"fmt"
	"sort"

	"storyline-cli/internal/model"
	"storyline-cli/internal/position"
)

// Entry is a node enriched with its ordered children and placed events.
type Entry struct {
	Node     model.Node
	Children []*Entry
	Events   []model.Event
}

type Index struct {
	byID     map[string]*Entry
	roots    []*Entry
	unplaced []model.Event
}

// Build indexes nodes and events in one pass over each list. Children are
// sorted by position and events by (order, updatedAt, id).
func Build(nodes []model.Node, events []model.Event) *Index {
	ix := &Index{byID: make(map[string]*Entry, len(nodes))}
	for _, n := range nodes {
		ix.byID[n.ID] = &Entry{Node: n}
	}
	for _, n := range nodes {
		e := ix.byID[n.ID]
		if n.ParentID == nil {
			ix.roots = append(ix.roots, e)
			continue
		}
		parent, ok := ix.byID[*n.ParentID]
		if !ok {
			// Dangling parent: treat as a root so it stays reachable.
			ix.roots = append(ix.roots, e)
			continue
		}
		parent.Children = append(parent.Children, e)
	}
	for _, ev := range events {
		if ev.NodeID == nil {
			ix.unplaced = append(ix.unplaced, ev)
			continue
		}
		if e, ok := ix.byID[*ev.NodeID]; ok {
			e.Events = append(e.Events, ev)
		}
	}

	SortEntries(ix.roots)
	for _, e := range ix.byID {
		SortEntries(e.Children)
		SortEvents(e.Events)
	}
	SortEvents(ix.unplaced)
	return ix
}

func (ix *Index) Node(id string) (*Entry, bool) {
	e, ok := ix.byID[id]
	return e, ok
}

// Root returns the story root (level 1, no parent).
func (ix *Index) Root() (*Entry, bool) {
	for _, e := range ix.roots {
		if e.Node.IsRoot() {
			return e, true
		}
	}
	return nil, false
}

// Unplaced returns events with no node.
func (ix *Index) Unplaced() []model.Event { return ix.unplaced }

// Parent returns e's parent entry, if any.
func (ix *Index) Parent(e *Entry) (*Entry, bool) {
	if e == nil || e.Node.ParentID == nil {
		return nil, false
	}
	return ix.Node(*e.Node.ParentID)
}

// Siblings returns the nodes sharing id's parent and level (id included),
// sorted by their value at the level's slot.
func (ix *Index) Siblings(id string) []*Entry {
	e, ok := ix.byID[id]
	if !ok {
		return nil
	}
	pool := ix.roots
	if p, ok := ix.Parent(e); ok {
		pool = p.Children
	}
	out := make([]*Entry, 0, len(pool))
	for _, s := range pool {
		if s.Node.Level == e.Node.Level {
			out = append(out, s)
		}
	}
	SortSiblings(out, position.LevelIndex(e.Node.Level))
	return out
}

// SiblingIndex returns id's siblings and id's index among them (-1 if absent).
func (ix *Index) SiblingIndex(id string) ([]*Entry, int) {
	sibs := ix.Siblings(id)
	for i, s := range sibs {
		if s.Node.ID == id {
			return sibs, i
		}
	}
	return sibs, -1
}

// Subtree returns id and all of its descendants, depth first.
func (ix *Index) Subtree(id string) []*Entry {
	e, ok := ix.byID[id]
	if !ok {
		return nil
	}
	var out []*Entry
	var walk func(*Entry)
	walk = func(x *Entry) {
		out = append(out, x)
		for _, ch := range x.Children {
			walk(ch)
		}
	}
	walk(e)
	return out
}

// Row is one line of a flattened outline.
type Row struct {
	Entry *Entry
	Depth int
}

// Flatten returns every node depth first in position order.
func (ix *Index) Flatten() []Row {
	var out []Row
	var walk func(*Entry, int)
	walk = func(e *Entry, depth int) {
		out = append(out, Row{Entry: e, Depth: depth})
		for _, ch := range e.Children {
			walk(ch, depth+1)
		}
	}
	for _, r := range ix.roots {
		walk(r, 0)
	}
	return out
}

// SortSiblings sorts same-level entries by their value at idx. Equal values
// (a data anomaly) fall back to the full vector, creation time and id so the
// order is still deterministic.
func SortSiblings(xs []*Entry, idx int) {
	sort.SliceStable(xs, func(i, j int) bool {
		return compareEntries(xs[i], xs[j], idx) < 0
	})
}

// SortEntries sorts entries that may sit on different levels (skip-level
// children) by full position vector.
func SortEntries(xs []*Entry) {
	sort.SliceStable(xs, func(i, j int) bool {
		return compareEntries(xs[i], xs[j], -1) < 0
	})
}

func compareEntries(a, b *Entry, idx int) int {
	if idx >= 0 {
		if c := position.Compare(a.Node.Position, b.Node.Position, idx); c != 0 {
			return c
		}
	}
	if c := position.CompareAll(a.Node.Position, b.Node.Position); c != 0 {
		return c
	}
	if a.Node.CreatedAt.Before(b.Node.CreatedAt) {
		return -1
	}
	if a.Node.CreatedAt.After(b.Node.CreatedAt) {
		return 1
	}
	switch {
	case a.Node.ID < b.Node.ID:
		return -1
	case a.Node.ID > b.Node.ID:
		return 1
	}
	return 0
}

// SortEvents sorts events by order, then last-modified time, then id.
func SortEvents(evs []model.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		return CompareEvents(evs[i], evs[j]) < 0
	})
}

func CompareEvents(a, b model.Event) int {
	if a.Order != b.Order {
		if a.Order < b.Order {
			return -1
		}
		return 1
	}
	if a.UpdatedAt.Before(b.UpdatedAt) {
		return -1
	}
	if a.UpdatedAt.After(b.UpdatedAt) {
		return 1
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// LevelName returns the configured name for level, falling back to
// "Level N" for unnamed levels.
func LevelName(cfg model.LevelConfig, level int) string {
	if n := cfg.Name(level); n != "" {
		return n
	}
	return fmt.Sprintf("Level %d", level)
}

// NodeName derives the display name of a node at level holding value.
// The root is named after level 1 alone.
func NodeName(cfg model.LevelConfig, level, value int) string {
	if level == 1 {
		return LevelName(cfg, 1)
	}
	return fmt.Sprintf("%s %d", LevelName(cfg, level), value)
}
