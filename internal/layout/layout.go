// Package layout computes the single-level timeline view of a node: its
// events on the negative x axis, its sub-levels on the positive x axis,
// dividers between regions, and navigation to the neighbouring siblings.
//
// The computation is pure. It reads nothing but its arguments, keeps no
// state between calls and is safe to call concurrently.
package layout

import (
	"storyline-cli/internal/model"
	"storyline-cli/internal/tree"
)

// DefaultGap is the spacing unit between adjacent items.
const DefaultGap = 120

type Kind string

const (
	KindEvent      Kind = "event"
	KindSubLevel   Kind = "subLevel"
	KindDivider    Kind = "divider"
	KindNavigation Kind = "navigation"
)

// Lane is the fixed vertical band an item is drawn on.
type Lane string

const (
	LaneMain  Lane = "main"
	LaneLevel Lane = "level"
	LaneLabel Lane = "label"
)

type DividerKind string

const (
	Primary   DividerKind = "primary"
	Secondary DividerKind = "secondary"
)

type NavDirection string

const (
	Prev NavDirection = "prev"
	Next NavDirection = "next"
)

// Item is one drawable element. Items are unordered; X is absolute.
type Item struct {
	Kind    Kind         `json:"kind"`
	X       int          `json:"x"`
	Lane    Lane         `json:"lane"`
	Label   string       `json:"label,omitempty"`
	NodeID  string       `json:"nodeId,omitempty"`
	EventID string       `json:"eventId,omitempty"`
	Divider DividerKind  `json:"divider,omitempty"`
	Nav     NavDirection `json:"direction,omitempty"`
	// Placeholder marks a navigation item with no sibling behind it.
	Placeholder bool `json:"isPlaceholder,omitempty"`
}

type Options struct {
	Gap int
}

func (o Options) gap() int {
	if o.Gap <= 0 {
		return DefaultGap
	}
	return o.Gap
}

// ComputeSingleLevel lays out the node focusID. An unknown focus yields an
// empty, non-nil slice.
func ComputeSingleLevel(focusID string, nodes []model.Node, events []model.Event, opts Options) []Item {
	return Compute(tree.Build(nodes, events), focusID, opts)
}

// Compute is ComputeSingleLevel over an already built index.
func Compute(ix *tree.Index, focusID string, opts Options) []Item {
	out := []Item{}
	focus, ok := ix.Node(focusID)
	if !ok {
		return out
	}
	gap := opts.gap()

	var prev, next *tree.Entry
	if sibs, i := ix.SiblingIndex(focusID); i >= 0 {
		if i > 0 {
			prev = sibs[i-1]
		}
		if i+1 < len(sibs) {
			next = sibs[i+1]
		}
	}

	evs := focus.Events
	n := len(evs)
	for i, ev := range evs {
		out = append(out, Item{
			Kind:    KindEvent,
			X:       -gap - (n-1-i)*gap,
			Lane:    LaneMain,
			Label:   ev.Title,
			EventID: ev.ID,
		})
	}

	children := focus.Children
	for i, ch := range children {
		x := gap + i*2*gap
		if i > 0 {
			out = append(out, Item{Kind: KindDivider, X: x - gap, Lane: LaneMain, Divider: Secondary})
		}
		out = append(out, Item{
			Kind:   KindSubLevel,
			X:      x,
			Lane:   LaneLevel,
			Label:  ch.Node.Label(),
			NodeID: ch.Node.ID,
		})
	}

	if n > 0 && len(children) > 0 {
		out = append(out, Item{Kind: KindDivider, X: 0, Lane: LaneMain, Divider: Primary})
	}

	left := -gap
	if n > 0 {
		left = -gap - (n-1)*gap - gap
	}
	right := 0
	if c := len(children); c > 0 {
		right = gap + (c-1)*2*gap + gap
	}
	out = append(out,
		Item{Kind: KindDivider, X: left, Lane: LaneMain, Divider: Primary},
		Item{Kind: KindDivider, X: right, Lane: LaneMain, Divider: Primary},
		navItem(prev, Prev, left-gap),
		navItem(next, Next, right+gap),
	)
	return out
}

func navItem(sib *tree.Entry, dir NavDirection, x int) Item {
	it := Item{Kind: KindNavigation, X: x, Lane: LaneLabel, Nav: dir}
	if sib == nil {
		it.Placeholder = true
		it.Label = "Start"
		if dir == Next {
			it.Label = "End"
		}
		return it
	}
	it.NodeID = sib.Node.ID
	it.Label = sib.Node.Label()
	return it
}
