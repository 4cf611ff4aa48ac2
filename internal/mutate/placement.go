package mutate

import (
	"context"
	"strings"

	"storyline-cli/internal/model"
	"storyline-cli/internal/store"
	"storyline-cli/internal/tree"

	"go.uber.org/zap"
)

// Placement attaches events to nodes and orders them within a node.
type Placement struct {
	store store.NodeStore
	log   *zap.Logger
}

func NewPlacement(st store.NodeStore, log *zap.Logger) *Placement {
	if log == nil {
		log = zap.NewNop()
	}
	return &Placement{store: st, log: log}
}

type PlaceRequest struct {
	StoryID string `validate:"required"`
	EventID string `validate:"required"`
	NodeID  string `validate:"required"`
}

// Place puts an event at the end of a node's event list.
func (p *Placement) Place(ctx context.Context, req PlaceRequest) (model.Event, error) {
	if err := check(req); err != nil {
		return model.Event{}, err
	}
	ix, _, _, err := loadIndex(ctx, p.store, req.StoryID, true)
	if err != nil {
		return model.Event{}, err
	}
	node, ok := ix.Node(req.NodeID)
	if !ok {
		return model.Event{}, NotFoundError{Kind: "node", ID: req.NodeID}
	}
	ev, err := findEvent(ctx, p.store, req.StoryID, req.EventID)
	if err != nil {
		return model.Event{}, err
	}
	nodeID := node.Node.ID
	order := maxOrder(node.Events, ev.ID) + 1
	m := store.PlaceEvent(ev.ID, &nodeID, order)
	if err := applyBatch(ctx, p.store, p.log, req.StoryID, "event.place", []store.Mutation{m}); err != nil {
		return model.Event{}, err
	}
	return findEvent(ctx, p.store, req.StoryID, ev.ID)
}

// Unplace moves an event back to the story root, at the end of the root's
// event list. Unplaced is modelled as placed on the root.
func (p *Placement) Unplace(ctx context.Context, storyID, eventID string) (model.Event, error) {
	if err := check(struct {
		StoryID string `validate:"required"`
		EventID string `validate:"required"`
	}{storyID, eventID}); err != nil {
		return model.Event{}, err
	}
	ix, _, _, err := loadIndex(ctx, p.store, storyID, true)
	if err != nil {
		return model.Event{}, err
	}
	root, ok := ix.Root()
	if !ok {
		return model.Event{}, NotFoundError{Kind: "root", ID: storyID}
	}
	ev, err := findEvent(ctx, p.store, storyID, eventID)
	if err != nil {
		return model.Event{}, err
	}
	rootID := root.Node.ID
	m := store.PlaceEvent(ev.ID, &rootID, maxOrder(root.Events, ev.ID)+1)
	if err := applyBatch(ctx, p.store, p.log, storyID, "event.unplace", []store.Mutation{m}); err != nil {
		return model.Event{}, err
	}
	return findEvent(ctx, p.store, storyID, ev.ID)
}

type ReorderEventRequest struct {
	StoryID   string    `validate:"required"`
	EventID   string    `validate:"required"`
	Direction Direction `validate:"required,oneof=up down"`
}

// ReorderEvent swaps an event with its neighbour on the same node (or among
// unplaced events). Events sharing an order are renumbered 1..N instead.
func (p *Placement) ReorderEvent(ctx context.Context, req ReorderEventRequest) (ReorderResult, error) {
	if err := check(req); err != nil {
		return ReorderResult{}, err
	}
	all, err := p.store.ListEvents(ctx, req.StoryID, store.EventFilter{})
	if err != nil {
		return ReorderResult{}, err
	}
	var target *model.Event
	for k := range all {
		if all[k].ID == req.EventID {
			target = &all[k]
			break
		}
	}
	if target == nil {
		return ReorderResult{}, NotFoundError{Kind: "event", ID: req.EventID}
	}

	var group []model.Event
	for _, ev := range all {
		if sameNode(ev.NodeID, target.NodeID) {
			group = append(group, ev)
		}
	}
	tree.SortEvents(group)
	i := 0
	for k, ev := range group {
		if ev.ID == target.ID {
			i = k
		}
	}
	j := i - 1
	if req.Direction == Down {
		j = i + 1
	}
	if j < 0 || j >= len(group) {
		return ReorderResult{}, BoundaryError{Kind: "event", ID: target.ID, Direction: req.Direction}
	}

	a, b := group[i], group[j]
	res := ReorderResult{ID: a.ID, SwappedWith: b.ID}
	var muts []store.Mutation
	if a.Order == b.Order {
		p.log.Warn("events share an order; renumbering",
			zap.String("story", req.StoryID),
			zap.String("event", a.ID),
			zap.String("sibling", b.ID),
			zap.Int("order", a.Order),
		)
		res.Renumbered = true
		group[i], group[j] = group[j], group[i]
		for k, ev := range group {
			if ev.Order != k+1 {
				muts = append(muts, store.ReorderEvent(ev.ID, k+1))
			}
		}
	} else {
		muts = []store.Mutation{
			store.ReorderEvent(a.ID, b.Order),
			store.ReorderEvent(b.ID, a.Order),
		}
	}
	if err := applyBatch(ctx, p.store, p.log, req.StoryID, "event.reorder", muts); err != nil {
		return ReorderResult{}, err
	}
	res.Mutations = len(muts)
	return res, nil
}

// EventWriter is a NodeStore that can also insert events.
type EventWriter interface {
	store.NodeStore
	InsertEvent(ctx context.Context, ev model.Event) error
}

// CreateEvent adds an event at the end of the story root's event list.
func CreateEvent(ctx context.Context, st EventWriter, log *zap.Logger, storyID, title string) (model.Event, error) {
	title = strings.TrimSpace(title)
	if err := check(struct {
		StoryID string `validate:"required"`
		Title   string `validate:"required"`
	}{storyID, title}); err != nil {
		return model.Event{}, err
	}
	ix, _, _, err := loadIndex(ctx, st, storyID, true)
	if err != nil {
		return model.Event{}, err
	}
	root, ok := ix.Root()
	if !ok {
		return model.Event{}, NotFoundError{Kind: "story", ID: storyID}
	}
	rootID := root.Node.ID
	ev := model.Event{
		ID:      store.NewID("event"),
		StoryID: storyID,
		NodeID:  &rootID,
		Order:   maxOrder(root.Events, "") + 1,
		Title:   title,
	}
	if err := st.InsertEvent(ctx, ev); err != nil {
		return model.Event{}, err
	}
	if log != nil {
		log.Debug("event created", zap.String("story", storyID), zap.String("event", ev.ID))
	}
	return findEvent(ctx, st, storyID, ev.ID)
}

func sameNode(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
