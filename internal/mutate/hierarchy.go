package mutate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storyline-cli/internal/model"
	"storyline-cli/internal/position"
	"storyline-cli/internal/store"
	"storyline-cli/internal/tree"

	"go.uber.org/zap"
)

// Hierarchy plans structural edits of a story's node tree and submits each
// one as a single batch. Every batch is ordered so that no intermediate row
// state repeats a position vector within the story.
type Hierarchy struct {
	store store.NodeStore
	log   *zap.Logger
}

func NewHierarchy(st store.NodeStore, log *zap.Logger) *Hierarchy {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hierarchy{store: st, log: log}
}

type AppendRequest struct {
	StoryID  string `validate:"required"`
	ParentID string `validate:"required"`
	// Level is optional; zero means the first enabled level below the parent.
	Level int `validate:"omitempty,min=2,max=5"`
	Title string
}

// Append creates a node as the last child of ParentID.
func (h *Hierarchy) Append(ctx context.Context, req AppendRequest) (model.Node, error) {
	if err := check(req); err != nil {
		return model.Node{}, err
	}
	ix, nodes, _, err := loadIndex(ctx, h.store, req.StoryID, false)
	if err != nil {
		return model.Node{}, err
	}
	cfg, err := h.levels(ctx, req.StoryID)
	if err != nil {
		return model.Node{}, err
	}
	parent, ok := ix.Node(req.ParentID)
	if !ok {
		return model.Node{}, NotFoundError{Kind: "node", ID: req.ParentID}
	}

	level := req.Level
	if level == 0 {
		level = nextEnabledLevel(cfg, parent.Node.Level)
		if level == 0 {
			return model.Node{}, ConfigurationError{ParentID: parent.Node.ID, ParentLevel: parent.Node.Level}
		}
	} else if level <= parent.Node.Level {
		return model.Node{}, InvalidArgumentError{
			Field:  "level",
			Reason: fmt.Sprintf("must be deeper than parent level %d, got %d", parent.Node.Level, level),
		}
	}

	idx := position.LevelIndex(level)
	next := 1
	if cfg.Persisted(level) {
		// Persisted levels number continuously across the whole story.
		for _, n := range nodes {
			if n.Level == level && n.Position[idx] >= next {
				next = n.Position[idx] + 1
			}
		}
	} else {
		for _, ch := range parent.Children {
			if ch.Node.Level == level && ch.Node.Position[idx] >= next {
				next = ch.Node.Position[idx] + 1
			}
		}
	}
	pos, err := parent.Node.Position.With(idx, next)
	if err != nil {
		return model.Node{}, err
	}

	parentID := parent.Node.ID
	n := model.Node{
		ID:       store.NewID("node"),
		StoryID:  req.StoryID,
		ParentID: &parentID,
		Level:    level,
		Position: pos,
		Name:     tree.NodeName(cfg, level, next),
		Title:    strings.TrimSpace(req.Title),
	}
	if err := applyBatch(ctx, h.store, h.log, req.StoryID, "node.append", []store.Mutation{store.NewNode(n)}); err != nil {
		return model.Node{}, err
	}
	return findNode(ctx, h.store, req.StoryID, n.ID)
}

func nextEnabledLevel(cfg model.LevelConfig, parentLevel int) int {
	for l := parentLevel + 1; l <= model.MaxLevel; l++ {
		if cfg.Enabled(l) {
			return l
		}
	}
	return 0
}

type InsertRequest struct {
	StoryID  string `validate:"required"`
	TargetID string `validate:"required"`
	Where    Where  `validate:"required,oneof=before after"`
	Title    string
}

// InsertSibling creates a node at the same level as TargetID, immediately
// before or after it, shifting later siblings (with their subtrees) by one.
func (h *Hierarchy) InsertSibling(ctx context.Context, req InsertRequest) (model.Node, error) {
	if err := check(req); err != nil {
		return model.Node{}, err
	}
	ix, _, _, err := loadIndex(ctx, h.store, req.StoryID, false)
	if err != nil {
		return model.Node{}, err
	}
	cfg, err := h.levels(ctx, req.StoryID)
	if err != nil {
		return model.Node{}, err
	}
	target, ok := ix.Node(req.TargetID)
	if !ok {
		return model.Node{}, NotFoundError{Kind: "node", ID: req.TargetID}
	}
	if target.Node.IsRoot() {
		return model.Node{}, ProtectedNodeError{Op: "insert a sibling of", NodeID: target.Node.ID}
	}

	sibs, ti := ix.SiblingIndex(target.Node.ID)
	idx := position.LevelIndex(target.Node.Level)
	at, value := ti, target.Node.Value()
	if req.Where == After {
		at, value = ti+1, value+1
	}

	// Shift from the highest value down so each move lands on a free slot.
	var muts []store.Mutation
	for i := len(sibs) - 1; i >= at; i-- {
		s := sibs[i]
		ms, err := moveSubtree(ix, cfg, s, idx, s.Node.Value()+1, true)
		if err != nil {
			return model.Node{}, err
		}
		muts = append(muts, ms...)
	}

	pos, err := target.Node.Position.With(idx, value)
	if err != nil {
		return model.Node{}, err
	}
	n := model.Node{
		ID:       store.NewID("node"),
		StoryID:  req.StoryID,
		ParentID: copyID(target.Node.ParentID),
		Level:    target.Node.Level,
		Position: pos,
		Name:     tree.NodeName(cfg, target.Node.Level, value),
		Title:    strings.TrimSpace(req.Title),
	}
	muts = append(muts, store.NewNode(n))
	if err := applyBatch(ctx, h.store, h.log, req.StoryID, "node.insert", muts); err != nil {
		return model.Node{}, err
	}
	return findNode(ctx, h.store, req.StoryID, n.ID)
}

type ReorderRequest struct {
	StoryID   string    `validate:"required"`
	NodeID    string    `validate:"required"`
	Direction Direction `validate:"required,oneof=up down"`
}

// Reorder swaps a node with its adjacent sibling. Both subtrees follow their
// heads. If the two siblings hold the same value the sibling list is
// renumbered 1..N in its current order with the pair exchanged.
func (h *Hierarchy) Reorder(ctx context.Context, req ReorderRequest) (ReorderResult, error) {
	if err := check(req); err != nil {
		return ReorderResult{}, err
	}
	ix, _, _, err := loadIndex(ctx, h.store, req.StoryID, false)
	if err != nil {
		return ReorderResult{}, err
	}
	cfg, err := h.levels(ctx, req.StoryID)
	if err != nil {
		return ReorderResult{}, err
	}
	target, ok := ix.Node(req.NodeID)
	if !ok {
		return ReorderResult{}, NotFoundError{Kind: "node", ID: req.NodeID}
	}
	if target.Node.IsRoot() {
		return ReorderResult{}, ProtectedNodeError{Op: "reorder", NodeID: target.Node.ID}
	}

	sibs, i := ix.SiblingIndex(target.Node.ID)
	j := i - 1
	if req.Direction == Down {
		j = i + 1
	}
	if j < 0 || j >= len(sibs) {
		return ReorderResult{}, BoundaryError{Kind: "node", ID: target.Node.ID, Direction: req.Direction}
	}

	a, b := sibs[i], sibs[j]
	idx := position.LevelIndex(target.Node.Level)
	va, vb := a.Node.Value(), b.Node.Value()
	res := ReorderResult{ID: a.Node.ID, SwappedWith: b.Node.ID}

	var muts []store.Mutation
	if va == vb {
		h.log.Warn("siblings share a position value; renumbering",
			zap.String("story", req.StoryID),
			zap.String("node", a.Node.ID),
			zap.String("sibling", b.Node.ID),
			zap.Int("value", va),
		)
		res.Renumbered = true
		muts, err = renumberSiblings(ix, cfg, sibs, i, j, idx)
	} else {
		muts, err = swapSiblings(ix, cfg, a, b, idx)
	}
	if err != nil {
		return ReorderResult{}, err
	}
	if err := applyBatch(ctx, h.store, h.log, req.StoryID, "node.reorder", muts); err != nil {
		return ReorderResult{}, err
	}
	res.Mutations = len(muts)
	return res, nil
}

// swapSiblings exchanges the level values of a and b. a's subtree is parked
// at -1 first so neither move lands on an occupied vector.
func swapSiblings(ix *tree.Index, cfg model.LevelConfig, a, b *tree.Entry, idx int) ([]store.Mutation, error) {
	va, vb := a.Node.Value(), b.Node.Value()
	var out []store.Mutation
	for _, step := range []struct {
		e      *tree.Entry
		value  int
		rename bool
	}{
		{a, -1, false},
		{b, va, true},
		{a, vb, true},
	} {
		ms, err := moveSubtree(ix, cfg, step.e, idx, step.value, step.rename)
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	return out, nil
}

// renumberSiblings assigns 1..N to sibs in their current order with i and j
// exchanged. Siblings whose value changes are parked at distinct negative
// values before any of them takes its final value.
func renumberSiblings(ix *tree.Index, cfg model.LevelConfig, sibs []*tree.Entry, i, j, idx int) ([]store.Mutation, error) {
	order := append([]*tree.Entry(nil), sibs...)
	order[i], order[j] = order[j], order[i]

	var park, place []store.Mutation
	for k, s := range order {
		if s.Node.Value() == k+1 {
			continue
		}
		ms, err := moveSubtree(ix, cfg, s, idx, -(k + 1), false)
		if err != nil {
			return nil, err
		}
		park = append(park, ms...)
		ms, err = moveSubtree(ix, cfg, s, idx, k+1, true)
		if err != nil {
			return nil, err
		}
		place = append(place, ms...)
	}
	return append(park, place...), nil
}

// moveSubtree sets slot idx to value on e and every node below it. Deeper
// slots are kept, so descendants keep their relative order. With rename set,
// e's derived name follows its new value.
func moveSubtree(ix *tree.Index, cfg model.LevelConfig, e *tree.Entry, idx, value int, rename bool) ([]store.Mutation, error) {
	var out []store.Mutation
	for _, d := range ix.Subtree(e.Node.ID) {
		pos, err := d.Node.Position.Set(idx, value)
		if err != nil {
			return nil, err
		}
		name := d.Node.Name
		if rename && d.Node.ID == e.Node.ID {
			name = tree.NodeName(cfg, d.Node.Level, value)
		}
		out = append(out, store.MoveNode(d.Node.ID, pos, name))
	}
	return out, nil
}

// DeleteResult lists the events that were moved to the root before the node
// was removed.
type DeleteResult struct {
	ID      string   `json:"id"`
	RootID  string   `json:"rootId"`
	Rehomed []string `json:"rehomedEvents"`
}

// Delete removes a node. Its directly placed events are appended to the
// root, in their current order, in the same batch. Descendants are not
// cascaded: a node with children is rejected by the store's foreign key.
func (h *Hierarchy) Delete(ctx context.Context, storyID, nodeID string) (DeleteResult, error) {
	if err := check(struct {
		StoryID string `validate:"required"`
		NodeID  string `validate:"required"`
	}{storyID, nodeID}); err != nil {
		return DeleteResult{}, err
	}
	ix, _, _, err := loadIndex(ctx, h.store, storyID, true)
	if err != nil {
		return DeleteResult{}, err
	}
	target, ok := ix.Node(nodeID)
	if !ok {
		return DeleteResult{}, NotFoundError{Kind: "node", ID: nodeID}
	}
	if target.Node.IsRoot() {
		return DeleteResult{}, ProtectedNodeError{Op: "delete", NodeID: nodeID}
	}
	root, ok := ix.Root()
	if !ok {
		return DeleteResult{}, NotFoundError{Kind: "root", ID: storyID}
	}

	res := DeleteResult{ID: nodeID, RootID: root.Node.ID, Rehomed: []string{}}
	next := maxOrder(root.Events, "") + 1
	rootID := root.Node.ID
	var muts []store.Mutation
	for _, ev := range target.Events {
		muts = append(muts, store.PlaceEvent(ev.ID, &rootID, next))
		res.Rehomed = append(res.Rehomed, ev.ID)
		next++
	}
	muts = append(muts, store.RemoveNode(nodeID))
	if err := applyBatch(ctx, h.store, h.log, storyID, "node.delete", muts); err != nil {
		return DeleteResult{}, err
	}
	if len(res.Rehomed) > 0 {
		h.log.Info("re-homed events to root",
			zap.String("node", nodeID),
			zap.String("root", rootID),
			zap.Int("events", len(res.Rehomed)),
		)
	}
	return res, nil
}

// Rename sets a node's free-form title. The derived name is not affected.
func (h *Hierarchy) Rename(ctx context.Context, storyID, nodeID, title string) (model.Node, error) {
	if err := check(struct {
		StoryID string `validate:"required"`
		NodeID  string `validate:"required"`
	}{storyID, nodeID}); err != nil {
		return model.Node{}, err
	}
	if _, err := findNode(ctx, h.store, storyID, nodeID); err != nil {
		return model.Node{}, err
	}
	m := store.RetitleNode(nodeID, strings.TrimSpace(title))
	if err := applyBatch(ctx, h.store, h.log, storyID, "node.rename", []store.Mutation{m}); err != nil {
		return model.Node{}, err
	}
	return findNode(ctx, h.store, storyID, nodeID)
}

func (h *Hierarchy) levels(ctx context.Context, storyID string) (model.LevelConfig, error) {
	cfg, err := h.store.GetLevelConfig(ctx, storyID)
	if errors.Is(err, store.ErrNotFound) {
		return model.LevelConfig{}, NotFoundError{Kind: "story", ID: storyID}
	}
	return cfg, err
}

// maxOrder returns the highest order among evs, ignoring skipID.
func maxOrder(evs []model.Event, skipID string) int {
	hi := 0
	for _, ev := range evs {
		if ev.ID != skipID && ev.Order > hi {
			hi = ev.Order
		}
	}
	return hi
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
