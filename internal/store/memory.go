package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storyline-cli/internal/model"
	"storyline-cli/internal/position"

	"github.com/google/uuid"
)

// Memory is an in-process Store with the same constraints as the SQLite
// schema: unique position vectors per story, parents that must exist, and no
// deleting a node that children or events still reference.
type Memory struct {
	mu sync.Mutex
	st memState

	// Now is the clock used for timestamps; tests may replace it.
	Now func() time.Time
}

type memState struct {
	stories map[string]model.Story
	nodes   map[string]model.Node
	events  map[string]model.Event
	changes []model.Change
}

func NewMemory() *Memory {
	return &Memory{
		st: memState{
			stories: map[string]model.Story{},
			nodes:   map[string]model.Node{},
			events:  map[string]model.Event{},
		},
		Now: time.Now,
	}
}

func (s memState) clone() memState {
	out := memState{
		stories: make(map[string]model.Story, len(s.stories)),
		nodes:   make(map[string]model.Node, len(s.nodes)),
		events:  make(map[string]model.Event, len(s.events)),
		changes: append([]model.Change(nil), s.changes...),
	}
	for k, v := range s.stories {
		out.stories[k] = v
	}
	for k, v := range s.nodes {
		out.nodes[k] = v
	}
	for k, v := range s.events {
		out.events[k] = v
	}
	return out
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateStory(ctx context.Context, name string, cfg model.LevelConfig) (model.Story, error) {
	if err := cfg.Validate(); err != nil {
		return model.Story{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now().UTC()
	st := model.Story{ID: NewID("story"), Name: strings.TrimSpace(name), Levels: cfg, CreatedAt: now}
	root := newRootNode(st, now)
	next := m.st.clone()
	next.stories[st.ID] = st
	next.nodes[root.ID] = root
	if err := m.appendChangeLocked(&next, st.ID, Batch{Op: "story.create", Mutations: []Mutation{NewNode(root)}}, now); err != nil {
		return model.Story{}, err
	}
	m.st = next
	return st, nil
}

func (m *Memory) GetStory(ctx context.Context, id string) (model.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.st.stories[id]
	if !ok {
		return model.Story{}, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	return st, nil
}

func (m *Memory) ListStories(ctx context.Context) ([]model.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Story, 0, len(m.st.stories))
	for _, st := range m.st.stories {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetLevelConfig(ctx context.Context, storyID string) (model.LevelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.st.stories[storyID]
	if !ok {
		return model.LevelConfig{}, fmt.Errorf("level config for story %s: %w", storyID, ErrNotFound)
	}
	return st.Levels, nil
}

func (m *Memory) ListNodes(ctx context.Context, storyID string) ([]model.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Node{}
	for _, n := range m.st.nodes {
		if n.StoryID == storyID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := position.CompareAll(out[i].Position, out[j].Position); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ListEvents(ctx context.Context, storyID string, f EventFilter) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Event{}
	for _, ev := range m.st.events {
		if ev.StoryID == storyID && f.match(ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		an, bn := derefOr(a.NodeID, ""), derefOr(b.NodeID, "")
		if an != bn {
			return an < bn
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// PutNode inserts a node row verbatim, checking only the uniqueness
// constraint. It exists to seed fixtures, including malformed legacy data.
func (m *Memory) PutNode(n model.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkUnique(m.st, n); err != nil {
		return &ConstraintViolation{Kind: ConstraintUnique, Op: "seed", Err: err}
	}
	m.st.nodes[n.ID] = n
	return nil
}

func (m *Memory) InsertEvent(ctx context.Context, ev model.Event) error {
	if ev.ID == "" || ev.StoryID == "" {
		return errors.New("store: insert event: missing id or story")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.events[ev.ID]; ok {
		return &ConstraintViolation{Kind: ConstraintUnique, Op: "event.create", Err: fmt.Errorf("event %s exists", ev.ID)}
	}
	if ev.NodeID != nil {
		if n, ok := m.st.nodes[*ev.NodeID]; !ok || n.StoryID != ev.StoryID {
			return &ConstraintViolation{Kind: ConstraintForeignKey, Op: "event.create", Err: fmt.Errorf("node %s missing", *ev.NodeID)}
		}
	}
	now := m.Now().UTC()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = now
	}
	m.st.events[ev.ID] = ev
	return nil
}

func (m *Memory) DeleteEvent(ctx context.Context, storyID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.st.events[eventID]
	if !ok || ev.StoryID != storyID {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	delete(m.st.events, eventID)
	return nil
}

func (m *Memory) StoryOf(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.st.nodes[id]; ok {
		return n.StoryID, nil
	}
	if ev, ok := m.st.events[id]; ok {
		return ev.StoryID, nil
	}
	if _, ok := m.st.stories[id]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (m *Memory) ListChanges(ctx context.Context, storyID string, limit int) ([]model.Change, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Change{}
	for i := len(m.st.changes) - 1; i >= 0 && len(out) < limit; i-- {
		if c := m.st.changes[i]; c.StoryID == storyID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ApplyBatch applies b to a copy of the state and swaps it in only when every
// mutation succeeded.
func (m *Memory) ApplyBatch(ctx context.Context, storyID string, b Batch) error {
	for i, mu := range b.Mutations {
		if err := validateMutation(mu); err != nil {
			return fmt.Errorf("store: %s mutation %d: %w", b.Op, i, err)
		}
	}
	if len(b.Mutations) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now().UTC()
	next := m.st.clone()
	for i, mu := range b.Mutations {
		if err := applyMem(&next, storyID, mu, now); err != nil {
			var cv *ConstraintViolation
			if errors.As(err, &cv) {
				cv.Op, cv.Index = b.Op, i
				return cv
			}
			return fmt.Errorf("store: %s mutation %d (%s): %w", b.Op, i, mu.Kind, err)
		}
	}
	if err := m.appendChangeLocked(&next, storyID, b, now); err != nil {
		return err
	}
	m.st = next
	return nil
}

func applyMem(st *memState, storyID string, mu Mutation, now time.Time) error {
	switch mu.Kind {
	case CreateNode:
		n := *mu.Node
		if n.StoryID == "" {
			n.StoryID = storyID
		}
		if n.StoryID != storyID {
			return fmt.Errorf("node %s belongs to story %s", n.ID, n.StoryID)
		}
		if _, ok := st.nodes[n.ID]; ok {
			return &ConstraintViolation{Kind: ConstraintUnique, Err: fmt.Errorf("node id %s exists", n.ID)}
		}
		if n.ParentID != nil {
			p, ok := st.nodes[*n.ParentID]
			if !ok || p.StoryID != storyID {
				return &ConstraintViolation{Kind: ConstraintForeignKey, Err: fmt.Errorf("parent %s missing", *n.ParentID)}
			}
			if err := checkParent(p, n); err != nil {
				return err
			}
		}
		if err := checkUnique(*st, n); err != nil {
			return &ConstraintViolation{Kind: ConstraintUnique, Err: err}
		}
		n.CreatedAt, n.UpdatedAt = now, now
		st.nodes[n.ID] = n

	case UpdateNodePosition:
		n, err := memNode(st, storyID, mu.NodeID)
		if err != nil {
			return err
		}
		n.Position = *mu.Position
		n.Name = mu.Name
		if err := checkUnique(*st, n); err != nil {
			return &ConstraintViolation{Kind: ConstraintUnique, Err: err}
		}
		n.UpdatedAt = now
		st.nodes[n.ID] = n

	case UpdateNodeTitle:
		n, err := memNode(st, storyID, mu.NodeID)
		if err != nil {
			return err
		}
		n.Title = *mu.Title
		n.UpdatedAt = now
		st.nodes[n.ID] = n

	case DeleteNode:
		if _, err := memNode(st, storyID, mu.NodeID); err != nil {
			return err
		}
		for _, c := range st.nodes {
			if c.ParentID != nil && *c.ParentID == mu.NodeID {
				return &ConstraintViolation{Kind: ConstraintForeignKey, Err: fmt.Errorf("node %s has child %s", mu.NodeID, c.ID)}
			}
		}
		for _, ev := range st.events {
			if ev.PlacedOn(mu.NodeID) {
				return &ConstraintViolation{Kind: ConstraintForeignKey, Err: fmt.Errorf("node %s has event %s", mu.NodeID, ev.ID)}
			}
		}
		delete(st.nodes, mu.NodeID)

	case UpdateEventPlacement:
		ev, err := memEvent(st, storyID, mu.EventID)
		if err != nil {
			return err
		}
		if mu.TargetNodeID != nil {
			if _, err := memNode(st, storyID, *mu.TargetNodeID); err != nil {
				return err
			}
			id := *mu.TargetNodeID
			ev.NodeID = &id
		} else {
			ev.NodeID = nil
		}
		ev.Order = mu.Order
		ev.UpdatedAt = now
		st.events[ev.ID] = ev

	case UpdateEventOrder:
		ev, err := memEvent(st, storyID, mu.EventID)
		if err != nil {
			return err
		}
		ev.Order = mu.Order
		ev.UpdatedAt = now
		st.events[ev.ID] = ev

	default:
		return fmt.Errorf("unknown mutation kind %q", mu.Kind)
	}
	return nil
}

func memNode(st *memState, storyID, id string) (model.Node, error) {
	n, ok := st.nodes[id]
	if !ok || n.StoryID != storyID {
		return model.Node{}, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	return n, nil
}

func memEvent(st *memState, storyID, id string) (model.Event, error) {
	ev, ok := st.events[id]
	if !ok || ev.StoryID != storyID {
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return ev, nil
}

func checkUnique(st memState, n model.Node) error {
	for _, other := range st.nodes {
		if other.ID != n.ID && other.StoryID == n.StoryID && other.Position == n.Position {
			return fmt.Errorf("position %s already held by %s", n.Position, other.ID)
		}
	}
	return nil
}

func (m *Memory) appendChangeLocked(st *memState, storyID string, b Batch, now time.Time) error {
	payload, err := json.Marshal(b.Mutations)
	if err != nil {
		return fmt.Errorf("store: encode change payload: %w", err)
	}
	st.changes = append(st.changes, model.Change{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		Op:        b.Op,
		Mutations: len(b.Mutations),
		Payload:   payload,
		CreatedAt: now,
	})
	return nil
}

func derefOr(s *string, d string) string {
	if s == nil {
		return d
	}
	return *s
}
