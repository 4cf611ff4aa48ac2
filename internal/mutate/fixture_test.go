package mutate

import (
	"context"
	"testing"
	"time"

	"storyline-cli/internal/model"
	"storyline-cli/internal/position"
	"storyline-cli/internal/store"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	st    *store.Memory
	story model.Story
	root  model.Node
	h     *Hierarchy
	p     *Placement
}

func newFixture(t *testing.T, cfg model.LevelConfig) *fixture {
	t.Helper()
	st := store.NewMemory()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	ctx := context.Background()
	story, err := st.CreateStory(ctx, "Test", cfg)
	if err != nil {
		t.Fatalf("CreateStory error: %v", err)
	}
	f := &fixture{t: t, ctx: ctx, st: st, story: story, h: NewHierarchy(st, nil), p: NewPlacement(st, nil)}
	nodes := f.nodes()
	if len(nodes) != 1 {
		t.Fatalf("expected only the root; got %d nodes", len(nodes))
	}
	f.root = nodes[0]
	return f
}

func (f *fixture) nodes() []model.Node {
	f.t.Helper()
	nodes, err := f.st.ListNodes(f.ctx, f.story.ID)
	if err != nil {
		f.t.Fatalf("ListNodes error: %v", err)
	}
	return nodes
}

func (f *fixture) node(id string) model.Node {
	f.t.Helper()
	n, err := findNode(f.ctx, f.st, f.story.ID, id)
	if err != nil {
		f.t.Fatalf("node %s: %v", id, err)
	}
	return n
}

func (f *fixture) event(id string) model.Event {
	f.t.Helper()
	ev, err := findEvent(f.ctx, f.st, f.story.ID, id)
	if err != nil {
		f.t.Fatalf("event %s: %v", id, err)
	}
	return ev
}

func (f *fixture) appendNode(parentID string, level int) model.Node {
	f.t.Helper()
	n, err := f.h.Append(f.ctx, AppendRequest{StoryID: f.story.ID, ParentID: parentID, Level: level})
	if err != nil {
		f.t.Fatalf("Append error: %v", err)
	}
	return n
}

func (f *fixture) newEvent(title string) model.Event {
	f.t.Helper()
	ev, err := CreateEvent(f.ctx, f.st, nil, f.story.ID, title)
	if err != nil {
		f.t.Fatalf("CreateEvent error: %v", err)
	}
	return ev
}

func (f *fixture) place(eventID, nodeID string) model.Event {
	f.t.Helper()
	ev, err := f.p.Place(f.ctx, PlaceRequest{StoryID: f.story.ID, EventID: eventID, NodeID: nodeID})
	if err != nil {
		f.t.Fatalf("Place error: %v", err)
	}
	return ev
}

// assertTree checks that no two nodes share a vector and that every child
// carries its parent's prefix.
func (f *fixture) assertTree() {
	f.t.Helper()
	nodes := f.nodes()
	seen := map[position.Position]string{}
	byID := map[string]model.Node{}
	for _, n := range nodes {
		if other, ok := seen[n.Position]; ok {
			f.t.Fatalf("nodes %s and %s share position %s", other, n.ID, n.Position)
		}
		seen[n.Position] = n.ID
		byID[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentID == nil {
			continue
		}
		p, ok := byID[*n.ParentID]
		if !ok {
			f.t.Fatalf("node %s has missing parent %s", n.ID, *n.ParentID)
		}
		if !n.Position.HasPrefix(p.Position, p.Level) {
			f.t.Fatalf("node %s at %s does not extend parent %s at %s", n.ID, n.Position, p.ID, p.Position)
		}
	}
}

func wantPos(t *testing.T, n model.Node, want position.Position) {
	t.Helper()
	if n.Position != want {
		t.Fatalf("node %s: expected position %s; got %s", n.ID, want, n.Position)
	}
}
