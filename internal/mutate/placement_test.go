package mutate

import (
	"errors"
	"testing"

	"storyline-cli/internal/model"
	"storyline-cli/internal/position"
	"storyline-cli/internal/store"
)

func TestCreateEvent_AppendsToRoot(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	e1 := f.newEvent("one")
	e2 := f.newEvent("two")
	if !e1.PlacedOn(f.root.ID) || !e2.PlacedOn(f.root.ID) {
		t.Fatalf("expected new events on the root")
	}
	if e1.Order != 1 || e2.Order != 2 {
		t.Fatalf("expected orders 1,2; got %d,%d", e1.Order, e2.Order)
	}
	if _, err := CreateEvent(f.ctx, f.st, nil, f.story.ID, "  "); err == nil {
		t.Fatalf("expected error for blank title")
	}
}

func TestPlace_AppendsAfterExistingEvents(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	b := f.appendNode(f.root.ID, 0)
	e1 := f.place(f.newEvent("a").ID, b.ID)
	e2 := f.place(f.newEvent("b").ID, b.ID)
	if e1.Order != 1 || e2.Order != 2 {
		t.Fatalf("expected orders 1,2; got %d,%d", e1.Order, e2.Order)
	}

	// Placing the last event again keeps it last.
	again := f.place(e2.ID, b.ID)
	if again.Order != 2 {
		t.Fatalf("expected order 2 on re-place; got %d", again.Order)
	}

	_, err := f.p.Place(f.ctx, PlaceRequest{StoryID: f.story.ID, EventID: e1.ID, NodeID: "node-missing"})
	if !IsNotFound(err) {
		t.Fatalf("expected node not found; got %v", err)
	}
	_, err = f.p.Place(f.ctx, PlaceRequest{StoryID: f.story.ID, EventID: "event-missing", NodeID: b.ID})
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "event" {
		t.Fatalf("expected event not found; got %v", err)
	}
}

func TestUnplace_MovesEventToRootEnd(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	f.newEvent("first")
	b := f.appendNode(f.root.ID, 0)
	ev := f.place(f.newEvent("moved").ID, b.ID)

	got, err := f.p.Unplace(f.ctx, f.story.ID, ev.ID)
	if err != nil {
		t.Fatalf("Unplace error: %v", err)
	}
	if !got.PlacedOn(f.root.ID) || got.Order != 2 {
		t.Fatalf("expected event on root with order 2; got node=%v order=%d", got.NodeID, got.Order)
	}
	if _, err := f.p.Unplace(f.ctx, f.story.ID, "event-missing"); !IsNotFound(err) {
		t.Fatalf("expected not found; got %v", err)
	}
}

func TestPlace_RejectsNodeFromAnotherStory(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	ev := f.newEvent("local")

	other, err := f.st.CreateStory(f.ctx, "Other", model.DefaultLevelConfig())
	if err != nil {
		t.Fatalf("CreateStory error: %v", err)
	}
	otherNodes, err := f.st.ListNodes(f.ctx, other.ID)
	if err != nil || len(otherNodes) != 1 {
		t.Fatalf("expected the other story's root; got %v %v", otherNodes, err)
	}
	otherRoot := otherNodes[0]
	otherEv, err := CreateEvent(f.ctx, f.st, nil, other.ID, "theirs")
	if err != nil {
		t.Fatalf("CreateEvent error: %v", err)
	}

	for _, storyID := range []string{f.story.ID, other.ID} {
		_, err := f.p.Place(f.ctx, PlaceRequest{StoryID: storyID, EventID: ev.ID, NodeID: otherRoot.ID})
		if !IsNotFound(err) {
			t.Fatalf("story %s: expected not found; got %v", storyID, err)
		}
	}

	if got := f.event(ev.ID); !got.PlacedOn(f.root.ID) || got.Order != ev.Order {
		t.Fatalf("expected event to stay on its own root; got node=%v order=%d", got.NodeID, got.Order)
	}
	theirs, err := f.st.ListEvents(f.ctx, other.ID, store.EventFilter{})
	if err != nil {
		t.Fatalf("ListEvents error: %v", err)
	}
	if len(theirs) != 1 || theirs[0].ID != otherEv.ID || !theirs[0].PlacedOn(otherRoot.ID) || theirs[0].Order != 1 {
		t.Fatalf("expected the other story's events unchanged; got %+v", theirs)
	}
}

func TestUnplace_StoryWithoutRoot(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	stray := model.Node{ID: "node-stray", StoryID: f.story.ID, Level: 2, Position: position.Position{1, 1, 0, 0, 0}, Name: "Book 1"}
	if err := f.st.PutNode(stray); err != nil {
		t.Fatalf("PutNode error: %v", err)
	}
	strayID := stray.ID
	if err := f.st.InsertEvent(f.ctx, model.Event{ID: "event-x", StoryID: f.story.ID, NodeID: &strayID, Order: 1, Title: "x"}); err != nil {
		t.Fatalf("InsertEvent error: %v", err)
	}
	if err := f.st.ApplyBatch(f.ctx, f.story.ID, store.Batch{Op: "seed", Mutations: []store.Mutation{store.RemoveNode(f.root.ID)}}); err != nil {
		t.Fatalf("remove root: %v", err)
	}

	_, err := f.p.Unplace(f.ctx, f.story.ID, "event-x")
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "root" || nf.ID != f.story.ID {
		t.Fatalf("expected missing root error; got %v", err)
	}
	if got := f.event("event-x"); !got.PlacedOn(strayID) {
		t.Fatalf("expected event left in place; got %v", got.NodeID)
	}
}

func TestReorderEvent_SwapsNeighbours(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	e1, e2, e3 := f.newEvent("1"), f.newEvent("2"), f.newEvent("3")

	res, err := f.p.ReorderEvent(f.ctx, ReorderEventRequest{StoryID: f.story.ID, EventID: e2.ID, Direction: Down})
	if err != nil {
		t.Fatalf("ReorderEvent error: %v", err)
	}
	if res.Renumbered || res.SwappedWith != e3.ID || res.Mutations != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.event(e1.ID).Order != 1 || f.event(e2.ID).Order != 3 || f.event(e3.ID).Order != 2 {
		t.Fatalf("expected orders 1,3,2")
	}

	if _, err := f.p.ReorderEvent(f.ctx, ReorderEventRequest{StoryID: f.story.ID, EventID: e1.ID, Direction: Up}); !IsBoundary(err) {
		t.Fatalf("expected boundary; got %v", err)
	}
	if _, err := f.p.ReorderEvent(f.ctx, ReorderEventRequest{StoryID: f.story.ID, EventID: e2.ID, Direction: Down}); !IsBoundary(err) {
		t.Fatalf("expected boundary; got %v", err)
	}
}

func TestReorderEvent_EqualOrdersRenumber(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	e1, e2, e3 := f.newEvent("1"), f.newEvent("2"), f.newEvent("3")

	// Force a tie: e2 now shares order 1 with e1 but was touched later.
	err := f.st.ApplyBatch(f.ctx, f.story.ID, store.Batch{Op: "seed", Mutations: []store.Mutation{store.ReorderEvent(e2.ID, 1)}})
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}

	res, err := f.p.ReorderEvent(f.ctx, ReorderEventRequest{StoryID: f.story.ID, EventID: e2.ID, Direction: Up})
	if err != nil {
		t.Fatalf("ReorderEvent error: %v", err)
	}
	if !res.Renumbered {
		t.Fatalf("expected renumber fallback")
	}
	if f.event(e2.ID).Order != 1 || f.event(e1.ID).Order != 2 || f.event(e3.ID).Order != 3 {
		t.Fatalf("expected e2,e1,e3 numbered 1..3")
	}
}

func TestReorderEvent_UnplacedGroup(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	f.newEvent("placed")
	// Rows written by other tools may carry no node at all.
	for _, id := range []string{"event-u1", "event-u2"} {
		if err := f.st.InsertEvent(f.ctx, model.Event{ID: id, StoryID: f.story.ID, Title: id}); err != nil {
			t.Fatalf("InsertEvent error: %v", err)
		}
	}

	// Both sit at order 0: the reorder renumbers the unplaced group only.
	res, err := f.p.ReorderEvent(f.ctx, ReorderEventRequest{StoryID: f.story.ID, EventID: "event-u2", Direction: Up})
	if err != nil {
		t.Fatalf("ReorderEvent error: %v", err)
	}
	if !res.Renumbered || res.SwappedWith != "event-u1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.event("event-u2").Order != 1 || f.event("event-u1").Order != 2 {
		t.Fatalf("expected event-u2 then event-u1")
	}
}

func TestRequests_Validated(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	var ie InvalidArgumentError
	if _, err := f.p.ReorderEvent(f.ctx, ReorderEventRequest{StoryID: f.story.ID, EventID: "e", Direction: "sideways"}); !errors.As(err, &ie) || ie.Field != "direction" {
		t.Fatalf("expected invalid direction; got %v", err)
	}
	if _, err := f.p.Place(f.ctx, PlaceRequest{StoryID: f.story.ID, EventID: "e"}); !errors.As(err, &ie) || ie.Field != "nodeID" {
		t.Fatalf("expected missing nodeID; got %v", err)
	}
}
