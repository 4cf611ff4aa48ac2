package mutate

import (
	"errors"
	"testing"

	"storyline-cli/internal/model"
	"storyline-cli/internal/position"
	"storyline-cli/internal/store"
)

func TestAppend_NumbersChildrenSequentially(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())

	for i := 1; i <= 3; i++ {
		n := f.appendNode(f.root.ID, 0)
		if n.Level != 2 {
			t.Fatalf("expected level 2; got %d", n.Level)
		}
		wantPos(t, n, position.Position{1, i, 0, 0, 0})
		if want := "Book " + string(rune('0'+i)); n.Name != want {
			t.Fatalf("expected name %q; got %q", want, n.Name)
		}
		if n.ParentID == nil || *n.ParentID != f.root.ID {
			t.Fatalf("expected parent %s; got %v", f.root.ID, n.ParentID)
		}
	}
	f.assertTree()
}

func TestAppend_PersistedLevelNumbersAcrossStory(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())

	b1 := f.appendNode(f.root.ID, 0)
	b2 := f.appendNode(f.root.ID, 0)
	p1 := f.appendNode(b1.ID, 0)
	p2 := f.appendNode(b2.ID, 0)
	wantPos(t, p2, position.Position{1, 2, 1, 0, 0})

	c1 := f.appendNode(p1.ID, 0)
	c2 := f.appendNode(p1.ID, 0)
	c3 := f.appendNode(p2.ID, 0)
	wantPos(t, c1, position.Position{1, 1, 1, 1, 0})
	wantPos(t, c2, position.Position{1, 1, 1, 2, 0})
	// Chapters keep counting in the second book.
	wantPos(t, c3, position.Position{1, 2, 1, 3, 0})
	if c3.Name != "Chapter 3" {
		t.Fatalf("expected Chapter 3; got %q", c3.Name)
	}
	f.assertTree()
}

func TestAppend_SkipsDisabledLevels(t *testing.T) {
	cfg := model.DefaultLevelConfig()
	cfg.Level2Name = ""
	f := newFixture(t, cfg)

	n := f.appendNode(f.root.ID, 0)
	if n.Level != 3 {
		t.Fatalf("expected first enabled level 3; got %d", n.Level)
	}
	wantPos(t, n, position.Position{1, 0, 1, 0, 0})
}

func TestAppend_ExplicitLevel(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())

	scene := f.appendNode(f.root.ID, 5)
	wantPos(t, scene, position.Position{1, 0, 0, 0, 1})

	_, err := f.h.Append(f.ctx, AppendRequest{StoryID: f.story.ID, ParentID: scene.ID})
	var ce ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError below a leaf; got %v", err)
	}

	book := f.appendNode(f.root.ID, 2)
	_, err = f.h.Append(f.ctx, AppendRequest{StoryID: f.story.ID, ParentID: book.ID, Level: 2})
	var ie InvalidArgumentError
	if !errors.As(err, &ie) || ie.Field != "level" {
		t.Fatalf("expected invalid level; got %v", err)
	}

	_, err = f.h.Append(f.ctx, AppendRequest{StoryID: f.story.ID, ParentID: book.ID, Level: 6})
	if !errors.As(err, &ie) {
		t.Fatalf("expected level 6 to be rejected; got %v", err)
	}
}

func TestAppend_UnknownParent(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	_, err := f.h.Append(f.ctx, AppendRequest{StoryID: f.story.ID, ParentID: "node-missing"})
	if !IsNotFound(err) {
		t.Fatalf("expected not found; got %v", err)
	}
}

func TestInsertSibling_BeforeShiftsLaterSubtrees(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	b1 := f.appendNode(f.root.ID, 0)
	b2 := f.appendNode(f.root.ID, 0)
	b3 := f.appendNode(f.root.ID, 0)
	part := f.appendNode(b2.ID, 0)

	n, err := f.h.InsertSibling(f.ctx, InsertRequest{StoryID: f.story.ID, TargetID: b2.ID, Where: Before, Title: " Prologue "})
	if err != nil {
		t.Fatalf("InsertSibling error: %v", err)
	}
	wantPos(t, n, position.Position{1, 2, 0, 0, 0})
	if n.Title != "Prologue" || n.Name != "Book 2" {
		t.Fatalf("unexpected title/name: %q %q", n.Title, n.Name)
	}
	wantPos(t, f.node(b1.ID), position.Position{1, 1, 0, 0, 0})
	wantPos(t, f.node(b2.ID), position.Position{1, 3, 0, 0, 0})
	wantPos(t, f.node(b3.ID), position.Position{1, 4, 0, 0, 0})
	wantPos(t, f.node(part.ID), position.Position{1, 3, 1, 0, 0})
	if got := f.node(b2.ID).Name; got != "Book 3" {
		t.Fatalf("expected shifted sibling renamed Book 3; got %q", got)
	}
	f.assertTree()
}

func TestInsertSibling_After(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	b1 := f.appendNode(f.root.ID, 0)
	b2 := f.appendNode(f.root.ID, 0)

	last, err := f.h.InsertSibling(f.ctx, InsertRequest{StoryID: f.story.ID, TargetID: b2.ID, Where: After})
	if err != nil {
		t.Fatalf("InsertSibling error: %v", err)
	}
	wantPos(t, last, position.Position{1, 3, 0, 0, 0})

	mid, err := f.h.InsertSibling(f.ctx, InsertRequest{StoryID: f.story.ID, TargetID: b1.ID, Where: After})
	if err != nil {
		t.Fatalf("InsertSibling error: %v", err)
	}
	wantPos(t, mid, position.Position{1, 2, 0, 0, 0})
	wantPos(t, f.node(b2.ID), position.Position{1, 3, 0, 0, 0})
	wantPos(t, f.node(last.ID), position.Position{1, 4, 0, 0, 0})
	f.assertTree()
}

func TestInsertSibling_RejectsRootAndBadWhere(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())

	_, err := f.h.InsertSibling(f.ctx, InsertRequest{StoryID: f.story.ID, TargetID: f.root.ID, Where: Before})
	var pe ProtectedNodeError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtectedNodeError; got %v", err)
	}

	b := f.appendNode(f.root.ID, 0)
	_, err = f.h.InsertSibling(f.ctx, InsertRequest{StoryID: f.story.ID, TargetID: b.ID, Where: "inside"})
	var ie InvalidArgumentError
	if !errors.As(err, &ie) || ie.Field != "where" {
		t.Fatalf("expected invalid where; got %v", err)
	}
}

func TestReorder_SwapsAdjacentSubtrees(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	b1 := f.appendNode(f.root.ID, 0)
	b2 := f.appendNode(f.root.ID, 0)
	p1 := f.appendNode(b1.ID, 0)
	p2 := f.appendNode(b2.ID, 0)

	res, err := f.h.Reorder(f.ctx, ReorderRequest{StoryID: f.story.ID, NodeID: b2.ID, Direction: Up})
	if err != nil {
		t.Fatalf("Reorder error: %v", err)
	}
	if res.Renumbered || res.SwappedWith != b1.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Mutations != 6 {
		t.Fatalf("expected 6 mutations (park, move, move over two-node subtrees); got %d", res.Mutations)
	}
	wantPos(t, f.node(b2.ID), position.Position{1, 1, 0, 0, 0})
	wantPos(t, f.node(p2.ID), position.Position{1, 1, 1, 0, 0})
	wantPos(t, f.node(b1.ID), position.Position{1, 2, 0, 0, 0})
	wantPos(t, f.node(p1.ID), position.Position{1, 2, 1, 0, 0})
	if f.node(b2.ID).Name != "Book 1" || f.node(b1.ID).Name != "Book 2" {
		t.Fatalf("expected names to follow values")
	}
	f.assertTree()
}

func TestReorder_Boundaries(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	b1 := f.appendNode(f.root.ID, 0)
	b2 := f.appendNode(f.root.ID, 0)

	if _, err := f.h.Reorder(f.ctx, ReorderRequest{StoryID: f.story.ID, NodeID: b1.ID, Direction: Up}); !IsBoundary(err) {
		t.Fatalf("expected boundary for first/up; got %v", err)
	}
	if _, err := f.h.Reorder(f.ctx, ReorderRequest{StoryID: f.story.ID, NodeID: b2.ID, Direction: Down}); !IsBoundary(err) {
		t.Fatalf("expected boundary for last/down; got %v", err)
	}
	wantPos(t, f.node(b1.ID), position.Position{1, 1, 0, 0, 0})
	wantPos(t, f.node(b2.ID), position.Position{1, 2, 0, 0, 0})

	var pe ProtectedNodeError
	if _, err := f.h.Reorder(f.ctx, ReorderRequest{StoryID: f.story.ID, NodeID: f.root.ID, Direction: Down}); !errors.As(err, &pe) {
		t.Fatalf("expected root to be protected; got %v", err)
	}
}

func TestReorder_EqualValuesRenumbersSiblings(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	z := f.appendNode(f.root.ID, 0)

	// Two level-2 siblings sharing value 2, distinguishable only by a stray
	// deeper slot.
	rootID := f.root.ID
	seed := func(id string, pos position.Position) {
		if err := f.st.PutNode(model.Node{ID: id, StoryID: f.story.ID, ParentID: &rootID, Level: 2, Position: pos, Name: "Book 2"}); err != nil {
			t.Fatalf("PutNode error: %v", err)
		}
	}
	seed("node-x", position.Position{1, 2, 0, 0, 0})
	seed("node-y", position.Position{1, 2, 1, 0, 0})

	res, err := f.h.Reorder(f.ctx, ReorderRequest{StoryID: f.story.ID, NodeID: "node-y", Direction: Up})
	if err != nil {
		t.Fatalf("Reorder error: %v", err)
	}
	if !res.Renumbered {
		t.Fatalf("expected renumber fallback")
	}
	wantPos(t, f.node(z.ID), position.Position{1, 1, 0, 0, 0})
	wantPos(t, f.node("node-y"), position.Position{1, 2, 1, 0, 0})
	wantPos(t, f.node("node-x"), position.Position{1, 3, 0, 0, 0})
	if f.node("node-x").Name != "Book 3" {
		t.Fatalf("expected renumbered sibling renamed; got %q", f.node("node-x").Name)
	}
	f.assertTree()
}

func TestDelete_RehomesEventsToRoot(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	e1 := f.newEvent("opening")
	b := f.appendNode(f.root.ID, 0)
	e2 := f.place(f.newEvent("second").ID, b.ID)
	e3 := f.place(f.newEvent("third").ID, b.ID)
	if e2.Order != 1 || e3.Order != 2 {
		t.Fatalf("expected orders 1,2 on node; got %d,%d", e2.Order, e3.Order)
	}

	res, err := f.h.Delete(f.ctx, f.story.ID, b.ID)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if res.RootID != f.root.ID || len(res.Rehomed) != 2 || res.Rehomed[0] != e2.ID || res.Rehomed[1] != e3.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, tc := range []struct {
		id    string
		order int
	}{{e1.ID, 1}, {e2.ID, 2}, {e3.ID, 3}} {
		ev := f.event(tc.id)
		if !ev.PlacedOn(f.root.ID) || ev.Order != tc.order {
			t.Fatalf("event %s: expected root order %d; got node=%v order=%d", tc.id, tc.order, ev.NodeID, ev.Order)
		}
	}
	if _, err := findNode(f.ctx, f.st, f.story.ID, b.ID); !IsNotFound(err) {
		t.Fatalf("expected node gone; got %v", err)
	}
}

func TestDelete_RejectsRootAndParents(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())

	var pe ProtectedNodeError
	if _, err := f.h.Delete(f.ctx, f.story.ID, f.root.ID); !errors.As(err, &pe) {
		t.Fatalf("expected root to be protected; got %v", err)
	}

	b := f.appendNode(f.root.ID, 0)
	f.appendNode(b.ID, 0)
	ev := f.place(f.newEvent("kept").ID, b.ID)

	_, err := f.h.Delete(f.ctx, f.story.ID, b.ID)
	if !store.IsConstraintViolation(err, store.ConstraintForeignKey) {
		t.Fatalf("expected foreign key violation; got %v", err)
	}
	// The batch is all or nothing: the event stayed put.
	if got := f.event(ev.ID); !got.PlacedOn(b.ID) || got.Order != ev.Order {
		t.Fatalf("expected event untouched; got %+v", got)
	}
}

func TestRename_SetsTitleOnly(t *testing.T) {
	f := newFixture(t, model.DefaultLevelConfig())
	b := f.appendNode(f.root.ID, 0)

	n, err := f.h.Rename(f.ctx, f.story.ID, b.ID, "  The Long Night ")
	if err != nil {
		t.Fatalf("Rename error: %v", err)
	}
	if n.Title != "The Long Night" || n.Name != "Book 1" || n.Position != b.Position {
		t.Fatalf("unexpected node after rename: %+v", n)
	}
	if _, err := f.h.Rename(f.ctx, f.story.ID, "node-missing", "x"); !IsNotFound(err) {
		t.Fatalf("expected not found; got %v", err)
	}
}
