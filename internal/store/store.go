// Package store is the persistence boundary for stories, nodes and events.
//
// The hierarchy and placement managers only need the NodeStore interface:
// read a story's nodes/events, read its level config, and apply an ordered
// batch of row mutations atomically. Two implementations are provided: the
// SQLite store used by the CLI and an in-memory store that enforces the same
// constraints.
package store

import (
	"context"
	"errors"
	"fmt"

	"storyline-cli/internal/model"
	"storyline-cli/internal/position"
)

// ErrNotFound is returned when a story, node or event row does not exist.
var ErrNotFound = errors.New("not found")

// NodeStore is what the core consumes from persistence.
type NodeStore interface {
	ListNodes(ctx context.Context, storyID string) ([]model.Node, error)
	ListEvents(ctx context.Context, storyID string, f EventFilter) ([]model.Event, error)
	// ApplyBatch applies every mutation in order, all or nothing. A uniqueness
	// or referential failure is reported as *ConstraintViolation.
	ApplyBatch(ctx context.Context, storyID string, b Batch) error
	GetLevelConfig(ctx context.Context, storyID string) (model.LevelConfig, error)
}

// EventFilter narrows ListEvents. A zero filter lists every event of the story.
type EventFilter struct {
	NodeID string
}

func (f EventFilter) match(ev model.Event) bool {
	if f.NodeID == "" {
		return true
	}
	return ev.PlacedOn(f.NodeID)
}

// Batch is the unit of atomic write. Op names the logical operation for the
// change log.
type Batch struct {
	Op        string     `json:"op"`
	Mutations []Mutation `json:"mutations"`
}

type MutationKind string

const (
	CreateNode           MutationKind = "createNode"
	UpdateNodePosition   MutationKind = "updateNodePosition"
	UpdateNodeTitle      MutationKind = "updateNodeTitle"
	DeleteNode           MutationKind = "deleteNode"
	UpdateEventPlacement MutationKind = "updateEventPlacement"
	UpdateEventOrder     MutationKind = "updateEventOrder"
)

// Mutation is one row change. Which fields are read depends on Kind.
type Mutation struct {
	Kind MutationKind `json:"kind"`

	// CreateNode.
	Node *model.Node `json:"node,omitempty"`

	// Node updates/deletes.
	NodeID   string             `json:"nodeId,omitempty"`
	Position *position.Position `json:"position,omitempty"`
	Name     string             `json:"name,omitempty"`
	Title    *string            `json:"title,omitempty"`

	// Event updates. TargetNodeID nil means "no node".
	EventID      string  `json:"eventId,omitempty"`
	TargetNodeID *string `json:"targetNodeId,omitempty"`
	Order        int     `json:"order"`
}

func NewNode(n model.Node) Mutation {
	return Mutation{Kind: CreateNode, Node: &n}
}

// MoveNode sets a node's full position vector and its derived name.
func MoveNode(nodeID string, pos position.Position, name string) Mutation {
	return Mutation{Kind: UpdateNodePosition, NodeID: nodeID, Position: &pos, Name: name}
}

func RetitleNode(nodeID, title string) Mutation {
	return Mutation{Kind: UpdateNodeTitle, NodeID: nodeID, Title: &title}
}

func RemoveNode(nodeID string) Mutation {
	return Mutation{Kind: DeleteNode, NodeID: nodeID}
}

func PlaceEvent(eventID string, nodeID *string, order int) Mutation {
	return Mutation{Kind: UpdateEventPlacement, EventID: eventID, TargetNodeID: nodeID, Order: order}
}

func ReorderEvent(eventID string, order int) Mutation {
	return Mutation{Kind: UpdateEventOrder, EventID: eventID, Order: order}
}

// ConstraintKind distinguishes the store constraints a batch can violate.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
)

// ConstraintViolation means the store rejected a batch. Under correct use of
// the managers a uniqueness violation never happens; a foreign key violation
// is how deleting a node that still has children is refused.
type ConstraintViolation struct {
	Kind  ConstraintKind
	Op    string
	Index int // mutation index within the batch
	Err   error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation (%s) in %s at mutation %d: %v", e.Kind, e.Op, e.Index, e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// IsConstraintViolation reports whether err wraps a *ConstraintViolation of
// kind (any kind when kind is empty).
func IsConstraintViolation(err error, kind ConstraintKind) bool {
	var cv *ConstraintViolation
	if !errors.As(err, &cv) {
		return false
	}
	return kind == "" || cv.Kind == kind
}

// validateMutation rejects malformed mutations before they reach a backend.
func validateMutation(m Mutation) error {
	switch m.Kind {
	case CreateNode:
		if m.Node == nil || m.Node.ID == "" {
			return errors.New("createNode: missing node")
		}
		if err := m.Node.Position.Validate(m.Node.Level); err != nil {
			return fmt.Errorf("createNode %s: %w", m.Node.ID, err)
		}
	case UpdateNodePosition:
		if m.NodeID == "" || m.Position == nil {
			return errors.New("updateNodePosition: missing node id or position")
		}
	case UpdateNodeTitle:
		if m.NodeID == "" || m.Title == nil {
			return errors.New("updateNodeTitle: missing node id or title")
		}
	case DeleteNode:
		if m.NodeID == "" {
			return errors.New("deleteNode: missing node id")
		}
	case UpdateEventPlacement, UpdateEventOrder:
		if m.EventID == "" {
			return fmt.Errorf("%s: missing event id", m.Kind)
		}
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
	return nil
}

// checkParent rejects a new node that does not sit below parent or does not
// carry parent's position as its prefix.
func checkParent(parent, n model.Node) error {
	if n.Level <= parent.Level {
		return fmt.Errorf("node %s at level %d must sit below parent %s at level %d", n.ID, n.Level, parent.ID, parent.Level)
	}
	if !n.Position.HasPrefix(parent.Position, parent.Level) {
		return fmt.Errorf("node %s at %s does not extend parent %s at %s", n.ID, n.Position, parent.ID, parent.Position)
	}
	return nil
}

// Store is the full surface the CLI works against: the core's NodeStore plus
// story bookkeeping, event CRUD and the change log.
type Store interface {
	NodeStore
	CreateStory(ctx context.Context, name string, cfg model.LevelConfig) (model.Story, error)
	GetStory(ctx context.Context, id string) (model.Story, error)
	ListStories(ctx context.Context) ([]model.Story, error)
	InsertEvent(ctx context.Context, ev model.Event) error
	DeleteEvent(ctx context.Context, storyID, eventID string) error
	StoryOf(ctx context.Context, id string) (string, error)
	ListChanges(ctx context.Context, storyID string, limit int) ([]model.Change, error)
	Close() error
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Memory)(nil)
)
