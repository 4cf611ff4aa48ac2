package mutate

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ProtectedNodeError is returned for structural edits aimed at the root.
type ProtectedNodeError struct {
	Op     string
	NodeID string
}

func (e ProtectedNodeError) Error() string {
	return fmt.Sprintf("cannot %s root node %s", e.Op, e.NodeID)
}

// ConfigurationError means append found no enabled level below the parent.
type ConfigurationError struct {
	ParentID    string
	ParentLevel int
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("no enabled level below level %d (parent %s); name a deeper level in the story's level config", e.ParentLevel, e.ParentID)
}

// BoundaryError reports a reorder past the first or last sibling. It is an
// expected outcome: nothing was changed.
type BoundaryError struct {
	Kind      string
	ID        string
	Direction Direction
}

func (e BoundaryError) Error() string {
	edge := "first"
	if e.Direction == Down {
		edge = "last"
	}
	return fmt.Sprintf("%s %s is already %s among its siblings", e.Kind, e.ID, edge)
}

type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsBoundary reports whether err is a BoundaryError, i.e. "nothing to do".
func IsBoundary(err error) bool {
	var be BoundaryError
	return errors.As(err, &be)
}

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
