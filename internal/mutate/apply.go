package mutate

import (
	"context"

	"storyline-cli/internal/model"
	"storyline-cli/internal/store"
	"storyline-cli/internal/tree"

	"go.uber.org/zap"
)

// applyBatch submits muts as one atomic batch. Constraint violations are
// passed through untouched; a uniqueness failure means the planning above
// produced a colliding vector and is logged as such.
func applyBatch(ctx context.Context, st store.NodeStore, log *zap.Logger, storyID, op string, muts []store.Mutation) error {
	err := st.ApplyBatch(ctx, storyID, store.Batch{Op: op, Mutations: muts})
	if err != nil {
		if store.IsConstraintViolation(err, store.ConstraintUnique) {
			log.Error("position collision in planned batch",
				zap.String("story", storyID),
				zap.String("op", op),
				zap.Int("mutations", len(muts)),
				zap.Error(err),
			)
		}
		return err
	}
	log.Debug("applied",
		zap.String("story", storyID),
		zap.String("op", op),
		zap.Int("mutations", len(muts)),
	)
	return nil
}

// loadIndex reads a story's nodes (and optionally events) and indexes them.
func loadIndex(ctx context.Context, st store.NodeStore, storyID string, withEvents bool) (*tree.Index, []model.Node, []model.Event, error) {
	nodes, err := st.ListNodes(ctx, storyID)
	if err != nil {
		return nil, nil, nil, err
	}
	var events []model.Event
	if withEvents {
		events, err = st.ListEvents(ctx, storyID, store.EventFilter{})
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return tree.Build(nodes, events), nodes, events, nil
}

func findNode(ctx context.Context, st store.NodeStore, storyID, id string) (model.Node, error) {
	nodes, err := st.ListNodes(ctx, storyID)
	if err != nil {
		return model.Node{}, err
	}
	for _, n := range nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return model.Node{}, NotFoundError{Kind: "node", ID: id}
}

func findEvent(ctx context.Context, st store.NodeStore, storyID, id string) (model.Event, error) {
	evs, err := st.ListEvents(ctx, storyID, store.EventFilter{})
	if err != nil {
		return model.Event{}, err
	}
	for _, ev := range evs {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.Event{}, NotFoundError{Kind: "event", ID: id}
}

// ReorderResult describes an applied reorder of a node or event.
type ReorderResult struct {
	ID          string `json:"id"`
	SwappedWith string `json:"swappedWith"`
	// Renumbered is set when the two slots held equal values and the whole
	// sibling list was renumbered instead of swapped.
	Renumbered bool `json:"renumbered"`
	Mutations  int  `json:"mutations"`
}
