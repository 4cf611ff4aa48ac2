package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyline-cli/internal/model"
	"storyline-cli/internal/position"
	"storyline-cli/internal/tree"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// schema is executed on every open; IF NOT EXISTS keeps it idempotent.
//
// The nodes table carries the two constraints the managers rely on: a story
// never holds two identical position vectors, and a node cannot be removed
// while children still reference it.
const schema = `
CREATE TABLE IF NOT EXISTS stories (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	created_at_unixms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS level_configs (
	story_id       TEXT PRIMARY KEY REFERENCES stories(id) ON DELETE CASCADE,
	level1_name    TEXT NOT NULL,
	level2_name    TEXT NOT NULL DEFAULT '',
	level3_name    TEXT NOT NULL DEFAULT '',
	level3_persist INTEGER NOT NULL DEFAULT 0,
	level4_name    TEXT NOT NULL DEFAULT '',
	level4_persist INTEGER NOT NULL DEFAULT 0,
	level5_name    TEXT NOT NULL DEFAULT '',
	level5_persist INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS nodes (
	id                TEXT PRIMARY KEY,
	story_id          TEXT NOT NULL REFERENCES stories(id),
	parent_id         TEXT REFERENCES nodes(id) ON DELETE RESTRICT,
	level             INTEGER NOT NULL CHECK (level BETWEEN 1 AND 5),
	p1                INTEGER NOT NULL DEFAULT 0,
	p2                INTEGER NOT NULL DEFAULT 0,
	p3                INTEGER NOT NULL DEFAULT 0,
	p4                INTEGER NOT NULL DEFAULT 0,
	p5                INTEGER NOT NULL DEFAULT 0,
	name              TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	created_at_unixms INTEGER NOT NULL,
	updated_at_unixms INTEGER NOT NULL,
	UNIQUE (story_id, p1, p2, p3, p4, p5)
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);

CREATE TABLE IF NOT EXISTS events (
	id                TEXT PRIMARY KEY,
	story_id          TEXT NOT NULL REFERENCES stories(id),
	node_id           TEXT REFERENCES nodes(id),
	ord               INTEGER NOT NULL DEFAULT 0,
	title             TEXT NOT NULL DEFAULT '',
	created_at_unixms INTEGER NOT NULL,
	updated_at_unixms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_node ON events(node_id, ord, updated_at_unixms);
CREATE INDEX IF NOT EXISTS idx_events_story ON events(story_id);

CREATE TABLE IF NOT EXISTS changes (
	id                TEXT PRIMARY KEY,
	story_id          TEXT NOT NULL,
	op                TEXT NOT NULL,
	mutation_count    INTEGER NOT NULL,
	payload_json      TEXT NOT NULL,
	created_at_unixms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changes_story ON changes(story_id, created_at_unixms);
`

// SQLite is the SQLite-backed Store.
type SQLite struct {
	db   *sql.DB
	path string
	log  *zap.Logger
	now  func() time.Time
}

// OpenSQLite opens (or creates) the database at path and migrates it.
// path may be ":memory:".
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// One connection: pragmas are per-connection and SQLite has a single
	// writer anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", strings.TrimSuffix(p, ";"), err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLite{db: db, path: path, log: log, now: time.Now}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Path is the database file path.
func (s *SQLite) Path() string { return s.path }

// CreateStory creates the story, its level config and its root node in one
// transaction.
func (s *SQLite) CreateStory(ctx context.Context, name string, cfg model.LevelConfig) (model.Story, error) {
	if err := cfg.Validate(); err != nil {
		return model.Story{}, err
	}
	now := s.now().UTC()
	st := model.Story{ID: NewID("story"), Name: strings.TrimSpace(name), Levels: cfg, CreatedAt: now}
	root := newRootNode(st, now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Story{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `INSERT INTO stories(id, name, created_at_unixms) VALUES(?, ?, ?)`,
		st.ID, st.Name, now.UnixMilli()); err != nil {
		return model.Story{}, fmt.Errorf("store: insert story: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO level_configs(
		story_id, level1_name, level2_name,
		level3_name, level3_persist, level4_name, level4_persist, level5_name, level5_persist
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, cfg.Level1Name, cfg.Level2Name,
		cfg.Level3Name, boolToInt(cfg.Level3Persist),
		cfg.Level4Name, boolToInt(cfg.Level4Persist),
		cfg.Level5Name, boolToInt(cfg.Level5Persist),
	); err != nil {
		return model.Story{}, fmt.Errorf("store: insert level config: %w", err)
	}
	if err := insertNode(ctx, tx, root, now.UnixMilli()); err != nil {
		return model.Story{}, fmt.Errorf("store: insert root: %w", err)
	}
	b := Batch{Op: "story.create", Mutations: []Mutation{NewNode(root)}}
	if err := appendChange(ctx, tx, st.ID, b, now.UnixMilli()); err != nil {
		return model.Story{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Story{}, fmt.Errorf("store: commit story: %w", err)
	}
	s.log.Debug("story created", zap.String("story", st.ID), zap.String("root", root.ID))
	return st, nil
}

func newRootNode(st model.Story, now time.Time) model.Node {
	return model.Node{
		ID:        NewID("node"),
		StoryID:   st.ID,
		Level:     1,
		Position:  position.Position{1, 0, 0, 0, 0},
		Name:      tree.NodeName(st.Levels, 1, 1),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *SQLite) GetStory(ctx context.Context, id string) (model.Story, error) {
	var st model.Story
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at_unixms FROM stories WHERE id = ?`, id).Scan(&st.ID, &st.Name, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Story{}, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Story{}, fmt.Errorf("store: get story %s: %w", id, err)
	}
	st.CreatedAt = fromMillis(ms)
	cfg, err := s.GetLevelConfig(ctx, id)
	if err != nil {
		return model.Story{}, err
	}
	st.Levels = cfg
	return st, nil
}

func (s *SQLite) ListStories(ctx context.Context) ([]model.Story, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM stories ORDER BY created_at_unixms, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list stories: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan story: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list stories: %w", err)
	}
	out := make([]model.Story, 0, len(ids))
	for _, id := range ids {
		st, err := s.GetStory(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *SQLite) GetLevelConfig(ctx context.Context, storyID string) (model.LevelConfig, error) {
	var c model.LevelConfig
	var p3, p4, p5 int
	err := s.db.QueryRowContext(ctx, `SELECT
		level1_name, level2_name, level3_name, level3_persist,
		level4_name, level4_persist, level5_name, level5_persist
		FROM level_configs WHERE story_id = ?`, storyID).Scan(
		&c.Level1Name, &c.Level2Name, &c.Level3Name, &p3,
		&c.Level4Name, &p4, &c.Level5Name, &p5,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LevelConfig{}, fmt.Errorf("level config for story %s: %w", storyID, ErrNotFound)
	}
	if err != nil {
		return model.LevelConfig{}, fmt.Errorf("store: get level config %s: %w", storyID, err)
	}
	c.Level3Persist, c.Level4Persist, c.Level5Persist = p3 != 0, p4 != 0, p5 != 0
	return c, nil
}

const nodeColumns = `id, story_id, parent_id, level, p1, p2, p3, p4, p5, name, title, created_at_unixms, updated_at_unixms`

func (s *SQLite) ListNodes(ctx context.Context, storyID string) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE story_id = ? ORDER BY p1, p2, p3, p4, p5, id`, storyID)
	if err != nil {
		return nil, fmt.Errorf("store: list nodes %s: %w", storyID, err)
	}
	defer rows.Close()

	out := []model.Node{}
	for rows.Next() {
		var n model.Node
		var parent sql.NullString
		var created, updated int64
		if err := rows.Scan(&n.ID, &n.StoryID, &parent, &n.Level,
			&n.Position[0], &n.Position[1], &n.Position[2], &n.Position[3], &n.Position[4],
			&n.Name, &n.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: scan node: %w", err)
		}
		if parent.Valid {
			p := parent.String
			n.ParentID = &p
		}
		n.CreatedAt, n.UpdatedAt = fromMillis(created), fromMillis(updated)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list nodes %s: %w", storyID, err)
	}
	return out, nil
}

func (s *SQLite) ListEvents(ctx context.Context, storyID string, f EventFilter) ([]model.Event, error) {
	q := `SELECT id, story_id, node_id, ord, title, created_at_unixms, updated_at_unixms FROM events WHERE story_id = ?`
	args := []any{storyID}
	if f.NodeID != "" {
		q += ` AND node_id = ?`
		args = append(args, f.NodeID)
	}
	q += ` ORDER BY node_id, ord, updated_at_unixms, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list events %s: %w", storyID, err)
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var ev model.Event
		var node sql.NullString
		var created, updated int64
		if err := rows.Scan(&ev.ID, &ev.StoryID, &node, &ev.Order, &ev.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		if node.Valid {
			n := node.String
			ev.NodeID = &n
		}
		ev.CreatedAt, ev.UpdatedAt = fromMillis(created), fromMillis(updated)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list events %s: %w", storyID, err)
	}
	return out, nil
}

// InsertEvent creates an event row as given.
func (s *SQLite) InsertEvent(ctx context.Context, ev model.Event) error {
	if ev.ID == "" || ev.StoryID == "" {
		return errors.New("store: insert event: missing id or story")
	}
	now := s.now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx, `INSERT INTO events(id, story_id, node_id, ord, title, created_at_unixms, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?, ?)`, ev.ID, ev.StoryID, nullable(ev.NodeID), ev.Order, ev.Title, now, now)
	if err != nil {
		if kind, ok := constraintKind(err); ok {
			return &ConstraintViolation{Kind: kind, Op: "event.create", Err: err}
		}
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteEvent(ctx context.Context, storyID, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND story_id = ?`, eventID, storyID)
	if err != nil {
		return fmt.Errorf("store: delete event %s: %w", eventID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return nil
}

// StoryOf returns the story owning the node or event with the given id.
func (s *SQLite) StoryOf(ctx context.Context, id string) (string, error) {
	var storyID string
	err := s.db.QueryRowContext(ctx, `SELECT story_id FROM nodes WHERE id = ?
		UNION ALL SELECT story_id FROM events WHERE id = ?
		UNION ALL SELECT id FROM stories WHERE id = ?
		LIMIT 1`, id, id, id).Scan(&storyID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("store: resolve story of %s: %w", id, err)
	}
	return storyID, nil
}

// ApplyBatch applies b inside one transaction. Mutations run in list order so
// each statement sees the rows written by the previous ones; the caller's
// ordering is what keeps the uniqueness constraint satisfied throughout.
func (s *SQLite) ApplyBatch(ctx context.Context, storyID string, b Batch) error {
	for i, m := range b.Mutations {
		if err := validateMutation(m); err != nil {
			return fmt.Errorf("store: %s mutation %d: %w", b.Op, i, err)
		}
	}
	if len(b.Mutations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	nowMs := s.now().UTC().UnixMilli()
	for i, m := range b.Mutations {
		if err := applyMutation(ctx, tx, storyID, m, nowMs); err != nil {
			var cv *ConstraintViolation
			if errors.As(err, &cv) {
				cv.Op, cv.Index = b.Op, i
				return cv
			}
			if kind, ok := constraintKind(err); ok {
				return &ConstraintViolation{Kind: kind, Op: b.Op, Index: i, Err: err}
			}
			return fmt.Errorf("store: %s mutation %d (%s): %w", b.Op, i, m.Kind, err)
		}
	}
	if err := appendChange(ctx, tx, storyID, b, nowMs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", b.Op, err)
	}
	s.log.Debug("batch applied",
		zap.String("story", storyID),
		zap.String("op", b.Op),
		zap.Int("mutations", len(b.Mutations)),
	)
	return nil
}

func applyMutation(ctx context.Context, tx *sql.Tx, storyID string, m Mutation, nowMs int64) error {
	switch m.Kind {
	case CreateNode:
		n := *m.Node
		if n.StoryID == "" {
			n.StoryID = storyID
		}
		if n.StoryID != storyID {
			return fmt.Errorf("node %s belongs to story %s", n.ID, n.StoryID)
		}
		if n.ParentID != nil {
			parent, err := parentNode(ctx, tx, storyID, *n.ParentID)
			if err != nil {
				return err
			}
			if err := checkParent(parent, n); err != nil {
				return err
			}
		}
		return insertNode(ctx, tx, n, nowMs)

	case UpdateNodePosition:
		p := *m.Position
		return expectRow(tx.ExecContext(ctx, `UPDATE nodes SET p1 = ?, p2 = ?, p3 = ?, p4 = ?, p5 = ?, name = ?, updated_at_unixms = ?
			WHERE id = ? AND story_id = ?`, p[0], p[1], p[2], p[3], p[4], m.Name, nowMs, m.NodeID, storyID))("node", m.NodeID)

	case UpdateNodeTitle:
		return expectRow(tx.ExecContext(ctx, `UPDATE nodes SET title = ?, updated_at_unixms = ? WHERE id = ? AND story_id = ?`,
			*m.Title, nowMs, m.NodeID, storyID))("node", m.NodeID)

	case DeleteNode:
		return expectRow(tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ? AND story_id = ?`, m.NodeID, storyID))("node", m.NodeID)

	case UpdateEventPlacement:
		if m.TargetNodeID != nil {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM nodes WHERE id = ? AND story_id = ?`, *m.TargetNodeID, storyID).Scan(&n); err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("node %s: %w", *m.TargetNodeID, ErrNotFound)
			}
		}
		return expectRow(tx.ExecContext(ctx, `UPDATE events SET node_id = ?, ord = ?, updated_at_unixms = ? WHERE id = ? AND story_id = ?`,
			nullable(m.TargetNodeID), m.Order, nowMs, m.EventID, storyID))("event", m.EventID)

	case UpdateEventOrder:
		return expectRow(tx.ExecContext(ctx, `UPDATE events SET ord = ?, updated_at_unixms = ? WHERE id = ? AND story_id = ?`,
			m.Order, nowMs, m.EventID, storyID))("event", m.EventID)
	}
	return fmt.Errorf("unknown mutation kind %q", m.Kind)
}

// parentNode reads the parent row as the transaction sees it, so earlier
// mutations of the same batch are visible.
func parentNode(ctx context.Context, tx *sql.Tx, storyID, id string) (model.Node, error) {
	p := model.Node{ID: id, StoryID: storyID}
	err := tx.QueryRowContext(ctx, `SELECT level, p1, p2, p3, p4, p5 FROM nodes WHERE id = ? AND story_id = ?`, id, storyID).
		Scan(&p.Level, &p.Position[0], &p.Position[1], &p.Position[2], &p.Position[3], &p.Position[4])
	if errors.Is(err, sql.ErrNoRows) {
		return model.Node{}, &ConstraintViolation{Kind: ConstraintForeignKey, Err: fmt.Errorf("parent %s missing", id)}
	}
	if err != nil {
		return model.Node{}, fmt.Errorf("read parent %s: %w", id, err)
	}
	return p, nil
}

func insertNode(ctx context.Context, tx *sql.Tx, n model.Node, nowMs int64) error {
	p := n.Position
	_, err := tx.ExecContext(ctx, `INSERT INTO nodes(`+nodeColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.StoryID, nullable(n.ParentID), n.Level, p[0], p[1], p[2], p[3], p[4], n.Name, n.Title, nowMs, nowMs)
	return err
}

// expectRow turns a zero-row update or delete into ErrNotFound.
func expectRow(res sql.Result, err error) func(kind, id string) error {
	return func(kind, id string) error {
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return nil
	}
}

func appendChange(ctx context.Context, tx *sql.Tx, storyID string, b Batch, nowMs int64) error {
	payload, err := json.Marshal(b.Mutations)
	if err != nil {
		return fmt.Errorf("store: encode change payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO changes(id, story_id, op, mutation_count, payload_json, created_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), storyID, b.Op, len(b.Mutations), string(payload), nowMs); err != nil {
		return fmt.Errorf("store: append change: %w", err)
	}
	return nil
}

// ListChanges returns the most recent changes of a story, newest first.
func (s *SQLite) ListChanges(ctx context.Context, storyID string, limit int) ([]model.Change, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, story_id, op, mutation_count, payload_json, created_at_unixms
		FROM changes WHERE story_id = ? ORDER BY created_at_unixms DESC, rowid DESC LIMIT ?`, storyID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list changes: %w", err)
	}
	defer rows.Close()

	out := []model.Change{}
	for rows.Next() {
		var c model.Change
		var payload string
		var ms int64
		if err := rows.Scan(&c.ID, &c.StoryID, &c.Op, &c.Mutations, &payload, &ms); err != nil {
			return nil, fmt.Errorf("store: scan change: %w", err)
		}
		c.Payload = json.RawMessage(payload)
		c.CreatedAt = fromMillis(ms)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list changes: %w", err)
	}
	return out, nil
}

func constraintKind(err error) (ConstraintKind, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ConstraintUnique, true
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ConstraintForeignKey, true
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ConstraintUnique, true
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ConstraintForeignKey, true
	}
	return "", false
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
