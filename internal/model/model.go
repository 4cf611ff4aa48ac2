package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"storyline-cli/internal/position"
)

// MaxLevel is the deepest supported hierarchy level.
const MaxLevel = position.Size

type Story struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Levels    LevelConfig `json:"levels"`
	CreatedAt time.Time   `json:"createdAt"`
}

// LevelConfig names the levels of a story's hierarchy.
//
// A level with an empty name is disabled: append skips over it when picking the
// next level below a parent. A persisted level numbers its nodes across the
// whole story instead of restarting under each parent.
type LevelConfig struct {
	Level1Name    string `json:"level1Name" toml:"level1_name" mapstructure:"level1_name"`
	Level2Name    string `json:"level2Name,omitempty" toml:"level2_name,omitempty" mapstructure:"level2_name"`
	Level3Name    string `json:"level3Name,omitempty" toml:"level3_name,omitempty" mapstructure:"level3_name"`
	Level3Persist bool   `json:"level3Persist" toml:"level3_persist" mapstructure:"level3_persist"`
	Level4Name    string `json:"level4Name,omitempty" toml:"level4_name,omitempty" mapstructure:"level4_name"`
	Level4Persist bool   `json:"level4Persist" toml:"level4_persist" mapstructure:"level4_persist"`
	Level5Name    string `json:"level5Name" toml:"level5_name" mapstructure:"level5_name"`
	Level5Persist bool   `json:"level5Persist" toml:"level5_persist" mapstructure:"level5_persist"`
}

// DefaultLevelConfig is the layout used when a story is created without one.
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{
		Level1Name:    "Story",
		Level2Name:    "Book",
		Level3Name:    "Part",
		Level4Name:    "Chapter",
		Level4Persist: true,
		Level5Name:    "Scene",
	}
}

// Name returns the configured name of level, or "" when the level is disabled
// or out of range.
func (c LevelConfig) Name(level int) string {
	switch level {
	case 1:
		return c.Level1Name
	case 2:
		return c.Level2Name
	case 3:
		return c.Level3Name
	case 4:
		return c.Level4Name
	case 5:
		return c.Level5Name
	default:
		return ""
	}
}

func (c LevelConfig) Enabled(level int) bool { return c.Name(level) != "" }

// Validate requires the root and leaf levels to be named.
func (c LevelConfig) Validate() error {
	if strings.TrimSpace(c.Level1Name) == "" {
		return errors.New("level config: level1Name is required")
	}
	if strings.TrimSpace(c.Level5Name) == "" {
		return errors.New("level config: level5Name is required")
	}
	return nil
}

// Persisted reports whether level numbers its nodes story-wide. Levels 1 and 2
// always number per parent.
func (c LevelConfig) Persisted(level int) bool {
	switch level {
	case 3:
		return c.Level3Persist
	case 4:
		return c.Level4Persist
	case 5:
		return c.Level5Persist
	default:
		return false
	}
}

// Node is one entry of a story's hierarchy.
type Node struct {
	ID       string            `json:"id"`
	StoryID  string            `json:"storyId"`
	ParentID *string           `json:"parentId,omitempty"`
	Level    int               `json:"level"`
	Position position.Position `json:"position"`

	// Name is derived from the level name and position value ("Chapter 3").
	Name  string `json:"name"`
	Title string `json:"title"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsRoot reports whether n is the story's root node.
func (n Node) IsRoot() bool { return n.Level == 1 && n.ParentID == nil }

// Label is the text shown for n: its title when set, otherwise its name.
func (n Node) Label() string {
	if n.Title != "" {
		return n.Title
	}
	return n.Name
}

// Value returns n's position value at its own level.
func (n Node) Value() int { return n.Position.Value(position.LevelIndex(n.Level)) }

// Event is a leaf entry placed on at most one node.
type Event struct {
	ID      string  `json:"id"`
	StoryID string  `json:"storyId"`
	NodeID  *string `json:"timelineId,omitempty"`
	Order   int     `json:"order"`
	Title   string  `json:"title"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlacedOn reports whether e is placed on nodeID.
func (e Event) PlacedOn(nodeID string) bool { return e.NodeID != nil && *e.NodeID == nodeID }

// Change is one entry of a story's change log: a single applied batch.
type Change struct {
	ID        string          `json:"id"`
	StoryID   string          `json:"storyId"`
	Op        string          `json:"op"`
	Mutations int             `json:"mutations"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
