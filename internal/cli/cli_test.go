package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

type cliEnv struct {
	t  *testing.T
	db string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	// Keep config discovery away from the developer's files.
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return cliEnv{t: t, db: filepath.Join(dir, "story.sqlite")}
}

func (e cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// ok runs args, expects success and decodes the envelope into v.
func (e cliEnv) ok(v any, args ...string) {
	e.t.Helper()
	out, errOut, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("%v: unexpected error %v\nstderr: %s", args, err, errOut)
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		e.t.Fatalf("%v: decode %q: %v", args, out, err)
	}
}

type nodeOut struct {
	Data struct {
		ID       string `json:"id"`
		ParentID string `json:"parentId"`
		Level    int    `json:"level"`
		Position []int  `json:"position"`
		Name     string `json:"name"`
		Title    string `json:"title"`
	} `json:"data"`
}

type eventOut struct {
	Data struct {
		ID     string `json:"id"`
		NodeID string `json:"timelineId"`
		Order  int    `json:"order"`
	} `json:"data"`
}

type reorderOut struct {
	Data struct {
		ID          string `json:"id"`
		SwappedWith string `json:"swappedWith"`
		Renumbered  bool   `json:"renumbered"`
	} `json:"data"`
	Meta struct {
		Noop   bool   `json:"noop"`
		Reason string `json:"reason"`
	} `json:"meta"`
}

func TestCLI_EndToEnd(t *testing.T) {
	env := newCLIEnv(t)

	var story struct {
		Data struct {
			ID     string `json:"id"`
			RootID string `json:"rootId"`
			Nodes  int    `json:"nodes"`
		} `json:"data"`
	}
	env.ok(&story, "stories", "create", "Saga")
	if story.Data.RootID == "" || story.Data.Nodes != 1 {
		t.Fatalf("expected a story with only its root; got %+v", story.Data)
	}
	root := story.Data.RootID

	var b1, b2, pro nodeOut
	env.ok(&b1, "nodes", "append", root, "--title", "Book One")
	env.ok(&b2, "nodes", "append", root)
	if b1.Data.Level != 2 || b1.Data.ParentID != root {
		t.Fatalf("expected level-2 child of root; got %+v", b1.Data)
	}
	if b2.Data.Position[1] != 2 {
		t.Fatalf("expected second book at value 2; got %v", b2.Data.Position)
	}

	env.ok(&pro, "nodes", "insert", b1.Data.ID, "--before", "--title", "Prologue")
	if pro.Data.Position[1] != 1 {
		t.Fatalf("expected inserted node at value 1; got %v", pro.Data.Position)
	}

	var noop reorderOut
	env.ok(&noop, "nodes", "reorder", pro.Data.ID, "up")
	if !noop.Meta.Noop || noop.Meta.Reason == "" {
		t.Fatalf("expected noop meta for first sibling moving up; got %+v", noop)
	}
	var swapped reorderOut
	env.ok(&swapped, "nodes", "reorder", pro.Data.ID, "down")
	if swapped.Data.SwappedWith != b1.Data.ID || swapped.Meta.Noop {
		t.Fatalf("expected swap with Book One; got %+v", swapped)
	}

	var e1, e2 eventOut
	env.ok(&e1, "events", "create", "Arrival", "--node", b1.Data.ID)
	env.ok(&e2, "events", "create", "Departure", "--node", b1.Data.ID)
	if e1.Data.NodeID != b1.Data.ID || e2.Data.Order != e1.Data.Order+1 {
		t.Fatalf("expected events appended on Book One; got %+v %+v", e1.Data, e2.Data)
	}
	var evSwap reorderOut
	env.ok(&evSwap, "events", "reorder", e2.Data.ID, "up")
	if evSwap.Data.SwappedWith != e1.Data.ID {
		t.Fatalf("expected event swap; got %+v", evSwap)
	}

	var lay struct {
		Data []struct {
			Kind    string `json:"kind"`
			X       int    `json:"x"`
			EventID string `json:"eventId"`
		} `json:"data"`
		Meta struct {
			Gap int `json:"gap"`
		} `json:"meta"`
	}
	env.ok(&lay, "layout", b1.Data.ID, "--gap", "10")
	if lay.Meta.Gap != 10 || len(lay.Data) != 6 {
		t.Fatalf("expected 2 events, 2 edges, 2 navs at gap 10; got %+v", lay)
	}
	for _, it := range lay.Data {
		if it.EventID == e2.Data.ID && it.X != -20 {
			t.Fatalf("expected Departure first (x=-20) after moving up; got %d", it.X)
		}
	}

	var ch nodeOut
	env.ok(&ch, "nodes", "append", b1.Data.ID)
	if ch.Data.Level != 3 {
		t.Fatalf("expected level-3 child; got %+v", ch.Data)
	}
	_, errOut, err := env.run("nodes", "delete", b1.Data.ID)
	if err == nil || !strings.Contains(errOut, "still has children") {
		t.Fatalf("expected delete with children to fail; err=%v stderr=%s", err, errOut)
	}

	var del struct {
		Data struct {
			RootID  string   `json:"rootId"`
			Rehomed []string `json:"rehomedEvents"`
		} `json:"data"`
	}
	env.ok(nil, "nodes", "delete", ch.Data.ID)
	env.ok(&del, "nodes", "delete", b1.Data.ID)
	if del.Data.RootID != root || len(del.Data.Rehomed) != 2 {
		t.Fatalf("expected both events re-homed to root; got %+v", del.Data)
	}

	var changes struct {
		Data []struct {
			Op string `json:"op"`
		} `json:"data"`
	}
	env.ok(&changes, "changes", "--limit", "2")
	if len(changes.Data) != 2 || changes.Data[0].Op != "node.delete" {
		t.Fatalf("expected newest change first; got %+v", changes.Data)
	}
}

func TestCLI_RejectsRootAndBadArgs(t *testing.T) {
	env := newCLIEnv(t)
	var story struct {
		Data struct {
			RootID string `json:"rootId"`
		} `json:"data"`
	}
	env.ok(&story, "stories", "create", "Saga")

	if _, errOut, err := env.run("nodes", "delete", story.Data.RootID); err == nil || !strings.Contains(errOut, "root") {
		t.Fatalf("expected root delete rejected; err=%v stderr=%s", err, errOut)
	}
	if _, _, err := env.run("nodes", "insert", story.Data.RootID); err == nil {
		t.Fatalf("expected insert without --before/--after to fail")
	}
	if _, errOut, err := env.run("nodes", "reorder", story.Data.RootID, "sideways"); err == nil || !strings.Contains(errOut, "direction") {
		t.Fatalf("expected bad direction rejected; err=%v stderr=%s", err, errOut)
	}
	if _, errOut, err := env.run("layout", "node-missing"); err == nil || !strings.Contains(errOut, "node-missing") {
		t.Fatalf("expected unknown node reported; err=%v stderr=%s", err, errOut)
	}
}

func TestCLI_OutputFormats(t *testing.T) {
	env := newCLIEnv(t)
	env.ok(nil, "stories", "create", "Saga")

	out, _, err := env.run("--format", "edn", "stories", "list")
	if err != nil {
		t.Fatalf("edn list error: %v", err)
	}
	if !strings.HasPrefix(out, "{:data [{") || !strings.Contains(out, `:name "Saga"`) {
		t.Fatalf("unexpected edn output %q", out)
	}

	out, _, err = env.run("--format", "toml", "stories", "show")
	if err != nil {
		t.Fatalf("toml show error: %v", err)
	}
	if !strings.Contains(out, "[data]") || !strings.Contains(out, "Saga") {
		t.Fatalf("unexpected toml output %q", out)
	}

	if _, _, err := env.run("--format", "yaml", "stories", "list"); err == nil {
		t.Fatalf("expected unknown format rejected")
	}
}

func TestCLI_StoryFlagFromEnv(t *testing.T) {
	env := newCLIEnv(t)
	var a, b struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	env.ok(&a, "stories", "create", "First")
	env.ok(&b, "stories", "create", "Second")

	if _, errOut, err := env.run("stories", "show"); err == nil || !strings.Contains(errOut, "--story") {
		t.Fatalf("expected ambiguity error; err=%v stderr=%s", err, errOut)
	}

	t.Setenv("STORYLINE_STORY", b.Data.ID)
	var shown struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	env.ok(&shown, "stories", "show")
	if shown.Data.Name != "Second" {
		t.Fatalf("expected STORYLINE_STORY to pick the story; got %q", shown.Data.Name)
	}
}

func TestCLI_ExportStory(t *testing.T) {
	env := newCLIEnv(t)
	var story struct {
		Data struct {
			ID     string `json:"id"`
			RootID string `json:"rootId"`
		} `json:"data"`
	}
	env.ok(&story, "stories", "create", "Saga")
	var b1 nodeOut
	env.ok(&b1, "nodes", "append", story.Data.RootID, "--title", "Departure")
	env.ok(nil, "events", "create", "Arrival", "--node", b1.Data.ID)

	out, errOut, err := env.run("stories", "export")
	if err != nil {
		t.Fatalf("export error: %v\n%s", err, errOut)
	}
	for _, want := range []string{"# Saga", "## " + b1.Data.Name + ": Departure", "1. Arrival"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in export:\n%s", want, out)
		}
	}

	dir := t.TempDir()
	var res struct {
		Data struct {
			Written []string `json:"written"`
		} `json:"data"`
	}
	env.ok(&res, "stories", "export", "--to", dir, "--html")
	if len(res.Data.Written) != 2 || !strings.HasSuffix(res.Data.Written[1], story.Data.ID+".html") {
		t.Fatalf("expected md and html written; got %v", res.Data.Written)
	}
	if _, _, err := env.run("stories", "export", "--to", dir); err == nil {
		t.Fatalf("expected existing export to need --overwrite")
	}
}

func TestCLI_Docs(t *testing.T) {
	env := newCLIEnv(t)

	var list struct {
		Data struct {
			Topics []string `json:"topics"`
		} `json:"data"`
	}
	env.ok(&list, "docs")
	if len(list.Data.Topics) == 0 {
		t.Fatalf("expected docs topics")
	}

	out, _, err := env.run("docs", "layout", "--raw")
	if err != nil || !strings.HasPrefix(out, "# Layout") {
		t.Fatalf("expected raw layout doc; err=%v out=%q", err, out)
	}
	if _, _, err := env.run("docs", "missing"); err == nil {
		t.Fatalf("expected unknown topic to fail")
	}
}
