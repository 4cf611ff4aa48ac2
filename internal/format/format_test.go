package format

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	ID       string   `json:"id"`
	Position []int    `json:"position"`
	Parent   *string  `json:"parentId"`
	Ratio    float64  `json:"ratio"`
	Tags     []string `json:"tags"`
}

func envelope() map[string]any {
	return map[string]any{"data": sample{ID: "node-1", Position: []int{1, 2, 0, 0, 0}, Ratio: 0.5, Tags: []string{}}}
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Format{"": JSON, "JSON": JSON, "edn": EDN, " toml ": TOML} {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Fatalf("Parse(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := Parse("yaml"); err == nil {
		t.Fatalf("expected yaml to be rejected")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, envelope(), JSON, false); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	want := `{"data":{"id":"node-1","position":[1,2,0,0,0],"parentId":null,"ratio":0.5,"tags":[]}}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q\nwant %q", buf.String(), want)
	}
}

func TestWriteEDN(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, envelope(), EDN, false); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	want := `{:data {:id "node-1" :parentId nil :position [1 2 0 0 0] :ratio 0.5 :tags []}}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q\nwant %q", buf.String(), want)
	}

	buf.Reset()
	if err := WriteEDN(&buf, []int{1}, true); err != nil {
		t.Fatalf("WriteEDN error: %v", err)
	}
	if buf.String() != "[\n  1\n]\n" {
		t.Fatalf("unexpected pretty output %q", buf.String())
	}
}

func TestWriteTOML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, envelope(), TOML, false); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[data]", "node-1", "position = [1, 2, 0, 0, 0]", "ratio = 0.5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "parentId") {
		t.Fatalf("expected null field dropped:\n%s", out)
	}

	if err := WriteTOML(&buf, []int{1}); err == nil {
		t.Fatalf("expected top-level array to be rejected")
	}
}
