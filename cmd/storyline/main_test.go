package main

import (
	"reflect"
	"testing"
)

func TestRewriteNodeShortcut(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"storyline"},
			want: []string{"storyline"},
		},
		{
			name: "node id first token",
			in:   []string{"storyline", "node-abc123"},
			want: []string{"storyline", "layout", "node-abc123"},
		},
		{
			name: "node id after value flag",
			in:   []string{"storyline", "--db", "./tmp.sqlite", "node-abc123"},
			want: []string{"storyline", "--db", "./tmp.sqlite", "layout", "node-abc123"},
		},
		{
			name: "node id after equals flag",
			in:   []string{"storyline", "--db=./tmp.sqlite", "node-abc123"},
			want: []string{"storyline", "--db=./tmp.sqlite", "layout", "node-abc123"},
		},
		{
			name: "node id after bool flag",
			in:   []string{"storyline", "--pretty", "node-abc123"},
			want: []string{"storyline", "--pretty", "layout", "node-abc123"},
		},
		{
			name: "subcommand not rewritten",
			in:   []string{"storyline", "nodes", "delete", "node-abc123"},
			want: []string{"storyline", "nodes", "delete", "node-abc123"},
		},
		{
			name: "bare prefix not rewritten",
			in:   []string{"storyline", "node-"},
			want: []string{"storyline", "node-"},
		},
		{
			name: "double dash stops rewriting",
			in:   []string{"storyline", "--", "node-abc123"},
			want: []string{"storyline", "--", "node-abc123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteNodeShortcut(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteNodeShortcut:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
