package publish

import (
	"bytes"
	"fmt"
	"strings"

	"storyline-cli/internal/model"
	"storyline-cli/internal/tree"
)

// RenderStoryMarkdown renders the whole hierarchy depth first: one heading per
// node (the root is the document title) with its events as a numbered list.
// Events with no node, or whose node is gone, are listed at the end.
func RenderStoryMarkdown(st model.Story, ix *tree.Index) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	title := strings.TrimSpace(st.Name)
	if title == "" {
		title = st.ID
	}
	for _, row := range ix.Flatten() {
		n := row.Entry.Node
		if row.Depth == 0 {
			writeLn("# " + title)
			if n.Title != "" && n.Title != title {
				writeLn("")
				writeLn("_" + n.Title + "_")
			}
		} else {
			writeLn(strings.Repeat("#", min(row.Depth+1, 6)) + " " + nodeHeading(n))
		}
		writeLn("")
		writeEvents(&buf, row.Entry.Events)
	}

	if un := ix.Unplaced(); len(un) > 0 {
		writeLn("## Unplaced")
		writeLn("")
		writeEvents(&buf, un)
	}
	return strings.TrimRight(buf.String(), "\n") + "\n"
}

func nodeHeading(n model.Node) string {
	if n.Title == "" {
		return n.Name
	}
	return fmt.Sprintf("%s: %s", n.Name, n.Title)
}

func writeEvents(buf *bytes.Buffer, evs []model.Event) {
	if len(evs) == 0 {
		return
	}
	for i, ev := range evs {
		fmt.Fprintf(buf, "%d. %s\n", i+1, strings.TrimSpace(ev.Title))
	}
	buf.WriteString("\n")
}
