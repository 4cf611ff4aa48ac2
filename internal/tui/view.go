package tui

import (
	"slices"
	"strings"

	"storyline-cli/internal/layout"

	xansi "github.com/charmbracelet/x/ansi"
)

const (
	minCellWidth = 10
	maxCellWidth = 24
	laneNameW    = 7
)

var lanes = []struct {
	lane layout.Lane
	name string
}{
	{layout.LaneLabel, "nav"},
	{layout.LaneLevel, "levels"},
	{layout.LaneMain, "events"},
}

func (m appModel) View() string {
	if m.ix == nil {
		return strings.Join([]string{styleHeader.Render("storyline"), styleFlash.Render(m.flash), m.help.View(m.keys)}, "\n\n")
	}
	header := styleHeader.Render(m.story.Name) + "  " + styleCrumb.Render(m.breadcrumb())

	footer := m.help.View(m.keys)
	if m.flash != "" {
		footer = styleFlash.Render(m.flash) + "\n" + footer
	}
	return strings.Join([]string{header, m.renderLanes(), footer}, "\n\n")
}

func (m appModel) breadcrumb() string {
	var parts []string
	e, ok := m.ix.Node(m.focusID)
	for ok {
		parts = append(parts, e.Node.Label())
		e, ok = m.ix.Parent(e)
	}
	slices.Reverse(parts)
	return strings.Join(parts, " › ")
}

// renderLanes draws one row per lane. Items sharing an x share a column; when
// the columns do not fit, a window around the cursor is shown.
func (m appModel) renderLanes() string {
	var xs []int
	at := map[layout.Lane]map[int]int{}
	for i, it := range m.items {
		if !slices.Contains(xs, it.X) {
			xs = append(xs, it.X)
		}
		if at[it.Lane] == nil {
			at[it.Lane] = map[int]int{}
		}
		at[it.Lane][it.X] = i
	}
	slices.Sort(xs)
	if len(xs) == 0 {
		return styleCrumb.Render("(empty)")
	}

	avail := m.width - laneNameW
	cellW := avail / len(xs)
	cellW = max(minCellWidth, min(maxCellWidth, cellW))
	visible := max(1, avail/cellW)

	start := 0
	sel, hasSel := m.selected()
	if hasSel && len(xs) > visible {
		col := slices.Index(xs, sel.X)
		start = min(max(0, col-visible/2), len(xs)-visible)
	}
	end := min(len(xs), start+visible)

	rows := make([]string, 0, len(lanes))
	for _, ln := range lanes {
		var b strings.Builder
		b.WriteString(styleLaneName.Render(ln.name))
		for _, x := range xs[start:end] {
			idx, ok := at[ln.lane][x]
			if !ok {
				b.WriteString(strings.Repeat(" ", cellW))
				continue
			}
			it := m.items[idx]
			b.WriteString(renderCell(it, cellW, hasSel && idx == m.selectable[m.cursor]))
		}
		rows = append(rows, b.String())
	}
	return strings.Join(rows, "\n")
}

func renderCell(it layout.Item, width int, selected bool) string {
	text := cellText(it)
	text = xansi.Truncate(text, width-1, "…")
	pad := strings.Repeat(" ", max(0, width-xansi.StringWidth(text)))

	style := styleEvent
	switch it.Kind {
	case layout.KindSubLevel:
		style = styleLevel
	case layout.KindDivider:
		style = styleDivider
	case layout.KindNavigation:
		style = styleNav
		if it.Placeholder {
			style = stylePlacehold
		}
	}
	if selected {
		style = styleSelected
	}
	return style.Render(text) + pad
}

func cellText(it layout.Item) string {
	switch it.Kind {
	case layout.KindEvent:
		return "● " + it.Label
	case layout.KindSubLevel:
		return "▸ " + it.Label
	case layout.KindDivider:
		if it.Divider == layout.Secondary {
			return "┆"
		}
		return "│"
	case layout.KindNavigation:
		if it.Nav == layout.Prev {
			return "◂ " + it.Label
		}
		return it.Label + " ▸"
	}
	return it.Label
}
