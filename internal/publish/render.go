package publish

import (
	"bytes"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	// No html.WithUnsafe: raw HTML in titles is dropped from the output.
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML converts markdown to an HTML fragment.
func RenderHTML(md string) (string, error) {
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(md), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// TermStyle picks a glamour style: plain when NO_COLOR is set, dark otherwise.
// Auto-detection is avoided since it queries the terminal and can block.
func TermStyle() string {
	if termenv.EnvNoColor() {
		return styles.NoTTYStyle
	}
	return styles.DarkStyle
}

// RenderTerminal renders markdown for display in a terminal of the given width.
func RenderTerminal(md string, width int, style string) (string, error) {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
