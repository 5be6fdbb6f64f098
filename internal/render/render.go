// Package render turns formatted advisor replies (markdown with emoji
// decorations) into HTML for the browser and ANSI text for the terminal.
package render

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/yuin/goldmark"
	gmext "github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Replies use single newlines between lines, so hard wraps are kept.
// Raw HTML in model output is escaped (goldmark's default).
var md = goldmark.New(
	goldmark.WithExtensions(gmext.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// HTML renders markdown text to an HTML fragment.
func HTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Terminal renders markdown for a terminal. It is safe for concurrent use.
type Terminal struct {
	mu sync.Mutex
	r  *glamour.TermRenderer
}

// NewTerminal creates a terminal renderer wrapping at width columns. When
// color is false the plain ASCII style is used.
func NewTerminal(width int, color bool) (*Terminal, error) {
	style := glamour.WithStandardStyle(styles.NoTTYStyle)
	if color {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width), glamour.WithPreservedNewLines())
	if err != nil {
		return nil, fmt.Errorf("create terminal renderer: %w", err)
	}
	return &Terminal{r: r}, nil
}

// Render returns text styled for the terminal. If rendering fails the text
// is returned unchanged.
func (t *Terminal) Render(text string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out, err := t.r.Render(text)
	if err != nil {
		return text
	}
	return out
}
