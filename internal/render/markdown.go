// Package render prints reports and answers on a terminal.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultWidth = 80

// Width returns the width of the terminal on fd, or 80 when fd is not a
// terminal.
func Width(fd int) int {
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Styled reports whether fd is a terminal that can show colors.
func Styled(fd int) bool {
	return term.IsTerminal(fd)
}

// Markdown renders md wrapped to width. Without styling it uses the plain
// notty style. If the renderer cannot be built or fails, md is returned as
// it is.
func Markdown(md string, width int, styled bool) string {
	wrap := width - 10
	if wrap < 20 {
		wrap = 20
	}

	style := glamour.WithStylePath("notty")
	if styled {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}
