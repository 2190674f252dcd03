package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Dim    lipgloss.Style
}

// DefaultStyles are the styles of DefaultTheme.
var DefaultStyles = NewStyles(DefaultTheme)

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Cell:   lipgloss.NewStyle(),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Tabular is implemented by results that have a table rendering.
type Tabular interface {
	Table() *Table
}

// Table is a header row plus data rows.
type Table struct {
	Headers []string
	Rows    [][]string

	// MaxWidth truncates longer cells with an ellipsis. Zero disables.
	MaxWidth int
}

// Append adds a row.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render lays the table out in aligned columns separated by two spaces.
func (t *Table) Render(s Styles) string {
	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		text := row[i]
		if t.MaxWidth > 1 && lipgloss.Width(text) > t.MaxWidth {
			text = truncateString(text, t.MaxWidth-1) + "…"
		}
		return text
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := range widths {
			widths[i] = max(widths[i], lipgloss.Width(cell(row, i)))
		}
	}

	var b strings.Builder
	writeRow := func(row []string, style lipgloss.Style) {
		for i := range widths {
			text := cell(row, i)
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(style.Render(text))
			if i < len(widths)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(text)))
			}
		}
		b.WriteByte('\n')
	}

	writeRow(t.Headers, s.Header)
	for _, row := range t.Rows {
		writeRow(row, s.Cell)
	}
	return b.String()
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}
