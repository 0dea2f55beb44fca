package cli

import (
	"fmt"
	"strings"
)

// Table provides formatted table output.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		headers: headers,
		widths:  widths,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	// Pad with empty strings if needed
	for len(cells) < len(t.headers) {
		cells = append(cells, "")
	}
	// Update column widths
	for i, cell := range cells {
		if i < len(t.widths) && len(cell) > t.widths[i] {
			t.widths[i] = len(cell)
		}
	}
	t.rows = append(t.rows, cells)
}

// Render returns the formatted table as a string.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	var b strings.Builder

	// Header row
	for i, h := range t.headers {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(Header(pad(h, t.widths[i])))
	}
	b.WriteString("\n")

	// Separator
	for i := range t.headers {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(Dim(strings.Repeat("-", t.widths[i])))
	}
	b.WriteString("\n")

	// Rows
	for _, row := range t.rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			if i < len(t.widths) {
				cell = pad(cell, t.widths[i])
			}
			b.WriteString(cell)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Statusf prints a Cargo-style status line: a bold right-aligned verb
// followed by details, e.g. "    Applying alter_010.yaml".
func Statusf(verb, format string, args ...any) string {
	padded := fmt.Sprintf("%12s", verb)
	return Success(padded) + " " + fmt.Sprintf(format, args...)
}
