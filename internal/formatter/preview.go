// Package formatter renders result tables as CSV and as a human-readable preview.
package formatter

import (
	"fmt"
	"strings"

	"logcsv/internal/models"

	"github.com/mattn/go-runewidth"
)

// PreviewOptions controls FormatPreview.
type PreviewOptions struct {
	// MaxRows limits the number of data rows shown. Zero shows all of them.
	MaxRows int
	// MaxWidth truncates every line to this display width. Zero disables truncation.
	MaxWidth int
}

// FormatPreview renders the table as an aligned pipe table. Column widths are measured
// in display cells, so wide characters line up.
func FormatPreview(t *models.Table, opts PreviewOptions) string {
	if t == nil || len(t.Columns) == 0 {
		return ""
	}

	rows := t.Rows
	hidden := 0

	if opts.MaxRows > 0 && len(rows) > opts.MaxRows {
		hidden = len(rows) - opts.MaxRows
		rows = rows[:opts.MaxRows]
	}

	// 1. Sanitize cells
	header := sanitizeRow(t.Columns)
	body := make([][]string, len(rows))

	for i, row := range rows {
		body[i] = sanitizeRow(row)
	}

	// 2. Calculate max widths (using display width)
	colWidths := make([]int, len(header))
	for i, h := range header {
		colWidths[i] = runewidth.StringWidth(h)
	}

	for _, row := range body {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if w := runewidth.StringWidth(row[i]); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}

	// Ensure min width for separator
	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	// 3. Reconstruct lines
	lines := make([]string, 0, len(body)+3)
	lines = append(lines, renderRow(header, colWidths, false))
	lines = append(lines, renderRow(nil, colWidths, true))

	for _, row := range body {
		lines = append(lines, renderRow(row, colWidths, false))
	}

	if hidden > 0 {
		lines = append(lines, fmt.Sprintf("... %d more rows", hidden))
	}

	if opts.MaxWidth > 0 {
		for i, line := range lines {
			lines[i] = runewidth.Truncate(line, opts.MaxWidth, "…")
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

func renderRow(cells []string, colWidths []int, separator bool) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, width := range colWidths {
		sb.WriteString(" ")

		if separator {
			sb.WriteString(strings.Repeat("-", width))
		} else {
			content := ""
			if j < len(cells) {
				content = cells[j]
			}

			sb.WriteString(runewidth.FillRight(content, width))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}

var cellReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ", "|", "\\|")

func sanitizeRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = cellReplacer.Replace(cell)
	}

	return out
}
