package models

import "slices"

// Table is the final tabular result: a header plus string cells, one slice per row.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable creates an empty table with the given header.
func NewTable(columns []string) *Table {
	return &Table{
		Columns: append([]string(nil), columns...),
		Rows:    [][]string{},
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}

	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// ColumnIndex returns the position of name in the header, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// Column returns every cell of the named column, or nil when the column does not exist.
func (t *Table) Column(name string) []string {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}

	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}

	return out
}
