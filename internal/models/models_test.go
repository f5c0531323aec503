package models

import (
	"strings"
	"testing"

	"github.com/valyala/fastjson"
)

func newRecord(t *testing.T, pairs map[string]string) Record {
	t.Helper()

	rec := Record{}
	for k, raw := range pairs {
		rec[k] = fastjson.MustParse(raw)
	}

	return rec
}

func TestIsNull(t *testing.T) {
	if !IsNull(nil) {
		t.Error("nil should be null")
	}

	if !IsNull(fastjson.MustParse("null")) {
		t.Error("JSON null should be null")
	}

	if IsNull(fastjson.MustParse(`""`)) {
		t.Error("empty string is not null")
	}
}

func TestFrame_ColumnOperations(t *testing.T) {
	f := &Frame{
		Columns: []string{"a", "b", "c"},
		Records: []Record{
			newRecord(t, map[string]string{"a": `1`, "b": `"x"`}),
			newRecord(t, map[string]string{"a": `2`}),
		},
	}

	f.DropColumn("b")

	if got := strings.Join(f.Columns, ","); got != "a,c" {
		t.Errorf("Columns = %s, want a,c", got)
	}

	if _, ok := f.Records[0]["b"]; ok {
		t.Error("DropColumn should remove values from records")
	}

	f.RenameColumn("a", "z")

	if got := strings.Join(f.Columns, ","); got != "z,c" {
		t.Errorf("Columns after rename = %s, want z,c", got)
	}

	if f.Records[1].Get("z") == nil || f.Records[1].Get("a") != nil {
		t.Error("RenameColumn should move record values")
	}

	// Renaming onto an existing column is refused
	f.RenameColumn("z", "c")

	if !f.HasColumn("z") {
		t.Error("RenameColumn must not overwrite an existing column")
	}

	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}
}

func TestTable_Column(t *testing.T) {
	tbl := NewTable([]string{"name", "logged_at"})
	tbl.Rows = append(tbl.Rows, []string{"A", "2024-11-26 10:00:00"}, []string{"B", ""})

	if tbl.Empty() {
		t.Fatal("table should not be empty")
	}

	names := tbl.Column("name")
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("Column(name) = %v", names)
	}

	if tbl.Column("missing") != nil {
		t.Error("Column of unknown name should be nil")
	}

	var nilTable *Table
	if nilTable.Len() != 0 || !nilTable.Empty() {
		t.Error("nil table should be empty")
	}
}
