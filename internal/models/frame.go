// Package models defines the record and table shapes shared by the normalizer and its outputs.
package models

import (
	"slices"

	"github.com/valyala/fastjson"
)

// Record is one flattened log entry keyed by dotted column path.
// A missing key and a JSON null both read as null.
type Record map[string]*fastjson.Value

// Get returns the value stored under col, or nil.
func (r Record) Get(col string) *fastjson.Value {
	return r[col]
}

// IsNull reports whether v is absent or a JSON null.
func IsNull(v *fastjson.Value) bool {
	return v == nil || v.Type() == fastjson.TypeNull
}

// Frame is a column-ordered set of flattened records.
// Columns is the superset of keys across Records, unique, in first-seen order.
type Frame struct {
	Columns []string
	Records []Record
}

// HasColumn reports whether name is one of the frame's columns.
func (f *Frame) HasColumn(name string) bool {
	return slices.Contains(f.Columns, name)
}

// DropColumn removes name from the column list and from every record.
func (f *Frame) DropColumn(name string) {
	idx := slices.Index(f.Columns, name)
	if idx < 0 {
		return
	}

	f.Columns = slices.Delete(f.Columns, idx, idx+1)

	for _, rec := range f.Records {
		delete(rec, name)
	}
}

// RenameColumn renames from to to, keeping its position. It is a no-op when from is
// absent or to already exists.
func (f *Frame) RenameColumn(from, to string) {
	idx := slices.Index(f.Columns, from)
	if idx < 0 || f.HasColumn(to) {
		return
	}

	f.Columns[idx] = to

	for _, rec := range f.Records {
		if v, ok := rec[from]; ok {
			rec[to] = v
			delete(rec, from)
		}
	}
}

// Len returns the number of records.
func (f *Frame) Len() int {
	return len(f.Records)
}
