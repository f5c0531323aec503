package normalizer

import (
	"slices"

	"logcsv/internal/models"

	"github.com/valyala/fastjson"
)

// Flatten produces one record per entry. Nested objects become dotted-path columns,
// arrays and scalars stay as single values. Top-level keys listed in atomicKeys are
// never descended into. A key repeated inside one object keeps its last value; when two
// different paths flatten to the same name, the first one wins.
//
// The returned records reference values owned by the parsed document, which must not
// be reused by another parser while the frame is in use.
func Flatten(entries []*fastjson.Object, atomicKeys ...string) *models.Frame {
	frame := &models.Frame{
		Columns: []string{},
		Records: make([]models.Record, 0, len(entries)),
	}

	seen := make(map[string]bool)
	addColumn := func(name string) {
		if !seen[name] {
			seen[name] = true
			frame.Columns = append(frame.Columns, name)
		}
	}

	for _, entry := range entries {
		rec := make(models.Record, entry.Len())
		flattenInto(rec, entry, "", atomicKeys, addColumn)
		frame.Records = append(frame.Records, rec)
	}

	return frame
}

func flattenInto(rec models.Record, obj *fastjson.Object, prefix string, atomicKeys []string, addColumn func(string)) {
	visitMembers(obj, func(key []byte, v *fastjson.Value) {
		name := string(key)
		if prefix != "" {
			name = prefix + "." + name
		}

		if v.Type() == fastjson.TypeObject && (prefix != "" || !slices.Contains(atomicKeys, name)) {
			child, _ := v.Object()
			flattenInto(rec, child, name, atomicKeys, addColumn)

			return
		}

		if _, dup := rec[name]; dup {
			return
		}

		rec[name] = v
		addColumn(name)
	})
}
