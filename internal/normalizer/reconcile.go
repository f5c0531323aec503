package normalizer

import (
	"logcsv/internal/config"
	"logcsv/internal/models"

	"github.com/valyala/fastjson"
)

// Reconcile resolves redundant columns in place: it expands the variables column into
// sibling columns and folds the alternate timestamp column into the primary one.
func Reconcile(frame *models.Frame, cfg config.NormalizerConfig) {
	if cfg.VariablesColumn != "" {
		ExpandVariables(frame, cfg.VariablesColumn)
	}

	if cfg.TimestampAltColumn != "" {
		CoalesceTimestamp(frame, cfg.TimestampColumn, cfg.TimestampAltColumn)
	}
}

// ExpandVariables decodes column in every record with DecodeVariables, merges the
// decoded keys into the record as new columns and drops column. Keys that collide with
// an existing column are ignored so the first occurrence wins. A key repeated inside the
// variables object keeps its last value.
func ExpandVariables(frame *models.Frame, column string) {
	if !frame.HasColumn(column) {
		return
	}

	existing := make(map[string]bool, len(frame.Columns))
	for _, c := range frame.Columns {
		if c != column {
			existing[c] = true
		}
	}

	var added []string

	addedSet := make(map[string]bool)

	for _, rec := range frame.Records {
		vars := DecodeVariables(rec.Get(column))
		delete(rec, column)

		visitMembers(vars, func(key []byte, v *fastjson.Value) {
			name := string(key)
			if existing[name] {
				return
			}

			if _, dup := rec[name]; dup {
				return
			}

			rec[name] = v

			if !addedSet[name] {
				addedSet[name] = true
				added = append(added, name)
			}
		})
	}

	frame.DropColumn(column)
	frame.Columns = append(frame.Columns, added...)
}

// CoalesceTimestamp merges alt into primary, keeping primary where it is non-null and
// falling back to alt otherwise, then drops alt. If only alt exists it is renamed.
func CoalesceTimestamp(frame *models.Frame, primary, alt string) {
	if !frame.HasColumn(alt) {
		return
	}

	if !frame.HasColumn(primary) {
		frame.RenameColumn(alt, primary)

		return
	}

	for _, rec := range frame.Records {
		if models.IsNull(rec.Get(primary)) && !models.IsNull(rec.Get(alt)) {
			rec[primary] = rec[alt]
		}
	}

	frame.DropColumn(alt)
}
