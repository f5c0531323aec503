package normalizer

import (
	"strings"
	"time"

	"logcsv/internal/models"

	"github.com/araddon/dateparse"
	"github.com/valyala/fastjson"
)

// DateRange is an inclusive time interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the range, boundaries included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// FilterStats counts what happened to each row during filtering.
type FilterStats struct {
	Unparseable int
	OutOfRange  int
	Kept        int
}

// Filter renders the projected columns of every record whose timestamp parses and lies
// within rng. Rows with an unparseable timestamp are dropped. Timestamp cells are
// rendered with layout.
func Filter(frame *models.Frame, columns []string, tsColumn string, rng DateRange, layout string) (*models.Table, FilterStats) {
	table := models.NewTable(columns)
	stats := FilterStats{}

	for _, rec := range frame.Records {
		ts, ok := ParseTimestamp(rec.Get(tsColumn))
		if !ok {
			stats.Unparseable++

			continue
		}

		if !rng.Contains(ts) {
			stats.OutOfRange++

			continue
		}

		row := make([]string, len(columns))
		for i, col := range columns {
			if col == tsColumn {
				row[i] = ts.Format(layout)
			} else {
				row[i] = CellString(rec.Get(col))
			}
		}

		table.Rows = append(table.Rows, row)
		stats.Kept++
	}

	return table, stats
}

// ParseTimestamp parses a timestamp value permissively. Strings are accepted in any
// layout dateparse understands; numbers and digit-only strings are Unix epochs. The
// result keeps the wall clock of the source, in UTC, truncated to the second.
func ParseTimestamp(v *fastjson.Value) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}

	var s string

	switch v.Type() {
	case fastjson.TypeString:
		sb, _ := v.StringBytes()
		s = strings.TrimSpace(string(sb))
	case fastjson.TypeNumber:
		s = v.String()
	default:
		return time.Time{}, false
	}

	if s == "" {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	if isDigits(s) {
		t = t.UTC()
	}

	return wallClock(t), true
}

func wallClock(t time.Time) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	return time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return s != ""
}

// CellString renders a JSON value as CSV cell text. Null and missing values are empty,
// strings are unquoted, and arrays or objects keep their JSON encoding. Invalid UTF-8
// sequences become U+FFFD.
func CellString(v *fastjson.Value) string {
	if models.IsNull(v) {
		return ""
	}

	switch v.Type() {
	case fastjson.TypeString:
		sb, _ := v.StringBytes()

		return strings.ToValidUTF8(string(sb), "\uFFFD")
	case fastjson.TypeTrue:
		return "true"
	case fastjson.TypeFalse:
		return "false"
	default:
		return strings.ToValidUTF8(v.String(), "\uFFFD")
	}
}
