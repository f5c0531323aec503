package normalizer

import (
	"fmt"
	"strings"
	"time"
)

var layoutNames = strings.NewReplacer(
	"2006", "yyyy", "01", "mm", "02", "dd", "15", "HH", "04", "MM", "05", "SS",
	"1", "mm", "2", "dd",
)

// Validator checks the user-supplied date range.
type Validator struct {
	layout          string
	inclusiveEndDay bool
}

// NewValidator creates a validator for boundary dates written in layout.
func NewValidator(layout string, inclusiveEndDay bool) *Validator {
	return &Validator{
		layout:          layout,
		inclusiveEndDay: inclusiveEndDay,
	}
}

// ParseRange parses both boundary dates strictly. The end boundary is midnight of the
// end date unless the validator was built with inclusiveEndDay, in which case it is the
// last second of that day.
func (v *Validator) ParseRange(start, end string) (DateRange, error) {
	from, err := v.parseBoundary("start", start)
	if err != nil {
		return DateRange{}, err
	}

	to, err := v.parseBoundary("end", end)
	if err != nil {
		return DateRange{}, err
	}

	if v.inclusiveEndDay {
		to = to.Add(24*time.Hour - time.Second)
	}

	return DateRange{Start: from, End: to}, nil
}

func (v *Validator) parseBoundary(name, value string) (time.Time, error) {
	t, err := time.Parse(v.layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s date %q does not match %s", ErrInvalidBoundary, name, value, layoutNames.Replace(v.layout))
	}

	return t, nil
}
