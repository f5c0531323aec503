package normalizer

import (
	"errors"
	"fmt"
)

// Pipeline errors. Fatal conditions are returned from Process wrapped around these;
// non-fatal ones are attached to the Result as a Diagnostic.
var (
	ErrDecode            = errors.New("invalid JSON document")
	ErrNoExpectedColumns = errors.New("no expected columns found")
	ErrMissingTimestamp  = errors.New("timestamp column not found")
	ErrNoParsableDates   = errors.New("no timestamp could be parsed")
	ErrInvalidBoundary   = errors.New("invalid boundary date")
	ErrEmptyResult       = errors.New("no rows within the date range")
)

// Kind names the diagnostic category of a pipeline outcome.
type Kind string

// Diagnostic kinds.
const (
	KindDecode    Kind = "decode"
	KindNoColumns Kind = "no_columns"
	KindTimestamp Kind = "timestamp"
	KindBoundary  Kind = "boundary"
	KindEmpty     Kind = "empty"
	KindInternal  Kind = "internal"
)

// Severity grades a diagnostic.
type Severity string

// Severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is the user-facing description of why a run produced no file.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Fatal reports whether the diagnostic aborted the run.
func (d Diagnostic) Fatal() bool {
	return d.Severity == SeverityError
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s", d.Severity, d.Message)
}

// Diagnose converts an error returned by the pipeline into a Diagnostic.
func Diagnose(err error) Diagnostic {
	switch {
	case errors.Is(err, ErrDecode):
		return Diagnostic{Kind: KindDecode, Severity: SeverityError, Message: err.Error()}
	case errors.Is(err, ErrNoExpectedColumns):
		return Diagnostic{Kind: KindNoColumns, Severity: SeverityWarning, Message: err.Error()}
	case errors.Is(err, ErrMissingTimestamp):
		return Diagnostic{Kind: KindTimestamp, Severity: SeverityError, Message: err.Error()}
	case errors.Is(err, ErrNoParsableDates):
		return Diagnostic{Kind: KindTimestamp, Severity: SeverityWarning, Message: err.Error()}
	case errors.Is(err, ErrInvalidBoundary):
		return Diagnostic{Kind: KindBoundary, Severity: SeverityError, Message: err.Error()}
	case errors.Is(err, ErrEmptyResult):
		return Diagnostic{Kind: KindEmpty, Severity: SeverityInfo, Message: err.Error()}
	default:
		return Diagnostic{Kind: KindInternal, Severity: SeverityError, Message: fmt.Sprintf("failed to process file: %v", err)}
	}
}
