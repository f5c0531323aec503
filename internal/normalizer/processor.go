package normalizer

import (
	"errors"
	"fmt"
	"slices"

	"logcsv/internal/config"
	"logcsv/internal/logger"
	"logcsv/internal/models"
)

// Stats summarizes one run of the pipeline.
type Stats struct {
	Entries          int `json:"entries"`
	FlattenedColumns int `json:"flattenedColumns"`
	Columns          int `json:"columns"`
	Unparseable      int `json:"unparseable"`
	OutOfRange       int `json:"outOfRange"`
	Kept             int `json:"kept"`
}

// Result is the outcome of a run that did not fail fatally.
// Diagnostic is set when the table is empty and explains why.
type Result struct {
	Table      *models.Table
	Range      DateRange
	Stats      Stats
	Diagnostic *Diagnostic
}

// OK reports whether the run produced rows worth exporting.
func (r *Result) OK() bool {
	return r != nil && r.Diagnostic == nil && !r.Table.Empty()
}

// Processor runs the decode, flatten, reconcile, project and filter stages.
// It holds no per-run state and is safe for concurrent use.
type Processor struct {
	cfg       config.NormalizerConfig
	validator *Validator
	log       *logger.Logger
}

// NewProcessor creates a new processor instance.
func NewProcessor(cfg config.NormalizerConfig, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Discard()
	}

	return &Processor{
		cfg:       cfg,
		validator: NewValidator(cfg.DateLayout, cfg.InclusiveEndDay),
		log:       log,
	}
}

// WithLogger returns a copy of the processor that logs to l.
func (p *Processor) WithLogger(l *logger.Logger) *Processor {
	cp := *p
	cp.log = l

	return &cp
}

// Process transforms raw JSON into a table limited to the configured columns and to
// rows logged between start and end. Fatal conditions (decode failure, missing
// timestamp column, bad boundary date) are returned as errors; an empty outcome is
// returned as a Result carrying a Diagnostic.
func (p *Processor) Process(raw []byte, start, end string) (*Result, error) {
	// 1. Decode
	entries, err := DecodeDocument(raw)
	if err != nil {
		return nil, err
	}

	// 2. Flatten
	frame := Flatten(entries, p.cfg.VariablesColumn)
	stats := Stats{Entries: len(entries), FlattenedColumns: len(frame.Columns)}

	p.log.Debug("flattened entries", "entries", stats.Entries, "columns", stats.FlattenedColumns)

	// 3. Reconcile
	Reconcile(frame, p.cfg)

	// 4. Project
	columns, err := Project(frame, p.cfg.Columns)
	stats.Columns = len(columns)

	if errors.Is(err, ErrNoExpectedColumns) {
		p.log.Warn("none of the expected columns are present", "available", len(frame.Columns))

		return p.empty(columns, stats, err), nil
	}

	if !slices.Contains(columns, p.cfg.TimestampColumn) {
		return nil, fmt.Errorf("%w: %q is not present in the data", ErrMissingTimestamp, p.cfg.TimestampColumn)
	}

	// 5. Filter
	rng, err := p.validator.ParseRange(start, end)
	if err != nil {
		return nil, err
	}

	table, fstats := Filter(frame, columns, p.cfg.TimestampColumn, rng, p.cfg.OutputTimestampLayout)
	stats.Unparseable = fstats.Unparseable
	stats.OutOfRange = fstats.OutOfRange
	stats.Kept = fstats.Kept

	p.log.Debug("filtered rows",
		"kept", stats.Kept,
		"unparseable", stats.Unparseable,
		"out_of_range", stats.OutOfRange)

	if table.Empty() {
		reason := ErrEmptyResult
		if stats.Unparseable > 0 && stats.OutOfRange == 0 {
			p.log.Warn("no timestamp could be parsed", "column", p.cfg.TimestampColumn, "rows", stats.Unparseable)

			reason = fmt.Errorf("%w: all %d values of %q are missing or unparseable",
				ErrNoParsableDates, stats.Unparseable, p.cfg.TimestampColumn)
		}

		res := p.empty(columns, stats, reason)
		res.Range = rng

		return res, nil
	}

	return &Result{Table: table, Range: rng, Stats: stats}, nil
}

func (p *Processor) empty(columns []string, stats Stats, reason error) *Result {
	diag := Diagnose(reason)

	return &Result{
		Table:      models.NewTable(columns),
		Stats:      stats,
		Diagnostic: &diag,
	}
}
