package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"logcsv/internal/models"
)

// ErrNoHeader is returned when parsing CSV without a header row.
var ErrNoHeader = errors.New("csv has no header row")

// WriteCSV writes the header and every row of t to w using comma as the delimiter.
func WriteCSV(w io.Writer, t *models.Table, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}

	return nil
}

// FormatCSV returns t encoded as UTF-8 CSV with a header row.
func FormatCSV(t *models.Table, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t, comma); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ParseCSV reads CSV produced by FormatCSV back into a table.
func ParseCSV(data []byte, comma rune) (*models.Table, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNoHeader
	}

	t := models.NewTable(records[0])
	t.Rows = append(t.Rows, records[1:]...)

	return t, nil
}
