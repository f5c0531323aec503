package normalizer

import "logcsv/internal/models"

// Project returns the allow-listed columns present in frame, in allow-list order.
// It returns ErrNoExpectedColumns when none of them are present.
func Project(frame *models.Frame, allow []string) ([]string, error) {
	columns := make([]string, 0, len(allow))

	for _, col := range allow {
		if frame.HasColumn(col) {
			columns = append(columns, col)
		}
	}

	if len(columns) == 0 {
		return columns, ErrNoExpectedColumns
	}

	return columns, nil
}
