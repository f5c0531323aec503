package normalizer

import "logcsv/internal/models"

// frameView adds test accessors to a frame.
type frameView struct {
	*models.Frame
}

func (f *frameView) cell(row int, col string) string {
	return CellString(f.Records[row].Get(col))
}
