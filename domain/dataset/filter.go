package dataset

import (
	"strings"

	"surveylab/internal/errors"
)

// Filter removes every row whose value in column is one of excluded.
// It is a no-op when column or excluded is empty. A column the table does
// not have is a MISSING_COLUMN error.
func Filter(t *Table, column string, excluded []string) (*Table, error) {
	if column == "" || len(excluded) == 0 {
		return t, nil
	}
	if !t.HasColumn(column) {
		return nil, errors.MissingColumn("filter", column)
	}

	kept := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		if matchesAny(row[column], excluded) {
			continue
		}
		kept = append(kept, row)
	}
	return t.WithRows(kept), nil
}

// matchesAny compares trimmed text, falling back to numeric equality so
// that "1" and "1.0" are the same value.
func matchesAny(raw string, values []string) bool {
	cell := strings.TrimSpace(raw)
	cellNum := ParseFloat(cell)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if cell == v {
			return true
		}
		if n := ParseFloat(v); n == cellNum {
			return true
		}
	}
	return false
}
