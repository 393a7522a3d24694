package dataset

import (
	"math"
	"strconv"
	"strings"

	"surveylab/internal/errors"
)

// Record is one respondent: raw cell text keyed by column name
type Record map[string]string

// Table is an in-memory survey dataset with ordered columns
type Table struct {
	Columns []string
	Rows    []Record
}

// NewTable creates a table with the given column order
func NewTable(columns []string, rows []Record) *Table {
	return &Table{Columns: columns, Rows: rows}
}

// RowCount returns the number of records
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int {
	return len(t.Columns)
}

// HasColumn reports whether name is one of the table's columns
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Value returns the trimmed raw value of column name in row i
func (t *Table) Value(i int, name string) string {
	return strings.TrimSpace(t.Rows[i][name])
}

// WithRows returns a table sharing the column order but holding only rows
func (t *Table) WithRows(rows []Record) *Table {
	return &Table{Columns: t.Columns, Rows: rows}
}

// Float64Column parses a column to float64; blank or non-numeric cells become NaN
func (t *Table) Float64Column(name string) []float64 {
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = ParseFloat(row[name])
	}
	return out
}

// ParseFloat parses a cell, returning NaN for blank or non-numeric text
func ParseFloat(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Matrix is a dense numeric view over selected columns
type Matrix struct {
	Columns []string
	Data    [][]float64 // rows=respondents, cols=Columns
	Dropped int         // rows removed for missing values
}

// Column returns one column of the matrix by index
func (m *Matrix) Column(j int) []float64 {
	out := make([]float64, len(m.Data))
	for i, row := range m.Data {
		out[i] = row[j]
	}
	return out
}

// RowCount returns the number of complete rows
func (m *Matrix) RowCount() int {
	return len(m.Data)
}

// NumericMatrix extracts columns as float64 with listwise deletion of rows
// holding any missing or non-numeric value in those columns.
func (t *Table) NumericMatrix(columns []string) (*Matrix, error) {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return nil, errors.MissingColumn("model", c)
		}
	}

	m := &Matrix{Columns: columns, Data: make([][]float64, 0, len(t.Rows))}
	for _, row := range t.Rows {
		values := make([]float64, len(columns))
		complete := true
		for j, c := range columns {
			v := ParseFloat(row[c])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				complete = false
				break
			}
			values[j] = v
		}
		if !complete {
			m.Dropped++
			continue
		}
		m.Data = append(m.Data, values)
	}
	return m, nil
}
