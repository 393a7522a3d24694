package dataset

import (
	"math"

	"github.com/montanaflynn/stats"
)

// ColumnSummary holds descriptive statistics over the numeric cells of a column
type ColumnSummary struct {
	Column  string
	Count   int
	Missing int
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
}

// Describe summarises the parseable values of one column
func Describe(t *Table, column string) ColumnSummary {
	summary := ColumnSummary{Column: column, Mean: math.NaN(), StdDev: math.NaN(), Min: math.NaN(), Max: math.NaN()}

	values := make(stats.Float64Data, 0, len(t.Rows))
	for _, v := range t.Float64Column(column) {
		if math.IsNaN(v) {
			summary.Missing++
			continue
		}
		values = append(values, v)
	}
	summary.Count = len(values)
	if summary.Count == 0 {
		return summary
	}

	summary.Mean, _ = stats.Mean(values)
	summary.Min, _ = stats.Min(values)
	summary.Max, _ = stats.Max(values)
	if summary.Count > 1 {
		summary.StdDev, _ = stats.StandardDeviationSample(values)
	}
	return summary
}

// IsConstant reports whether a column carries no variation
func (s ColumnSummary) IsConstant() bool {
	return s.Count > 0 && s.Min == s.Max
}
