package excel

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"surveylab/domain/regression"
	"surveylab/domain/sem"
	"surveylab/domain/verdict"
	"surveylab/internal"
	"surveylab/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the generated workbooks
const (
	SheetDetail     = "Hypothesis Results"
	SheetOverall    = "Overall Regression"
	SheetHypotheses = "Hypotheses Summary"
	SheetEstimates  = "Parameter Estimates"
	SheetFitStats   = "Fit Statistics"
)

// NotAvailable fills the numeric cells of a hypothesis whose path was not estimated
const NotAvailable = "N/A"

var (
	regressionHeaders = []string{"Segment", "R2 Value", "Term", "Coef.", "Std.Err.", "t", "P>|t|", "[0.025", "0.975]"}
	hypothesisHeaders = []string{"Segment", "Hypothesis", "p-value", "Estimate", "Std. Err", "z-value", "Result"}
	estimateHeaders   = []string{"Segment", "lval", "op", "rval", "Estimate", "Std. Err", "z-value", "p-value", "Significant"}
	fitStatsHeaders   = []string{"Segment", "N", "Dropped", "Chi2", "DF", "p-value", "CFI", "TLI", "RMSEA", "Iterations"}
)

// ReportWriter writes pipeline results to xlsx workbooks
type ReportWriter struct {
	logger *internal.Logger
}

// NewReportWriter creates a report writer
func NewReportWriter() *ReportWriter {
	return &ReportWriter{logger: internal.DefaultLogger.With("ReportWriter")}
}

// WriteRegression writes the per-segment detail rows and the pooled fit rows
func (w *ReportWriter) WriteRegression(path string, detail, overall []regression.DetailRow) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9EAD3"}},
	})
	if err != nil {
		return errors.OutputFailed(path, err)
	}

	for i, sheet := range []struct {
		name string
		rows []regression.DetailRow
	}{{SheetDetail, detail}, {SheetOverall, overall}} {
		if err := addSheet(f, i, sheet.name); err != nil {
			return errors.OutputFailed(path, err)
		}
		if err := writeHeader(f, sheet.name, regressionHeaders, headerStyle); err != nil {
			return errors.OutputFailed(path, err)
		}
		if err := f.SetColWidth(sheet.name, "A", "G", 20); err != nil {
			return errors.OutputFailed(path, err)
		}
		for r, row := range sheet.rows {
			values := []interface{}{
				row.Segment, number(row.RSquared), row.Name, number(row.Coef), number(row.StdErr),
				number(row.T), number(row.P), number(row.CILower), number(row.CIUpper),
			}
			if err := setRow(f, sheet.name, r+2, values); err != nil {
				return errors.OutputFailed(path, err)
			}
		}
	}

	if err := save(f, path); err != nil {
		return err
	}
	w.logger.Info("Regression results saved to %s (%d detail rows, %d overall rows)", path, len(detail), len(overall))
	return nil
}

// WriteSEM writes the hypothesis summary and, optionally, the raw estimates and fit statistics
func (w *ReportWriter) WriteSEM(path string, report verdict.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	acceptedStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: center,
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"00FF00"}},
	})
	if err != nil {
		return errors.OutputFailed(path, err)
	}
	rejectedStyle, err := f.NewStyle(&excelize.Style{
		Alignment: center,
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFFFF"}},
	})
	if err != nil {
		return errors.OutputFailed(path, err)
	}

	if err := addSheet(f, 0, SheetHypotheses); err != nil {
		return errors.OutputFailed(path, err)
	}
	if err := writeHeader(f, SheetHypotheses, hypothesisHeaders, 0); err != nil {
		return errors.OutputFailed(path, err)
	}

	for i, v := range report.Verdicts {
		rowNum := i + 2
		var values []interface{}
		style := 0
		if v.Match == nil {
			values = []interface{}{v.Segment, v.Hypothesis.Label, NotAvailable, NotAvailable, NotAvailable, NotAvailable, string(v.Status)}
		} else {
			m := v.Match
			values = []interface{}{v.Segment, v.Hypothesis.Label, number(m.PValue), number(m.Estimate), number(m.StdErr), number(m.ZValue), string(v.Status)}
			style = rejectedStyle
			if v.Status == verdict.StatusAccepted {
				style = acceptedStyle
			}
		}
		if err := setRow(f, SheetHypotheses, rowNum, values); err != nil {
			return errors.OutputFailed(path, err)
		}
		if style != 0 {
			first, _ := excelize.CoordinatesToCellName(1, rowNum)
			last, _ := excelize.CoordinatesToCellName(len(hypothesisHeaders), rowNum)
			if err := f.SetCellStyle(SheetHypotheses, first, last, style); err != nil {
				return errors.OutputFailed(path, err)
			}
		}
	}

	if report.IncludeEstimates {
		if err := writeEstimates(f, report.Estimates); err != nil {
			return errors.OutputFailed(path, err)
		}
		if err := writeFitStats(f, report.Stats); err != nil {
			return errors.OutputFailed(path, err)
		}
	}

	if err := save(f, path); err != nil {
		return err
	}
	w.logger.Info("Hypotheses summary saved to %s (%d rows)", path, len(report.Verdicts))
	return nil
}

func writeEstimates(f *excelize.File, estimates []sem.Estimate) error {
	if err := addSheet(f, 1, SheetEstimates); err != nil {
		return err
	}
	if err := writeHeader(f, SheetEstimates, estimateHeaders, 0); err != nil {
		return err
	}
	for i, e := range estimates {
		values := []interface{}{
			e.Segment, e.LVal, e.Op, e.RVal, number(e.Estimate), number(e.StdErr),
			number(e.ZValue), number(e.PValue), e.Significant,
		}
		if err := setRow(f, SheetEstimates, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeFitStats(f *excelize.File, stats []sem.SegmentStats) error {
	if err := addSheet(f, 2, SheetFitStats); err != nil {
		return err
	}
	if err := writeHeader(f, SheetFitStats, fitStatsHeaders, 0); err != nil {
		return err
	}
	for i, s := range stats {
		values := []interface{}{
			s.Segment, s.Stats.NObs, s.Stats.Dropped, number(s.Stats.Chi2), s.Stats.DF,
			number(s.Stats.PValue), number(s.Stats.CFI), number(s.Stats.TLI), number(s.Stats.RMSEA), s.Stats.Iterations,
		}
		if err := setRow(f, SheetFitStats, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

// addSheet renames the default sheet for index 0 and appends the others
func addSheet(f *excelize.File, index int, name string) error {
	if index == 0 {
		return f.SetSheetName(f.GetSheetName(0), name)
	}
	_, err := f.NewSheet(name)
	return err
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	if style == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// number maps NaN and Inf to a blank cell
func number(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func save(f *excelize.File, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.OutputFailed(path, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.OutputFailed(path, fmt.Errorf("save workbook: %w", err))
	}
	return nil
}
