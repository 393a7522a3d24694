package testkit

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"surveylab/domain/dataset"

	"github.com/xuri/excelize/v2"
)

// SurveyGeneratorConfig configures the synthetic survey generator
type SurveyGeneratorConfig struct {
	SegmentColumn         string   `json:"segment_column" yaml:"segment_column"`
	Segments              []string `json:"segments" yaml:"segments"`
	RespondentsPerSegment int      `json:"respondents_per_segment" yaml:"respondents_per_segment"`
	Predictors            []string `json:"predictors" yaml:"predictors"`
	Outcome               string   `json:"outcome" yaml:"outcome"`
	// Effects maps segment -> predictor -> coefficient. The "*" segment applies to all.
	Effects   map[string]map[string]float64 `json:"effects" yaml:"effects"`
	Intercept float64                       `json:"intercept" yaml:"intercept"`
	Noise     float64                       `json:"noise" yaml:"noise"`
	// MissingRate is the share of predictor cells left blank
	MissingRate float64 `json:"missing_rate" yaml:"missing_rate"`
	// Likert rounds predictors to a 1..7 scale
	Likert bool  `json:"likert" yaml:"likert"`
	Seed   int64 `json:"seed" yaml:"seed"`
}

// AllSegments is the Effects key applied to every segment
const AllSegments = "*"

// DefaultSurveyConfig returns a two-generation survey where VAR1 drives the
// outcome for Millennials and VAR2 for Gen X
func DefaultSurveyConfig() SurveyGeneratorConfig {
	return SurveyGeneratorConfig{
		SegmentColumn:         "Generation",
		Segments:              []string{"Millennial", "Gen X"},
		RespondentsPerSegment: 80,
		Predictors:            []string{"VAR1", "VAR2"},
		Outcome:               "Yvar_USE_AI_Work",
		Effects: map[string]map[string]float64{
			"Millennial": {"VAR1": 2},
			"Gen X":      {"VAR2": 2},
		},
		Intercept: 1,
		Noise:     0.1,
		Seed:      7,
	}
}

// SurveyGenerator produces deterministic survey tables from a seed
type SurveyGenerator struct {
	config SurveyGeneratorConfig
	rng    *rand.Rand
}

// NewSurveyGenerator creates a new survey generator
func NewSurveyGenerator(config SurveyGeneratorConfig) *SurveyGenerator {
	return &SurveyGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Columns returns the header row: segment column, predictors, outcome
func (g *SurveyGenerator) Columns() []string {
	var columns []string
	if g.config.SegmentColumn != "" {
		columns = append(columns, g.config.SegmentColumn)
	}
	columns = append(columns, g.config.Predictors...)
	return append(columns, g.config.Outcome)
}

// Generate builds the table, segment by segment
func (g *SurveyGenerator) Generate() *dataset.Table {
	var rows []dataset.Record
	for _, segment := range g.config.Segments {
		for i := 0; i < g.config.RespondentsPerSegment; i++ {
			rows = append(rows, g.respondent(segment))
		}
	}
	return dataset.NewTable(g.Columns(), rows)
}

func (g *SurveyGenerator) respondent(segment string) dataset.Record {
	rec := make(dataset.Record, len(g.config.Predictors)+2)
	if g.config.SegmentColumn != "" {
		rec[g.config.SegmentColumn] = segment
	}

	y := g.config.Intercept + g.config.Noise*g.rng.NormFloat64()
	for _, p := range g.config.Predictors {
		x := g.rng.NormFloat64()
		if g.config.Likert {
			x = math.Max(1, math.Min(7, math.Round(4+1.5*x)))
		}
		y += g.effect(segment, p) * x

		if g.config.MissingRate > 0 && g.rng.Float64() < g.config.MissingRate {
			rec[p] = ""
			continue
		}
		rec[p] = strconv.FormatFloat(x, 'f', 6, 64)
	}
	rec[g.config.Outcome] = strconv.FormatFloat(y, 'f', 6, 64)
	return rec
}

func (g *SurveyGenerator) effect(segment, predictor string) float64 {
	return g.config.Effects[segment][predictor] + g.config.Effects[AllSegments][predictor]
}

// WriteCSV writes table as a CSV file
func WriteCSV(table *dataset.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return err
	}
	for i := range table.Rows {
		record := make([]string, len(table.Columns))
		for j, c := range table.Columns {
			record[j] = table.Value(i, c)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteXLSX writes table to a single-sheet workbook. Numeric cells are
// stored as numbers so readers see raw values.
func WriteXLSX(table *dataset.Table, path, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	header := make([]interface{}, len(table.Columns))
	for j, c := range table.Columns {
		header[j] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := range table.Rows {
		row := make([]interface{}, len(table.Columns))
		for j, c := range table.Columns {
			raw := table.Value(i, c)
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				row[j] = v
			} else if raw != "" {
				row[j] = raw
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
