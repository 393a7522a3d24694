package app

import (
	"context"

	"surveylab/domain/dataset"
	"surveylab/domain/regression"
	"surveylab/domain/sem"
	"surveylab/domain/summary"
	"surveylab/domain/verdict"

	"github.com/stretchr/testify/mock"
)

// Mock implementations for testing
type MockDatasetReader struct {
	mock.Mock
}

func (m *MockDatasetReader) ReadTable() (*dataset.Table, error) {
	args := m.Called()
	table, _ := args.Get(0).(*dataset.Table)
	return table, args.Error(1)
}

type MockOLSFitter struct {
	mock.Mock
}

func (m *MockOLSFitter) FitTable(t *dataset.Table, y string, predictors []string) (*regression.Fit, error) {
	args := m.Called(t, y, predictors)
	fit, _ := args.Get(0).(*regression.Fit)
	return fit, args.Error(1)
}

type MockSEMFitter struct {
	mock.Mock
}

func (m *MockSEMFitter) CheckModel(source string) error {
	args := m.Called(source)
	return args.Error(0)
}

func (m *MockSEMFitter) FitModel(source string, t *dataset.Table) (*sem.Fit, error) {
	args := m.Called(source, t)
	fit, _ := args.Get(0).(*sem.Fit)
	return fit, args.Error(1)
}

type MockDiagramRenderer struct {
	mock.Mock
}

func (m *MockDiagramRenderer) Render(ctx context.Context, segment, dependent string, estimates []sem.Estimate) (string, error) {
	args := m.Called(ctx, segment, dependent, estimates)
	return args.String(0), args.Error(1)
}

type MockReportWriter struct {
	mock.Mock
	detail  []regression.DetailRow
	overall []regression.DetailRow
	report  verdict.Report
}

func (m *MockReportWriter) WriteRegression(path string, detail, overall []regression.DetailRow) error {
	args := m.Called(path, detail, overall)
	m.detail = detail
	m.overall = overall
	return args.Error(0)
}

func (m *MockReportWriter) WriteSEM(path string, report verdict.Report) error {
	args := m.Called(path, report)
	m.report = report
	return args.Error(0)
}

type MockSummaryWriter struct {
	mock.Mock
}

func (m *MockSummaryWriter) Write(path string, doc summary.Document) error {
	args := m.Called(path, doc)
	return args.Error(0)
}

// segmentTable matches a segment table by its segmentation value and size
func segmentTable(column, label string, rows int) interface{} {
	return mock.MatchedBy(func(t *dataset.Table) bool {
		return t.RowCount() == rows && t.Value(0, column) == label
	})
}

func surveyTable() *dataset.Table {
	columns := []string{"Generation", "VAR1", "VAR2", "VAR3", "Yvar_USE_AI_Work"}
	raw := [][]string{
		{"Gen Z", "1", "2", "3", "4"},
		{"Gen Z", "2", "1", "3", "5"},
		{"Gen Z", "3", "2", "1", "6"},
		{"Boomer", "1", "3", "2", "2"},
		{"Boomer", "2", "2", "2", "3"},
		{"Boomer", "4", "1", "5", "4"},
		{"Silent", "5", "5", "5", "5"},
	}
	rows := make([]dataset.Record, len(raw))
	for i, r := range raw {
		rec := make(dataset.Record, len(columns))
		for j, c := range columns {
			rec[c] = r[j]
		}
		rows[i] = rec
	}
	return dataset.NewTable(columns, rows)
}
