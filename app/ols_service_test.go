package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"surveylab/adapters/excel"
	"surveylab/adapters/markdown"
	"surveylab/adapters/stats/ols"
	"surveylab/domain/dataset"
	"surveylab/domain/regression"
	"surveylab/domain/run"
	"surveylab/internal/errors"
	"surveylab/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const yColumn = "Yvar_USE_AI_Work"

var allPredictors = []string{"VAR1", "VAR2", "VAR3"}

func fitWith(r2 float64, pvalues map[string]float64) *regression.Fit {
	fit := &regression.Fit{RSquared: r2, NObs: 3}
	for _, name := range append([]string{"const"}, allPredictors...) {
		p, ok := pvalues[name]
		if !ok {
			continue
		}
		fit.Terms = append(fit.Terms, regression.Term{Name: name, Coef: 1, P: p})
	}
	return fit
}

func olsRequest() OLSRequest {
	return OLSRequest{
		Filter:          FilterSpec{Column: "Generation", Values: []string{"Silent"}},
		Segmentation:    dataset.PartitionOptions{Enabled: true, Column: "Generation", Order: dataset.OrderSorted},
		YColumn:         yColumn,
		XPrefixes:       []string{"VAR"},
		PValueThreshold: 0.05,
		OutputPath:      "summary/Regression_Results_Generation_Detailed.xlsx",
	}
}

func TestOLSService_PooledPredictorsAreUnionOfSignificant(t *testing.T) {
	reader := new(MockDatasetReader)
	reader.On("ReadTable").Return(surveyTable(), nil)

	fitter := new(MockOLSFitter)
	fitter.On("FitTable", segmentTable("Generation", "Boomer", 3), yColumn, allPredictors).
		Return(fitWith(0.4, map[string]float64{"const": 0.2, "VAR1": 0.6, "VAR2": 0.03, "VAR3": 0.9}), nil)
	fitter.On("FitTable", segmentTable("Generation", "Gen Z", 3), yColumn, allPredictors).
		Return(fitWith(0.7, map[string]float64{"const": 0.001, "VAR1": 0.01, "VAR2": 0.5, "VAR3": 0.05}), nil)
	fitter.On("FitTable", mock.MatchedBy(func(t *dataset.Table) bool { return t.RowCount() == 6 }), yColumn, allPredictors).
		Return(fitWith(0.5, map[string]float64{"const": 0.3, "VAR1": 0.02, "VAR2": 0.04, "VAR3": 0.2}), nil)

	writer := new(MockReportWriter)
	writer.On("WriteRegression", "summary/Regression_Results_Generation_Detailed.xlsx", mock.Anything, mock.Anything).Return(nil)

	svc := NewOLSService(reader, fitter, writer, new(MockSummaryWriter))
	result, err := svc.Run(context.Background(), olsRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"Boomer", "Gen Z"}, result.Segments)
	assert.Equal(t, 2, result.Fitted)
	// VAR3 sits exactly on the threshold in Gen Z, which counts as significant
	assert.Equal(t, allPredictors, result.Predictors)

	var detail []string
	for _, row := range writer.detail {
		detail = append(detail, row.Segment+"/"+row.Name)
	}
	assert.Equal(t, []string{"Boomer/VAR2", "Gen Z/const", "Gen Z/VAR1", "Gen Z/VAR3"}, detail)
	assert.Equal(t, 0.7, writer.detail[1].RSquared)

	require.Len(t, writer.overall, 4)
	for _, row := range writer.overall {
		assert.Equal(t, regression.OverallLabel, row.Segment)
	}
	fitter.AssertExpectations(t)
	writer.AssertExpectations(t)
}

func TestOLSService_TwoSegmentScenario(t *testing.T) {
	reader := new(MockDatasetReader)
	reader.On("ReadTable").Return(surveyTable(), nil)

	fitter := new(MockOLSFitter)
	fitter.On("FitTable", segmentTable("Generation", "Boomer", 3), yColumn, allPredictors).
		Return(fitWith(0.4, map[string]float64{"const": 0.2, "VAR1": 0.6, "VAR2": 0.01, "VAR3": 0.9}), nil)
	fitter.On("FitTable", segmentTable("Generation", "Gen Z", 3), yColumn, allPredictors).
		Return(fitWith(0.7, map[string]float64{"const": 0.2, "VAR1": 0.01, "VAR2": 0.5, "VAR3": 0.5}), nil)
	fitter.On("FitTable", mock.MatchedBy(func(t *dataset.Table) bool { return t.RowCount() == 6 }), yColumn, []string{"VAR1", "VAR2"}).
		Return(fitWith(0.5, map[string]float64{"const": 0.3, "VAR1": 0.02, "VAR2": 0.04}), nil)

	writer := new(MockReportWriter)
	writer.On("WriteRegression", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := NewOLSService(reader, fitter, writer, new(MockSummaryWriter)).Run(context.Background(), olsRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"VAR1", "VAR2"}, result.Predictors)
	names := make([]string, len(result.Overall))
	for i, row := range result.Overall {
		names[i] = row.Name
	}
	assert.Equal(t, []string{"const", "VAR1", "VAR2"}, names)
	fitter.AssertExpectations(t)
}

func TestOLSService_SegmentationDisabled(t *testing.T) {
	reader := new(MockDatasetReader)
	reader.On("ReadTable").Return(surveyTable(), nil)

	fitter := new(MockOLSFitter)
	fitter.On("FitTable", mock.Anything, yColumn, allPredictors).
		Return(fitWith(0.3, map[string]float64{"const": 0.5, "VAR1": 0.01, "VAR2": 0.5, "VAR3": 0.5}), nil).Once()
	fitter.On("FitTable", mock.Anything, yColumn, []string{"VAR1"}).
		Return(fitWith(0.25, map[string]float64{"const": 0.5, "VAR1": 0.01}), nil).Once()

	writer := new(MockReportWriter)
	writer.On("WriteRegression", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	req := olsRequest()
	req.Filter = FilterSpec{}
	req.Segmentation = dataset.PartitionOptions{Enabled: false, Column: "does-not-matter"}

	result, err := NewOLSService(reader, fitter, writer, new(MockSummaryWriter)).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{dataset.EntireDatasetLabel}, result.Segments)
	segmentCall := fitter.Calls[0].Arguments.Get(0).(*dataset.Table)
	assert.Equal(t, 7, segmentCall.RowCount())
	fitter.AssertExpectations(t)
}

func TestOLSService_NoPredictorsMatch(t *testing.T) {
	reader := new(MockDatasetReader)
	reader.On("ReadTable").Return(surveyTable(), nil)
	fitter := new(MockOLSFitter)
	writer := new(MockReportWriter)

	req := olsRequest()
	req.XPrefixes = []string{"PEOU_"}

	_, err := NewOLSService(reader, fitter, writer, new(MockSummaryWriter)).Run(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.CodeEmptyResult, errors.GetCode(err))
	fitter.AssertNotCalled(t, "FitTable", mock.Anything, mock.Anything, mock.Anything)
	writer.AssertNotCalled(t, "WriteRegression", mock.Anything, mock.Anything, mock.Anything)
}

func TestOLSService_NoSignificantPredictors(t *testing.T) {
	reader := new(MockDatasetReader)
	reader.On("ReadTable").Return(surveyTable(), nil)
	fitter := new(MockOLSFitter)
	fitter.On("FitTable", mock.Anything, yColumn, allPredictors).
		Return(fitWith(0.1, map[string]float64{"const": 0.01, "VAR1": 0.6, "VAR2": 0.5, "VAR3": 0.9}), nil)
	writer := new(MockReportWriter)

	_, err := NewOLSService(reader, fitter, writer, new(MockSummaryWriter)).Run(context.Background(), olsRequest())
	require.Error(t, err)
	assert.Equal(t, errors.CodeNoSignificantPredictors, errors.GetCode(err))
	fitter.AssertNumberOfCalls(t, "FitTable", 2)
	writer.AssertNotCalled(t, "WriteRegression", mock.Anything, mock.Anything, mock.Anything)
}

func TestOLSService_FailedSegmentIsSkipped(t *testing.T) {
	reader := new(MockDatasetReader)
	reader.On("ReadTable").Return(surveyTable(), nil)

	fitter := new(MockOLSFitter)
	fitter.On("FitTable", segmentTable("Generation", "Boomer", 3), yColumn, allPredictors).
		Return(nil, fmt.Errorf("singular design matrix"))
	fitter.On("FitTable", segmentTable("Generation", "Gen Z", 3), yColumn, allPredictors).
		Return(fitWith(0.7, map[string]float64{"const": 0.2, "VAR1": 0.01, "VAR2": 0.5, "VAR3": 0.5}), nil)
	fitter.On("FitTable", mock.Anything, yColumn, []string{"VAR1"}).
		Return(fitWith(0.5, map[string]float64{"const": 0.3, "VAR1": 0.02}), nil)

	writer := new(MockReportWriter)
	writer.On("WriteRegression", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := NewOLSService(reader, fitter, writer, new(MockSummaryWriter)).Run(context.Background(), olsRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Fitted)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "Boomer", result.Issues[0].Segment)
	assert.Equal(t, errors.CodeFitFailed, result.Issues[0].Code)
	for _, row := range result.Detail {
		assert.NotEqual(t, "Boomer", row.Segment)
	}
}

func TestOLSService_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*OLSRequest)
		code   string
	}{
		{"missing filter column", func(r *OLSRequest) { r.Filter.Column = "Country" }, errors.CodeMissingColumn},
		{"missing segmentation column", func(r *OLSRequest) { r.Segmentation.Column = "Region" }, errors.CodeMissingColumn},
		{"missing dependent column", func(r *OLSRequest) { r.YColumn = "Outcome" }, errors.CodeMissingColumn},
		{"invalid prefix", func(r *OLSRequest) { r.XPrefixes = []string{"VAR("} }, errors.CodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockDatasetReader)
			reader.On("ReadTable").Return(surveyTable(), nil)
			req := olsRequest()
			tt.modify(&req)

			_, err := NewOLSService(reader, new(MockOLSFitter), new(MockReportWriter), new(MockSummaryWriter)).Run(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}

	reader := new(MockDatasetReader)
	reader.On("ReadTable").Return(nil, errors.InputNotFound("data/TAM_DEF.xlsx"))
	_, err := NewOLSService(reader, new(MockOLSFitter), new(MockReportWriter), new(MockSummaryWriter)).Run(context.Background(), olsRequest())
	assert.Equal(t, errors.CodeInputNotFound, errors.GetCode(err))
}

func TestSelectPredictors(t *testing.T) {
	columns := []string{"Yvar_USE_AI_Work", "VAR1", "Age", "VAR10", "PU_1", "VAR2", "XVAR"}

	got, err := SelectPredictors(columns, []string{"VAR", "PU_", "VAR1"}, "VAR2")
	require.NoError(t, err)
	assert.Equal(t, []string{"VAR1", "VAR10", "PU_1"}, got)

	got, err = SelectPredictors(columns, []string{"Q"}, "Yvar_USE_AI_Work")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = SelectPredictors(columns, []string{"Yvar"}, "Yvar_USE_AI_Work")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// writeSurveyCSV simulates a survey where VAR1 drives the outcome in one
// generation and VAR2 in the other, plus a Silent respondent to filter out
func writeSurveyCSV(t *testing.T, dir string) string {
	t.Helper()
	table := testkit.NewSurveyGenerator(testkit.DefaultSurveyConfig()).Generate()
	silent := dataset.Record{"Generation": "Silent", "VAR1": "1", "VAR2": "1", yColumn: ""}
	table = table.WithRows(append(table.Rows, silent))

	path := filepath.Join(dir, "survey.csv")
	require.NoError(t, testkit.WriteCSV(table, path))
	return path
}

func TestOLSService_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeSurveyCSV(t, dir)

	req := olsRequest()
	req.InputPath = input
	req.OutputPath = filepath.Join(dir, "summary", "Regression_Results_Generation_Detailed.xlsx")
	req.Outputs = OutputOptions{
		HTMLPath:     filepath.Join(dir, "summary", "Regression_Results_Generation_Detailed.html"),
		ManifestPath: filepath.Join(dir, "summary", "manifest.json"),
	}

	svc := NewOLSService(excel.NewDataReader(input, ""), ols.NewEstimator(), excel.NewReportWriter(), markdown.NewHTMLWriter())
	result, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"Gen X", "Millennial"}, result.Segments)
	assert.Equal(t, []string{"VAR1", "VAR2"}, result.Predictors)
	assert.Len(t, result.Outputs, 3)

	f, err := excelize.OpenFile(req.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{excel.SheetDetail, excel.SheetOverall}, f.GetSheetList())
	rows, err := f.GetRows(excel.SheetOverall)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	manifest, err := run.ReadManifest(req.Outputs.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, manifest.RunID)
	assert.Equal(t, run.PipelineOLS, manifest.Pipeline)
	assert.Len(t, manifest.Segments, 2)
	assert.Contains(t, manifest.Outputs, req.OutputPath)

	_, err = os.Stat(req.Outputs.HTMLPath)
	assert.NoError(t, err)
}
