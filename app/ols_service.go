package app

import (
	"context"
	"time"

	"surveylab/domain/core"
	"surveylab/domain/dataset"
	"surveylab/domain/regression"
	"surveylab/domain/run"
	"surveylab/domain/summary"
	"surveylab/internal"
	"surveylab/internal/errors"
	"surveylab/ports"
)

// OLSRequest defines the inputs for a segmented regression run
type OLSRequest struct {
	InputPath       string
	Filter          FilterSpec
	Segmentation    dataset.PartitionOptions
	YColumn         string
	XPrefixes       []string
	PValueThreshold float64
	OutputPath      string
	Outputs         OutputOptions
}

func (r OLSRequest) settings() map[string]interface{} {
	return map[string]interface{}{
		"filter.column":        r.Filter.Column,
		"filter.values":        r.Filter.Values,
		"segmentation.enabled": r.Segmentation.Enabled,
		"segmentation.column":  r.Segmentation.Column,
		"segmentation.order":   string(r.Segmentation.Order),
		"ols.y_column":         r.YColumn,
		"ols.x_prefixes":       r.XPrefixes,
		"ols.pvalue_threshold": r.PValueThreshold,
		"ols.output_file":      r.OutputPath,
	}
}

// OLSResult contains the output of a segmented regression run
type OLSResult struct {
	RunID      core.RunID
	Segments   []string
	Fitted     int
	Detail     []regression.DetailRow
	Overall    []regression.DetailRow
	Predictors []string // pooled predictors, table column order
	Issues     []SegmentIssue
	Outputs    []string
	RuntimeMs  int64
}

// OLSService runs per-segment regressions and refits the union of their
// significant terms on the whole filtered table
type OLSService struct {
	reader  ports.DatasetReaderPort
	fitter  ports.OLSFitterPort
	writer  ports.ReportWriterPort
	summary ports.SummaryWriterPort
	logger  *internal.Logger
}

// NewOLSService creates a regression service
func NewOLSService(reader ports.DatasetReaderPort, fitter ports.OLSFitterPort, writer ports.ReportWriterPort, summaryWriter ports.SummaryWriterPort) *OLSService {
	return &OLSService{
		reader:  reader,
		fitter:  fitter,
		writer:  writer,
		summary: summaryWriter,
		logger:  internal.DefaultLogger.With("OLS"),
	}
}

// Run executes the pipeline. Segment failures are collected as issues; the
// run itself fails only when nothing could be fitted or written.
func (s *OLSService) Run(ctx context.Context, req OLSRequest) (*OLSResult, error) {
	startTime := time.Now()
	result := &OLSResult{}

	manifest, err := newManifest(run.PipelineOLS, req.InputPath, req.Outputs, req.settings())
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		result.RunID = manifest.RunID
	}

	filtered, segments, err := loadSegments(s.reader, req.Filter, req.Segmentation, s.logger)
	if err != nil {
		return nil, err
	}
	result.Segments = dataset.Labels(segments)
	if !filtered.HasColumn(req.YColumn) {
		return nil, errors.MissingColumn("dependent", req.YColumn)
	}

	predictors, err := SelectPredictors(filtered.Columns, req.XPrefixes, req.YColumn)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Predictors matching %v: %v", req.XPrefixes, predictors)

	significant := regression.NewTermSet()
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(predictors) == 0 {
			issue := newIssue(s.logger, seg.Label, errors.InvalidInput("no columns match the predictor prefixes"))
			result.Issues = append(result.Issues, issue)
			recordSegment(manifest, seg, run.SegmentSkipped, issue.Message)
			continue
		}

		y := dataset.Describe(seg.Table, req.YColumn)
		s.logger.Debug("Segment %s: %s n=%d missing=%d mean=%.3f sd=%.3f", seg.Label, y.Column, y.Count, y.Missing, y.Mean, y.StdDev)
		if y.IsConstant() {
			s.logger.Warn("Segment %s: %s is constant, R2 is undefined", seg.Label, y.Column)
		}

		fit, err := s.fitter.FitTable(seg.Table, req.YColumn, predictors)
		if err != nil {
			issue := newIssue(s.logger, seg.Label, errors.FitFailed(seg.Label, err))
			result.Issues = append(result.Issues, issue)
			recordSegment(manifest, seg, run.SegmentFailed, issue.Message)
			continue
		}

		terms := fit.Significant(req.PValueThreshold)
		result.Detail = append(result.Detail, regression.Rows(seg.Label, fit, terms)...)
		significant.AddSignificant(terms)
		result.Fitted++
		recordSegment(manifest, seg, run.SegmentFitted, "")
		s.logger.Info("Segment %s: n=%d R2=%.4f, %d significant term(s)", seg.Label, fit.NObs, fit.RSquared, len(terms))
	}

	if result.Fitted == 0 {
		return nil, errors.EmptyResult("no segment produced a regression fit; no output written")
	}
	if significant.Len() == 0 {
		return nil, errors.NoSignificantPredictors()
	}

	result.Predictors = significant.OrderedBy(filtered.Columns)
	pooled, err := s.fitter.FitTable(filtered, req.YColumn, result.Predictors)
	if err != nil {
		return nil, errors.FitFailed(regression.OverallLabel, err)
	}
	result.Overall = regression.Rows(regression.OverallLabel, pooled, pooled.Terms)
	s.logger.Info("Overall regression on %v: n=%d R2=%.4f", result.Predictors, pooled.NObs, pooled.RSquared)

	if err := s.writer.WriteRegression(req.OutputPath, result.Detail, result.Overall); err != nil {
		return nil, err
	}
	result.Outputs = append(result.Outputs, req.OutputPath)

	if req.Outputs.HTMLPath != "" {
		doc := summary.RegressionDocument("Regression results by "+segmentTitle(req.Segmentation),
			result.Segments, result.Detail, result.Overall, issueStrings(result.Issues))
		if err := s.summary.Write(req.Outputs.HTMLPath, doc); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, req.Outputs.HTMLPath)
	}

	if manifest != nil {
		for _, out := range result.Outputs {
			manifest.AddOutput(out)
		}
		if err := finishManifest(manifest, req.Outputs.ManifestPath, s.logger); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, req.Outputs.ManifestPath)
	}

	result.RuntimeMs = time.Since(startTime).Milliseconds()
	return result, nil
}

func recordSegment(m *run.Manifest, seg dataset.Segment, status, reason string) {
	if m != nil {
		m.AddSegment(seg.Label, seg.Table.RowCount(), status, reason)
	}
}

func segmentTitle(opts dataset.PartitionOptions) string {
	if !opts.Enabled {
		return dataset.EntireDatasetLabel
	}
	return opts.Column
}
