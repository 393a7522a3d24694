package app

import (
	"context"
	"time"

	"surveylab/domain/core"
	"surveylab/domain/dataset"
	"surveylab/domain/run"
	"surveylab/domain/sem"
	"surveylab/domain/summary"
	"surveylab/domain/verdict"
	"surveylab/internal"
	"surveylab/internal/errors"
	"surveylab/ports"
)

// SEMRequest defines the inputs for a hypothesis-testing SEM run
type SEMRequest struct {
	InputPath         string
	Filter            FilterSpec
	Segmentation      dataset.PartitionOptions
	Model             string
	Hypotheses        []verdict.Hypothesis
	DependentVariable string
	// PValueThreshold is recorded in the manifest only; significance is |z| > 1.96
	PValueThreshold  float64
	OutputPath       string
	IncludeEstimates bool
	Outputs          OutputOptions
}

func (r SEMRequest) settings() map[string]interface{} {
	paths := make([]string, len(r.Hypotheses))
	for i, h := range r.Hypotheses {
		paths[i] = h.Label + ": " + h.Path.String()
	}
	return map[string]interface{}{
		"filter.column":          r.Filter.Column,
		"filter.values":          r.Filter.Values,
		"segmentation.enabled":   r.Segmentation.Enabled,
		"segmentation.column":    r.Segmentation.Column,
		"segmentation.order":     string(r.Segmentation.Order),
		"sem.model":              r.Model,
		"sem.hypotheses":         paths,
		"sem.dependent_variable": r.DependentVariable,
		"sem.pvalue_threshold":   r.PValueThreshold,
		"sem.include_estimates":  r.IncludeEstimates,
		"sem.output_file":        r.OutputPath,
	}
}

// SEMResult contains the output of a SEM run
type SEMResult struct {
	RunID     core.RunID
	Segments  []string
	Fitted    int
	Estimates []sem.Estimate
	Stats     []sem.SegmentStats
	Verdicts  []verdict.Verdict
	Diagrams  []string
	Issues    []SegmentIssue
	Outputs   []string
	RuntimeMs int64
}

// SEMService fits the model per segment, draws its path diagram and checks
// every hypothesis against the estimates
type SEMService struct {
	reader   ports.DatasetReaderPort
	fitter   ports.SEMFitterPort
	renderer ports.DiagramRendererPort
	writer   ports.ReportWriterPort
	summary  ports.SummaryWriterPort
	logger   *internal.Logger
}

// NewSEMService creates a SEM service
func NewSEMService(reader ports.DatasetReaderPort, fitter ports.SEMFitterPort, renderer ports.DiagramRendererPort,
	writer ports.ReportWriterPort, summaryWriter ports.SummaryWriterPort) *SEMService {
	return &SEMService{
		reader:   reader,
		fitter:   fitter,
		renderer: renderer,
		writer:   writer,
		summary:  summaryWriter,
		logger:   internal.DefaultLogger.With("SEM"),
	}
}

// Run executes the pipeline. Fit and render failures are per-segment issues;
// segments whose fit failed still get a Path Not Found row per hypothesis.
func (s *SEMService) Run(ctx context.Context, req SEMRequest) (*SEMResult, error) {
	startTime := time.Now()
	result := &SEMResult{}

	if err := s.fitter.CheckModel(req.Model); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "invalid model description"))
	}

	manifest, err := newManifest(run.PipelineSEM, req.InputPath, req.Outputs, req.settings())
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		result.RunID = manifest.RunID
	}

	_, segments, err := loadSegments(s.reader, req.Filter, req.Segmentation, s.logger)
	if err != nil {
		return nil, err
	}
	result.Segments = dataset.Labels(segments)

	bySegment := make(map[string][]sem.Estimate, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fit, err := s.fitter.FitModel(req.Model, seg.Table)
		if err != nil {
			issue := newIssue(s.logger, seg.Label, errors.FitFailed(seg.Label, err))
			result.Issues = append(result.Issues, issue)
			recordSegment(manifest, seg, run.SegmentFailed, issue.Message)
			continue
		}

		estimates := sem.Annotate(fit.Estimates, seg.Label)
		bySegment[seg.Label] = estimates
		result.Estimates = append(result.Estimates, estimates...)
		result.Stats = append(result.Stats, sem.SegmentStats{Segment: seg.Label, Stats: fit.Stats})
		result.Fitted++
		recordSegment(manifest, seg, run.SegmentFitted, "")
		s.logger.Info("Segment %s: n=%d chi2=%.3f df=%d CFI=%.3f RMSEA=%.3f",
			seg.Label, fit.Stats.NObs, fit.Stats.Chi2, fit.Stats.DF, fit.Stats.CFI, fit.Stats.RMSEA)

		diagram, err := s.renderer.Render(ctx, seg.Label, req.DependentVariable, estimates)
		if err != nil {
			result.Issues = append(result.Issues, newIssue(s.logger, seg.Label, errors.RenderFailed(seg.Label, err)))
		}
		if diagram != "" {
			result.Diagrams = append(result.Diagrams, diagram)
		}
	}

	if result.Fitted == 0 {
		return nil, errors.EmptyResult("no segment produced a SEM fit; no output written")
	}

	result.Verdicts = verdict.Summarize(result.Segments, req.Hypotheses, bySegment)
	report := verdict.Report{
		Verdicts:         result.Verdicts,
		Estimates:        result.Estimates,
		Stats:            result.Stats,
		IncludeEstimates: req.IncludeEstimates,
	}
	if err := s.writer.WriteSEM(req.OutputPath, report); err != nil {
		return nil, err
	}
	result.Outputs = append(result.Outputs, req.OutputPath)

	if req.Outputs.HTMLPath != "" {
		doc := summary.SEMDocument("SEM hypothesis results", result.Verdicts, result.Stats, issueStrings(result.Issues))
		if err := s.summary.Write(req.Outputs.HTMLPath, doc); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, req.Outputs.HTMLPath)
	}

	if manifest != nil {
		for _, out := range append(result.Diagrams, result.Outputs...) {
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
