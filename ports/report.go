package ports

import (
	"context"

	"surveylab/domain/regression"
	"surveylab/domain/sem"
	"surveylab/domain/summary"
	"surveylab/domain/verdict"
)

// DiagramRendererPort draws the estimated path diagram of one segment and
// returns the path of the produced file
type DiagramRendererPort interface {
	Render(ctx context.Context, segment, dependent string, estimates []sem.Estimate) (string, error)
}

// ReportWriterPort writes the result workbooks
type ReportWriterPort interface {
	WriteRegression(path string, detail, overall []regression.DetailRow) error
	WriteSEM(path string, report verdict.Report) error
}

// SummaryWriterPort writes the optional HTML run summary
type SummaryWriterPort interface {
	Write(path string, doc summary.Document) error
}
