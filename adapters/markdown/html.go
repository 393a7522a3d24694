package markdown

import (
	"os"
	"path/filepath"

	"surveylab/domain/summary"
	"surveylab/internal"
	"surveylab/internal/errors"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RenderHTML renders a summary document as a complete HTML page
func RenderHTML(doc summary.Document) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: doc.Title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(doc.Markdown()), p, renderer)
}

// HTMLWriter writes run summaries next to the workbooks
type HTMLWriter struct {
	logger *internal.Logger
}

// NewHTMLWriter creates a summary writer
func NewHTMLWriter() *HTMLWriter {
	return &HTMLWriter{logger: internal.DefaultLogger.With("HTMLWriter")}
}

// Write renders doc to path
func (w *HTMLWriter) Write(path string, doc summary.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.OutputFailed(path, err)
	}
	if err := os.WriteFile(path, RenderHTML(doc), 0o644); err != nil {
		return errors.OutputFailed(path, err)
	}
	w.logger.Info("HTML summary saved to %s", path)
	return nil
}
