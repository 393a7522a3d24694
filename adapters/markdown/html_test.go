package markdown

import (
	"os"
	"path/filepath"
	"testing"

	"surveylab/domain/summary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.html")
	doc := summary.Document{
		Title: "Run",
		Sections: []summary.Section{{
			Heading:    "Hypotheses",
			Paragraphs: []string{"Verdicts per segment."},
			Table:      &summary.Table{Headers: []string{"Segment", "Result"}, Rows: [][]string{{"A", "Accepted"}}},
		}},
	}

	require.NoError(t, NewHTMLWriter().Write(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(data)
	assert.Contains(t, page, "<title>Run</title>")
	assert.Contains(t, page, "<h2")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<td>Accepted</td>")
}

func TestHTMLWriter_BadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := NewHTMLWriter().Write(filepath.Join(blocker, "summary.html"), summary.Document{Title: "x"})
	require.Error(t, err)
}
