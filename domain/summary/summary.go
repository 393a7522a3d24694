package summary

import (
	"fmt"
	"math"
	"strings"

	"surveylab/domain/regression"
	"surveylab/domain/sem"
	"surveylab/domain/verdict"
)

// Table is a pipe table inside a section
type Table struct {
	Headers []string
	Rows    [][]string
}

// Section is one headed block of the summary
type Section struct {
	Heading    string
	Paragraphs []string
	Table      *Table
}

// Document is a run summary rendered as Markdown
type Document struct {
	Title    string
	Sections []Section
}

// Markdown renders the document source
func (d Document) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	for _, s := range d.Sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Heading)
		for _, p := range s.Paragraphs {
			b.WriteString(p)
			b.WriteString("\n\n")
		}
		if s.Table != nil {
			writeTable(&b, s.Table)
		}
	}
	return b.String()
}

func writeTable(b *strings.Builder, t *Table) {
	b.WriteString("| " + strings.Join(escapeAll(t.Headers), " | ") + " |\n")
	sep := make([]string, len(t.Headers))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range t.Rows {
		b.WriteString("| " + strings.Join(escapeAll(row), " | ") + " |\n")
	}
	b.WriteString("\n")
}

func escapeAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}

// RegressionDocument summarises a segmented regression run
func RegressionDocument(title string, segments []string, detail, overall []regression.DetailRow, issues []string) Document {
	doc := Document{Title: title}
	doc.Sections = append(doc.Sections, Section{
		Heading:    "Segments",
		Paragraphs: []string{fmt.Sprintf("%d segment(s): %s", len(segments), strings.Join(segments, ", "))},
	})
	doc.Sections = append(doc.Sections,
		Section{Heading: "Significant terms by segment", Table: regressionTable(detail)},
		Section{Heading: "Overall regression", Table: regressionTable(overall)},
	)
	if len(issues) > 0 {
		doc.Sections = append(doc.Sections, issuesSection(issues))
	}
	return doc
}

func regressionTable(rows []regression.DetailRow) *Table {
	t := &Table{Headers: []string{"Segment", "R2", "Term", "Coef.", "Std.Err.", "t", "P>|t|"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Segment, formatFloat(r.RSquared, 3), r.Name, formatFloat(r.Coef, 4),
			formatFloat(r.StdErr, 4), formatFloat(r.T, 3), formatFloat(r.P, 4),
		})
	}
	return t
}

// SEMDocument summarises hypothesis verdicts and per-segment fit
func SEMDocument(title string, verdicts []verdict.Verdict, stats []sem.SegmentStats, issues []string) Document {
	doc := Document{Title: title}

	vt := &Table{Headers: []string{"Segment", "Hypothesis", "Estimate", "z-value", "p-value", "Result"}}
	for _, v := range verdicts {
		row := []string{v.Segment, v.Hypothesis.Label, "N/A", "N/A", "N/A", string(v.Status)}
		if v.Match != nil {
			row[2] = formatFloat(v.Match.Estimate, 3)
			row[3] = formatFloat(v.Match.ZValue, 2)
			row[4] = formatFloat(v.Match.PValue, 4)
		}
		vt.Rows = append(vt.Rows, row)
	}
	doc.Sections = append(doc.Sections, Section{Heading: "Hypotheses", Table: vt})

	if len(stats) > 0 {
		ft := &Table{Headers: []string{"Segment", "N", "Chi2", "DF", "p-value", "CFI", "TLI", "RMSEA"}}
		for _, s := range stats {
			ft.Rows = append(ft.Rows, []string{
				s.Segment, fmt.Sprint(s.Stats.NObs), formatFloat(s.Stats.Chi2, 3), fmt.Sprint(s.Stats.DF),
				formatFloat(s.Stats.PValue, 4), formatFloat(s.Stats.CFI, 3), formatFloat(s.Stats.TLI, 3), formatFloat(s.Stats.RMSEA, 3),
			})
		}
		doc.Sections = append(doc.Sections, Section{Heading: "Model fit", Table: ft})
	}
	if len(issues) > 0 {
		doc.Sections = append(doc.Sections, issuesSection(issues))
	}
	return doc
}

func issuesSection(issues []string) Section {
	var b strings.Builder
	for _, issue := range issues {
		b.WriteString("- " + issue + "\n")
	}
	return Section{Heading: "Skipped segments", Paragraphs: []string{strings.TrimSuffix(b.String(), "\n")}}
}

func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return fmt.Sprintf("%.*f", prec, v)
}
