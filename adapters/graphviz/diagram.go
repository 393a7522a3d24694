package graphviz

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	domainsem "surveylab/domain/sem"

	"github.com/awalterschulze/gographviz"
)

const graphName = "SEM"

// Renderer draws path diagrams of fitted SEM estimates
type Renderer struct {
	DotBinary string
	OutputDir string
}

// NewRenderer creates a renderer writing into outputDir
func NewRenderer(dotBinary, outputDir string) *Renderer {
	if dotBinary == "" {
		dotBinary = "dot"
	}
	return &Renderer{DotBinary: dotBinary, OutputDir: outputDir}
}

// BuildDOT lays out one node per variable and one edge per estimate row,
// drawn from RVal to LVal. Significant edges are green and thick.
func BuildDOT(estimates []domainsem.Estimate, dependent string) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	graphAttrs := map[string]string{
		"rankdir": "LR",
		"size":    quote("16,24!"),
	}
	for k, v := range graphAttrs {
		if err := g.AddAttr(graphName, k, v); err != nil {
			return "", err
		}
	}

	for _, v := range domainsem.Variables(estimates) {
		fill := "lightblue"
		if v == dependent {
			fill = "lightgreen"
		}
		attrs := map[string]string{
			"style":     "filled",
			"fillcolor": fill,
			"fontsize":  "24",
			"fontname":  "Arial",
		}
		if err := g.AddNode(graphName, quote(v), attrs); err != nil {
			return "", fmt.Errorf("add node %s: %w", v, err)
		}
	}

	for _, e := range estimates {
		color, width := "red", "1"
		if e.Significant {
			color, width = "green", "3"
		}
		attrs := map[string]string{
			"label":     quote(EdgeLabel(e)),
			"color":     color,
			"penwidth":  width,
			"fontsize":  "20",
			"fontcolor": "black",
			"style":     "solid",
			"fontname":  "Arial",
		}
		if err := g.AddEdge(quote(e.RVal), quote(e.LVal), true, attrs); err != nil {
			return "", fmt.Errorf("add edge %s -> %s: %w", e.RVal, e.LVal, err)
		}
	}
	return g.String(), nil
}

// EdgeLabel formats estimate, z and p on two lines (DOT "\n" escape)
func EdgeLabel(e domainsem.Estimate) string {
	return fmt.Sprintf("%.2f\\n(z=%.2f, p=%.4f)", e.Estimate, e.ZValue, e.PValue)
}

// Render writes SEM_Visualization_<segment>.dot and renders it to PNG with
// the Graphviz dot binary. The .dot path is returned even when PNG rendering fails.
func (r *Renderer) Render(ctx context.Context, segment, dependent string, estimates []domainsem.Estimate) (string, error) {
	source, err := BuildDOT(estimates, dependent)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create charts directory: %w", err)
	}

	base := filepath.Join(r.OutputDir, "SEM_Visualization_"+SafeFileName(segment))
	dotPath := base + ".dot"
	if err := os.WriteFile(dotPath, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", dotPath, err)
	}

	pngPath := base + ".png"
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.DotBinary, "-Tpng", "-o", pngPath, dotPath)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return dotPath, fmt.Errorf("%s: %w: %s", r.DotBinary, err, msg)
		}
		return dotPath, fmt.Errorf("%s: %w", r.DotBinary, err)
	}
	return pngPath, nil
}

// SafeFileName replaces characters that are not allowed in file names
func SafeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
