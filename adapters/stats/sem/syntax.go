package sem

import (
	"fmt"
	"strconv"
	"strings"

	domainsem "surveylab/domain/sem"
)

// Term is one right-hand side variable, optionally with a fixed coefficient
type Term struct {
	Name  string
	Fixed *float64
}

// Statement is one relation of the model description
type Statement struct {
	LHS  []string
	Op   string
	RHS  []Term
	Line int
}

// Description is a parsed model specification
type Description struct {
	Statements []Statement
	Source     string
}

// Parse reads a lavaan-style model description:
//
//	eta =~ y1 + y2 + y3   # measurement
//	y ~ x1 + 0.5*x2       # regression, x2 fixed at 0.5
//	y1 ~~ y2              # (co)variance
//
// Statements are separated by newlines or ';'. Left sides may list several
// variables separated by commas.
func Parse(source string) (*Description, error) {
	desc := &Description{Source: source}
	for lineNo, line := range strings.Split(source, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		for _, raw := range strings.Split(line, ";") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			st, err := parseStatement(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
			}
			st.Line = lineNo + 1
			desc.Statements = append(desc.Statements, st)
		}
	}
	if len(desc.Statements) == 0 {
		return nil, fmt.Errorf("model description has no statements")
	}
	return desc, nil
}

func parseStatement(raw string) (Statement, error) {
	var op string
	var idx int
	switch {
	case strings.Contains(raw, domainsem.OpMeasure):
		op, idx = domainsem.OpMeasure, strings.Index(raw, domainsem.OpMeasure)
	case strings.Contains(raw, domainsem.OpCovariance):
		op, idx = domainsem.OpCovariance, strings.Index(raw, domainsem.OpCovariance)
	case strings.Contains(raw, domainsem.OpRegression):
		op, idx = domainsem.OpRegression, strings.Index(raw, domainsem.OpRegression)
	default:
		return Statement{}, fmt.Errorf("no operator in %q", raw)
	}

	left, right := raw[:idx], raw[idx+len(op):]
	if strings.Contains(right, "~") {
		return Statement{}, fmt.Errorf("more than one operator in %q", raw)
	}

	st := Statement{Op: op}
	for _, name := range strings.Split(left, ",") {
		name = strings.TrimSpace(name)
		if err := validName(name); err != nil {
			return Statement{}, fmt.Errorf("left side of %q: %w", raw, err)
		}
		st.LHS = append(st.LHS, name)
	}

	for _, part := range strings.Split(right, "+") {
		term, err := parseTerm(strings.TrimSpace(part))
		if err != nil {
			return Statement{}, fmt.Errorf("right side of %q: %w", raw, err)
		}
		st.RHS = append(st.RHS, term)
	}
	return st, nil
}

func parseTerm(s string) (Term, error) {
	if i := strings.Index(s, "*"); i >= 0 {
		mult, name := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		v, err := strconv.ParseFloat(mult, 64)
		if err != nil {
			return Term{}, fmt.Errorf("unsupported modifier %q (only numeric fixed values)", mult)
		}
		if err := validName(name); err != nil {
			return Term{}, err
		}
		return Term{Name: name, Fixed: &v}, nil
	}
	if err := validName(s); err != nil {
		return Term{}, err
	}
	return Term{Name: s}, nil
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("empty variable name")
	}
	if strings.ContainsAny(name, " \t*+~=,") {
		return fmt.Errorf("invalid variable name %q", name)
	}
	return nil
}

// Latents returns the variables defined by measurement statements, in order
func (d *Description) Latents() []string {
	seen := make(map[string]bool)
	var out []string
	for _, st := range d.Statements {
		if st.Op != domainsem.OpMeasure {
			continue
		}
		for _, name := range st.LHS {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// Observed returns every non-latent variable, in order of first appearance
func (d *Description) Observed() []string {
	latent := make(map[string]bool)
	for _, l := range d.Latents() {
		latent[l] = true
	}
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !latent[name] && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, st := range d.Statements {
		for _, name := range st.LHS {
			add(name)
		}
		for _, t := range st.RHS {
			add(t.Name)
		}
	}
	return out
}
