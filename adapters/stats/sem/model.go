package sem

import (
	"fmt"

	domainsem "surveylab/domain/sem"
)

type matrixKind int

const (
	matrixA matrixKind = iota // directed paths: A[row][col] is the effect of col on row
	matrixS                   // symmetric (co)variances
)

// parameter is one entry of A or S. Fixed parameters keep Value; free ones
// use Value as the starting point.
type parameter struct {
	matrix   matrixKind
	row, col int
	op       string
	lval     string
	rval     string
	fixed    bool
	value    float64
	reported bool
}

// ramModel is the reticular action model form of a description:
// Σ = F (I-A)⁻¹ S (I-A)⁻ᵀ Fᵀ with observed variables ordered first.
type ramModel struct {
	vars     []string
	index    map[string]int
	observed int
	latent   map[string]bool
	params   []parameter
	free     []int
	exoFixed int // free-standing moments fixed to their sample values
}

func (m *ramModel) size() int { return len(m.vars) }

func (m *ramModel) isEndogenous(v int) bool {
	for _, p := range m.params {
		if p.matrix == matrixA && p.row == v {
			return true
		}
	}
	return false
}

func (m *ramModel) findParam(kind matrixKind, row, col int) int {
	for i, p := range m.params {
		if p.matrix != kind {
			continue
		}
		if p.row == row && p.col == col {
			return i
		}
		if kind == matrixS && p.row == col && p.col == row {
			return i
		}
	}
	return -1
}

// buildModel lays out the RAM matrices and default parameters. sampleCov
// holds the observed-variable moments, in Observed() order, used for start
// values and for the fixed exogenous block.
func buildModel(desc *Description, sampleCov [][]float64) (*ramModel, error) {
	observed := desc.Observed()
	latents := desc.Latents()

	m := &ramModel{
		index:    make(map[string]int),
		observed: len(observed),
		latent:   make(map[string]bool),
	}
	for _, v := range append(append([]string{}, observed...), latents...) {
		m.index[v] = len(m.vars)
		m.vars = append(m.vars, v)
	}
	for _, l := range latents {
		m.latent[l] = true
	}

	firstIndicator := make(map[string]int) // latent -> observed index of its scaling indicator

	addPath := func(lval, rval string, t Term) error {
		row, col := m.index[lval], m.index[rval]
		if row == col {
			return fmt.Errorf("variable %s cannot regress on itself", lval)
		}
		if m.findParam(matrixA, row, col) >= 0 {
			return fmt.Errorf("path %s ~ %s specified twice", lval, rval)
		}
		p := parameter{matrix: matrixA, row: row, col: col, op: domainsem.OpRegression, lval: lval, rval: rval, reported: true}
		if t.Fixed != nil {
			p.fixed, p.value = true, *t.Fixed
		}
		m.params = append(m.params, p)
		return nil
	}

	// directed paths first so that endogeneity is known before variances
	for _, st := range desc.Statements {
		for _, lhs := range st.LHS {
			for _, t := range st.RHS {
				switch st.Op {
				case domainsem.OpRegression:
					if err := addPath(lhs, t.Name, t); err != nil {
						return nil, err
					}
				case domainsem.OpMeasure:
					if m.latent[t.Name] {
						return nil, fmt.Errorf("latent %s used as indicator of %s", t.Name, lhs)
					}
					scaled := false
					if _, ok := firstIndicator[lhs]; !ok {
						firstIndicator[lhs] = m.index[t.Name]
						scaled = t.Fixed == nil
					}
					if scaled {
						one := 1.0
						t = Term{Name: t.Name, Fixed: &one}
					}
					if err := addPath(t.Name, lhs, t); err != nil {
						return nil, err
					}
					if !scaled && t.Fixed == nil {
						m.params[len(m.params)-1].value = 1.0
					}
				}
			}
		}
	}

	sampleVar := func(v int) float64 {
		if v < m.observed {
			return sampleCov[v][v]
		}
		if ind, ok := firstIndicator[m.vars[v]]; ok {
			return sampleCov[ind][ind]
		}
		return 1
	}

	addCov := func(a, b int, fixed bool, value float64) {
		lval, rval := m.vars[a], m.vars[b]
		m.params = append(m.params, parameter{
			matrix: matrixS, row: a, col: b, op: domainsem.OpCovariance,
			lval: lval, rval: rval, fixed: fixed, value: value, reported: true,
		})
	}

	for _, st := range desc.Statements {
		if st.Op != domainsem.OpCovariance {
			continue
		}
		for _, lhs := range st.LHS {
			for _, t := range st.RHS {
				a, b := m.index[lhs], m.index[t.Name]
				if m.findParam(matrixS, a, b) >= 0 {
					return nil, fmt.Errorf("covariance %s ~~ %s specified twice", lhs, t.Name)
				}
				start := 0.0
				if a == b {
					start = 0.5 * sampleVar(a)
				}
				if t.Fixed != nil {
					addCov(a, b, true, *t.Fixed)
				} else {
					addCov(a, b, false, start)
				}
			}
		}
	}

	var exoObserved, exoLatent []int
	for v := range m.vars {
		if m.isEndogenous(v) {
			if m.findParam(matrixS, v, v) < 0 {
				addCov(v, v, false, 0.5*sampleVar(v))
			}
			continue
		}
		if v < m.observed {
			exoObserved = append(exoObserved, v)
		} else {
			exoLatent = append(exoLatent, v)
		}
	}

	for i, a := range exoLatent {
		if m.findParam(matrixS, a, a) < 0 {
			addCov(a, a, false, 0.5*sampleVar(a))
		}
		for _, b := range exoLatent[i+1:] {
			if m.findParam(matrixS, a, b) < 0 {
				addCov(a, b, false, 0)
			}
		}
	}

	// exogenous observed moments are conditioned on: fixed at the sample values
	for i, a := range exoObserved {
		for _, b := range exoObserved[i:] {
			if m.findParam(matrixS, a, b) >= 0 {
				continue
			}
			m.params = append(m.params, parameter{
				matrix: matrixS, row: a, col: b, op: domainsem.OpCovariance,
				lval: m.vars[a], rval: m.vars[b], fixed: true, value: sampleCov[a][b],
			})
			m.exoFixed++
		}
	}

	for i, p := range m.params {
		if !p.fixed {
			m.free = append(m.free, i)
		}
	}
	return m, nil
}

// degreesOfFreedom counts unique observed moments not reproduced by construction
func (m *ramModel) degreesOfFreedom() int {
	p := m.observed
	return p*(p+1)/2 - m.exoFixed - len(m.free)
}

// startValues returns the initial free-parameter vector
func (m *ramModel) startValues() []float64 {
	out := make([]float64, len(m.free))
	for i, idx := range m.free {
		out[i] = m.params[idx].value
	}
	return out
}
