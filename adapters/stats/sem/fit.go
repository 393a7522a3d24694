package sem

import (
	"fmt"
	"math"

	"surveylab/domain/dataset"
	domainsem "surveylab/domain/sem"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

// infeasible is returned by the objective where Σ is not positive definite
const infeasible = 1e10

// Estimator fits structural equation models by maximum likelihood
type Estimator struct {
	MaxIterations     int
	GradientThreshold float64
}

// NewEstimator creates an estimator with default optimiser settings
func NewEstimator() *Estimator {
	return &Estimator{MaxIterations: 2000, GradientThreshold: 1e-6}
}

// CheckModel parses source without fitting it
func (e *Estimator) CheckModel(source string) error {
	_, err := Parse(source)
	return err
}

// FitModel parses source and fits it on t
func (e *Estimator) FitModel(source string, t *dataset.Table) (*domainsem.Fit, error) {
	desc, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return e.Fit(desc, t)
}

// Fit estimates desc on the observed columns of t. Rows with a missing value
// in any observed variable are dropped.
func (e *Estimator) Fit(desc *Description, t *dataset.Table) (*domainsem.Fit, error) {
	observed := desc.Observed()
	data, err := t.NumericMatrix(observed)
	if err != nil {
		return nil, err
	}
	n := data.RowCount()
	if n < 2 {
		return nil, fmt.Errorf("insufficient observations: %d complete rows", n)
	}

	sampleCov, err := covariance(data)
	if err != nil {
		return nil, err
	}
	sample := mat.NewSymDense(len(observed), nil)
	for i := range observed {
		for j := i; j < len(observed); j++ {
			sample.SetSym(i, j, sampleCov[i][j])
		}
	}
	var sampleChol mat.Cholesky
	if ok := sampleChol.Factorize(sample); !ok || sampleChol.Cond() > 1e12 {
		return nil, fmt.Errorf("sample covariance matrix is not positive definite")
	}
	sampleLogDet := sampleChol.LogDet()

	model, err := buildModel(desc, sampleCov)
	if err != nil {
		return nil, err
	}
	df := model.degreesOfFreedom()
	if df < 0 {
		return nil, fmt.Errorf("model is not identified: %d degrees of freedom", df)
	}
	if len(model.free) == 0 {
		return nil, fmt.Errorf("model has no free parameters")
	}

	objective := func(theta []float64) float64 {
		sigma, err := model.implied(theta)
		if err != nil {
			return infeasible
		}
		return discrepancy(sigma, sample, sampleLogDet)
	}

	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central})
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: e.GradientThreshold,
		MajorIterations:   e.MaxIterations,
	}
	result, err := optimize.Minimize(problem, model.startValues(), settings, &optimize.BFGS{Linesearcher: &optimize.Backtracking{}})
	if result == nil {
		return nil, fmt.Errorf("optimisation failed: %w", err)
	}
	if err != nil && !nearStationary(problem, result.X) {
		return nil, fmt.Errorf("optimisation did not converge: %w", err)
	}
	if err == nil && !converged(result.Status) && !nearStationary(problem, result.X) {
		return nil, fmt.Errorf("optimisation did not converge: stopped with status %s after %d iterations",
			result.Status, result.Stats.MajorIterations)
	}
	if result.F >= infeasible || math.IsNaN(result.F) {
		return nil, fmt.Errorf("optimisation ended at an inadmissible solution")
	}

	stdErr := standardErrors(objective, result.X, n)
	fitStats := fitStatistics(result.F, df, n, sampleCov, sampleLogDet)
	fitStats.Dropped = data.Dropped
	fitStats.Iterations = result.Stats.MajorIterations

	return &domainsem.Fit{
		Estimates: model.estimates(result.X, stdErr),
		Stats:     fitStats,
	}, nil
}

// covariance computes the maximum-likelihood (divide by N) covariance matrix
func covariance(m *dataset.Matrix) ([][]float64, error) {
	p := len(m.Columns)
	cols := make([]stats.Float64Data, p)
	for j := range cols {
		cols[j] = m.Column(j)
	}
	out := make([][]float64, p)
	for i := range out {
		out[i] = make([]float64, p)
	}
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			c, err := stats.CovariancePopulation(cols[i], cols[j])
			if err != nil {
				return nil, fmt.Errorf("covariance of %s and %s: %w", m.Columns[i], m.Columns[j], err)
			}
			out[i][j], out[j][i] = c, c
		}
	}
	return out, nil
}

// implied returns the model covariance of the observed variables
func (m *ramModel) implied(theta []float64) (*mat.SymDense, error) {
	size := m.size()
	a := mat.NewDense(size, size, nil)
	s := mat.NewSymDense(size, nil)

	values := m.values(theta)
	for i, p := range m.params {
		switch p.matrix {
		case matrixA:
			a.Set(p.row, p.col, values[i])
		case matrixS:
			s.SetSym(p.row, p.col, values[i])
		}
	}

	// B = I - A
	b := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			v := -a.At(i, j)
			if i == j {
				v += 1
			}
			b.Set(i, j, v)
		}
	}
	var bInv mat.Dense
	if err := bInv.Inverse(b); err != nil {
		return nil, err
	}

	var tmp, full mat.Dense
	tmp.Mul(&bInv, s)
	full.Mul(&tmp, bInv.T())

	sigma := mat.NewSymDense(m.observed, nil)
	for i := 0; i < m.observed; i++ {
		for j := i; j < m.observed; j++ {
			sigma.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return sigma, nil
}

// values expands a free-parameter vector into one value per parameter
func (m *ramModel) values(theta []float64) []float64 {
	out := make([]float64, len(m.params))
	for i, p := range m.params {
		out[i] = p.value
	}
	for k, idx := range m.free {
		out[idx] = theta[k]
	}
	return out
}

// discrepancy is the ML fit function log|Σ| + tr(SΣ⁻¹) - log|S| - p
func discrepancy(sigma, sample *mat.SymDense, sampleLogDet float64) float64 {
	var chol mat.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		return infeasible
	}
	var sol mat.Dense
	if err := chol.SolveTo(&sol, sample); err != nil {
		return infeasible
	}
	p, _ := sample.Dims()
	f := chol.LogDet() + mat.Trace(&sol) - sampleLogDet - float64(p)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return infeasible
	}
	return f
}

// converged reports whether the optimiser stopped on a convergence criterion
// rather than a budget limit or a failure
func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence,
		optimize.StepConvergence, optimize.FunctionThreshold, optimize.MethodConverge:
		return true
	}
	return false
}

func nearStationary(problem optimize.Problem, x []float64) bool {
	grad := make([]float64, len(x))
	problem.Grad(grad, x)
	norm := 0.0
	for _, g := range grad {
		norm = math.Max(norm, math.Abs(g))
	}
	return norm < 1e-4
}

// standardErrors inverts the observed information (N/2)·H of the fit function
func standardErrors(objective func([]float64) float64, theta []float64, n int) []float64 {
	k := len(theta)
	out := make([]float64, k)
	for i := range out {
		out[i] = math.NaN()
	}

	hess := mat.NewSymDense(k, nil)
	fd.Hessian(hess, objective, theta, nil)
	info := mat.NewSymDense(k, nil)
	info.ScaleSym(float64(n)/2, hess)

	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return out
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return out
	}
	for i := 0; i < k; i++ {
		if v := cov.At(i, i); v > 0 {
			out[i] = math.Sqrt(v)
		}
	}
	return out
}

func fitStatistics(fmin float64, df, n int, sampleCov [][]float64, sampleLogDet float64) domainsem.FitStats {
	p := len(sampleCov)
	chi2 := float64(n) * math.Max(fmin, 0)
	st := domainsem.FitStats{
		NObs:      n,
		Chi2:      chi2,
		DF:        df,
		PValue:    math.NaN(),
		CFI:       math.NaN(),
		TLI:       math.NaN(),
		RMSEA:     0,
		Objective: fmin,
	}
	if df > 0 {
		st.PValue = distuv.ChiSquared{K: float64(df)}.Survival(chi2)
		st.RMSEA = math.Sqrt(math.Max(chi2-float64(df), 0) / (float64(df) * float64(n-1)))
	}

	// independence baseline: diagonal Σ
	baseF := -sampleLogDet
	for i := 0; i < p; i++ {
		baseF += math.Log(sampleCov[i][i])
	}
	baseChi2 := float64(n) * baseF
	baseDF := p * (p - 1) / 2

	num := math.Max(chi2-float64(df), 0)
	den := math.Max(math.Max(baseChi2-float64(baseDF), chi2-float64(df)), 0)
	if den > 0 {
		st.CFI = 1 - num/den
	} else {
		st.CFI = 1
	}
	if df > 0 && baseDF > 0 {
		baseRatio := baseChi2 / float64(baseDF)
		if baseRatio != 1 {
			st.TLI = (baseRatio - chi2/float64(df)) / (baseRatio - 1)
		}
	}
	return st
}

// estimates lists reported parameters: directed paths first, then (co)variances
func (m *ramModel) estimates(theta, stdErr []float64) []domainsem.Estimate {
	values := m.values(theta)
	seFor := make(map[int]float64, len(m.free))
	for k, idx := range m.free {
		seFor[idx] = stdErr[k]
	}

	var paths, covs []domainsem.Estimate
	for i, p := range m.params {
		if !p.reported {
			continue
		}
		e := domainsem.Estimate{
			LVal:     p.lval,
			Op:       p.op,
			RVal:     p.rval,
			Estimate: values[i],
			StdErr:   math.NaN(),
			ZValue:   math.NaN(),
			PValue:   math.NaN(),
		}
		if se, ok := seFor[i]; ok && !math.IsNaN(se) && se > 0 {
			e.StdErr = se
			e.ZValue = values[i] / se
			e.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(e.ZValue))
		}
		if p.matrix == matrixA {
			paths = append(paths, e)
		} else {
			covs = append(covs, e)
		}
	}
	return append(paths, covs...)
}
