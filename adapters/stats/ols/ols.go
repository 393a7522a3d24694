package ols

import (
	"fmt"
	"math"

	"surveylab/domain/dataset"
	"surveylab/domain/regression"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxCondition rejects designs whose XᵀX is numerically singular
const maxCondition = 1e12

// Estimator fits ordinary least squares with an intercept
type Estimator struct {
	// Alpha sets the confidence interval level (1-Alpha); defaults to 0.05
	Alpha float64
}

// NewEstimator creates an estimator reporting 95% intervals
func NewEstimator() *Estimator {
	return &Estimator{Alpha: 0.05}
}

// Fit regresses y on the columns of x plus a constant. names labels the
// columns of x; the constant is reported first as "const".
func (e *Estimator) Fit(y []float64, x [][]float64, names []string) (*regression.Fit, error) {
	n := len(y)
	if len(x) != n {
		return nil, fmt.Errorf("design has %d rows, response has %d", len(x), n)
	}
	k := len(names) + 1
	if n <= k {
		return nil, fmt.Errorf("insufficient observations: %d rows for %d parameters", n, k)
	}

	design := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		if len(x[i]) != len(names) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(x[i]), len(names))
		}
		design.Set(i, 0, 1)
		for j, v := range x[i] {
			design.Set(i, j+1, v)
		}
	}
	response := mat.NewVecDense(n, y)

	var xtx mat.SymDense
	xtx.SymOuterK(1, design.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, fmt.Errorf("singular design matrix")
	}
	if cond := chol.Cond(); cond > maxCondition || math.IsNaN(cond) {
		return nil, fmt.Errorf("near-singular design matrix (condition number %.3g)", cond)
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), response)

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}

	var xtxInv mat.SymDense
	if err := chol.InverseTo(&xtxInv); err != nil {
		return nil, fmt.Errorf("invert normal matrix: %w", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(design, &beta)

	ssr := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
	}

	meanY, _ := stats.Mean(y)
	sst := 0.0
	for _, v := range y {
		d := v - meanY
		sst += d * d
	}

	dfResid := n - k
	dfModel := k - 1
	sigma2 := ssr / float64(dfResid)

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dfResid)}
	alpha := e.Alpha
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	q := tDist.Quantile(1 - alpha/2)

	allNames := append([]string{regression.InterceptTerm}, names...)
	terms := make([]regression.Term, k)
	for j := 0; j < k; j++ {
		coef := beta.AtVec(j)
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		t := coef / se
		terms[j] = regression.Term{
			Name:    allNames[j],
			Coef:    coef,
			StdErr:  se,
			T:       t,
			P:       2 * tDist.Survival(math.Abs(t)),
			CILower: coef - q*se,
			CIUpper: coef + q*se,
		}
	}

	fit := &regression.Fit{
		Terms:       terms,
		RSquared:    math.NaN(),
		AdjRSquared: math.NaN(),
		FStatistic:  math.NaN(),
		FPValue:     math.NaN(),
		NObs:        n,
		DFResid:     dfResid,
	}
	if sst > 0 {
		fit.RSquared = 1 - ssr/sst
		fit.AdjRSquared = 1 - (ssr/float64(dfResid))/(sst/float64(n-1))
		if dfModel > 0 && ssr > 0 {
			fit.FStatistic = ((sst - ssr) / float64(dfModel)) / sigma2
			fDist := distuv.F{D1: float64(dfModel), D2: float64(dfResid)}
			fit.FPValue = fDist.Survival(fit.FStatistic)
		}
	}
	return fit, nil
}

// FitTable regresses column y on predictors, dropping rows with a missing
// value in any of them.
func (e *Estimator) FitTable(t *dataset.Table, y string, predictors []string) (*regression.Fit, error) {
	columns := append([]string{y}, predictors...)
	data, err := t.NumericMatrix(columns)
	if err != nil {
		return nil, err
	}
	response := data.Column(0)
	design := make([][]float64, data.RowCount())
	for i, row := range data.Data {
		design[i] = row[1:]
	}
	return e.Fit(response, design, predictors)
}
