package sem

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"surveylab/domain/dataset"
	domainsem "surveylab/domain/sem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableFrom(columns []string, data map[string][]float64) *dataset.Table {
	n := len(data[columns[0]])
	rows := make([]dataset.Record, n)
	for i := 0; i < n; i++ {
		rec := make(dataset.Record, len(columns))
		for _, c := range columns {
			rec[c] = strconv.FormatFloat(data[c][i], 'g', -1, 64)
		}
		rows[i] = rec
	}
	return dataset.NewTable(columns, rows)
}

func findEstimate(t *testing.T, fit *domainsem.Fit, lval, op, rval string) domainsem.Estimate {
	t.Helper()
	for _, e := range fit.Estimates {
		if e.LVal == lval && e.Op == op && e.RVal == rval {
			return e
		}
	}
	t.Fatalf("estimate %s %s %s not found", lval, op, rval)
	return domainsem.Estimate{}
}

func TestParse(t *testing.T) {
	desc, err := Parse(`
		# measurement
		PU =~ pu1 + pu2 + pu3
		Yvar, Y2 ~ PU + 0.5*EOU ; EOU ~~ PU
	`)
	require.NoError(t, err)
	require.Len(t, desc.Statements, 3)

	assert.Equal(t, domainsem.OpMeasure, desc.Statements[0].Op)
	assert.Equal(t, []string{"Yvar", "Y2"}, desc.Statements[1].LHS)
	require.NotNil(t, desc.Statements[1].RHS[1].Fixed)
	assert.Equal(t, 0.5, *desc.Statements[1].RHS[1].Fixed)
	assert.Equal(t, domainsem.OpCovariance, desc.Statements[2].Op)

	assert.Equal(t, []string{"PU"}, desc.Latents())
	assert.Equal(t, []string{"pu1", "pu2", "pu3", "Yvar", "Y2", "EOU"}, desc.Observed())
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"# only a comment",
		"y x",
		"y ~ x ~ z",
		"y ~ a*x",
		"y ~ ",
		"y ~ x + ",
		"bad name ~ x",
	} {
		_, err := Parse(src)
		assert.Error(t, err, src)
	}
}

func TestBuildModel_DegreesOfFreedom(t *testing.T) {
	cov := [][]float64{{1, 0.5, 0.2}, {0.5, 1, 0.1}, {0.2, 0.1, 1}}

	desc, err := Parse("y ~ x1 + x2")
	require.NoError(t, err)
	m, err := buildModel(desc, cov)
	require.NoError(t, err)
	// 6 moments, 3 fixed exogenous, 2 paths + 1 residual variance
	assert.Equal(t, 3, len(m.free))
	assert.Equal(t, 0, m.degreesOfFreedom())

	desc, err = Parse("m ~ x\ny ~ m")
	require.NoError(t, err)
	m, err = buildModel(desc, cov)
	require.NoError(t, err)
	assert.Equal(t, 1, m.degreesOfFreedom())

	desc, err = Parse("y ~ x\ny ~ x")
	require.NoError(t, err)
	_, err = buildModel(desc, cov[:2])
	assert.Error(t, err, "duplicate path")
}

func TestEstimator_SimpleRegressionMatchesOLS(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 500
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		y[i] = 0.8*x[i] + 0.6*rng.NormFloat64()
	}

	desc, err := Parse("y ~ x")
	require.NoError(t, err)
	fit, err := NewEstimator().Fit(desc, tableFrom([]string{"y", "x"}, map[string][]float64{"y": y, "x": x}))
	require.NoError(t, err)

	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)
	var sxy, sxx, syy float64
	for i := range x {
		sxy += (x[i] - mx) * (y[i] - my)
		sxx += (x[i] - mx) * (x[i] - mx)
		syy += (y[i] - my) * (y[i] - my)
	}
	slope := sxy / sxx
	residVar := (syy - slope*sxy) / float64(n)

	path := findEstimate(t, fit, "y", domainsem.OpRegression, "x")
	assert.InDelta(t, slope, path.Estimate, 1e-3)
	assert.InDelta(t, math.Sqrt(residVar/sxx), path.StdErr, 2e-3)
	assert.Greater(t, path.ZValue, domainsem.SignificanceZ)
	assert.Less(t, path.PValue, 1e-6)

	resid := findEstimate(t, fit, "y", domainsem.OpCovariance, "y")
	assert.InDelta(t, residVar, resid.Estimate, 1e-3)

	assert.Equal(t, 0, fit.Stats.DF)
	assert.Equal(t, n, fit.Stats.NObs)
	assert.InDelta(t, 0, fit.Stats.Chi2, 1e-3)

	// directed paths are listed before variances
	assert.Equal(t, domainsem.OpRegression, fit.Estimates[0].Op)
}

func TestEstimator_Mediation(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n := 800
	data := map[string][]float64{"x": make([]float64, n), "m": make([]float64, n), "y": make([]float64, n)}
	for i := 0; i < n; i++ {
		data["x"][i] = rng.NormFloat64()
		data["m"][i] = 0.7*data["x"][i] + 0.5*rng.NormFloat64()
		data["y"][i] = 0.6*data["m"][i] + 0.5*rng.NormFloat64()
	}

	desc, err := Parse("m ~ x\ny ~ m")
	require.NoError(t, err)
	fit, err := NewEstimator().Fit(desc, tableFrom([]string{"x", "m", "y"}, data))
	require.NoError(t, err)

	assert.InDelta(t, 0.7, findEstimate(t, fit, "m", "~", "x").Estimate, 0.1)
	assert.InDelta(t, 0.6, findEstimate(t, fit, "y", "~", "m").Estimate, 0.1)
	assert.Equal(t, 1, fit.Stats.DF)
	assert.False(t, math.IsNaN(fit.Stats.PValue))
	assert.GreaterOrEqual(t, fit.Stats.CFI, 0.9)
}

func TestEstimator_MeasurementModel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 1000
	loadings := map[string]float64{"a": 1, "b": 0.8, "c": 0.7, "d": 0.9}
	cols := []string{"a", "b", "c", "d"}
	data := make(map[string][]float64)
	for _, c := range cols {
		data[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		f := rng.NormFloat64()
		for _, c := range cols {
			data[c][i] = loadings[c]*f + math.Sqrt(0.3)*rng.NormFloat64()
		}
	}

	desc, err := Parse("F =~ a + b + c + d")
	require.NoError(t, err)
	fit, err := NewEstimator().Fit(desc, tableFrom(cols, data))
	require.NoError(t, err)

	scaling := findEstimate(t, fit, "a", "~", "F")
	assert.Equal(t, 1.0, scaling.Estimate)
	assert.True(t, math.IsNaN(scaling.StdErr), "fixed loading has no standard error")
	assert.False(t, domainsem.IsSignificant(scaling.ZValue))

	for _, c := range []string{"b", "c", "d"} {
		e := findEstimate(t, fit, c, "~", "F")
		assert.InDelta(t, loadings[c], e.Estimate, 0.1, c)
		assert.Greater(t, e.ZValue, domainsem.SignificanceZ, c)
	}
	assert.InDelta(t, 1.0, findEstimate(t, fit, "F", "~~", "F").Estimate, 0.2)
	assert.Equal(t, 2, fit.Stats.DF)
}

func TestEstimator_Failures(t *testing.T) {
	tbl := tableFrom([]string{"y", "x"}, map[string][]float64{
		"y": {1, 2, 3, 4, 5, 7},
		"x": {2, 1, 4, 3, 6, 5},
	})

	desc, err := Parse("y ~ z")
	require.NoError(t, err)
	_, err = NewEstimator().Fit(desc, tbl)
	assert.Error(t, err, "unknown variable")

	desc, err = Parse("y ~ x\ny ~~ x")
	require.NoError(t, err)
	_, err = NewEstimator().Fit(desc, tbl)
	assert.Error(t, err, "not identified")

	collinear := tableFrom([]string{"y", "x"}, map[string][]float64{
		"y": {1, 2, 3, 4},
		"x": {2, 4, 6, 8},
	})
	desc, err = Parse("y ~ x")
	require.NoError(t, err)
	_, err = NewEstimator().Fit(desc, collinear)
	assert.Error(t, err, "singular sample covariance")
}

func TestEstimator_IterationLimitIsFailure(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 400
	cols := []string{"a", "b", "c", "d"}
	data := make(map[string][]float64)
	for _, c := range cols {
		data[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		f := rng.NormFloat64()
		for j, c := range cols {
			data[c][i] = (1-0.1*float64(j))*f + math.Sqrt(0.3)*rng.NormFloat64()
		}
	}
	desc, err := Parse("F =~ a + b + c + d")
	require.NoError(t, err)

	capped := &Estimator{MaxIterations: 2, GradientThreshold: 1e-6}
	_, err = capped.Fit(desc, tableFrom(cols, data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not converge")

	fit, err := NewEstimator().Fit(desc, tableFrom(cols, data))
	require.NoError(t, err)
	assert.Greater(t, fit.Stats.Iterations, 2)
}

func TestEstimator_FitModel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 150
	data := map[string][]float64{"x": make([]float64, n), "y": make([]float64, n)}
	for i := 0; i < n; i++ {
		data["x"][i] = rng.NormFloat64()
		data["y"][i] = 0.8*data["x"][i] + 0.3*rng.NormFloat64()
	}
	table := tableFrom([]string{"x", "y"}, data)

	est := NewEstimator()
	require.NoError(t, est.CheckModel("y ~ x"))
	assert.Error(t, est.CheckModel("y x"))

	fit, err := est.FitModel("y ~ x", table)
	require.NoError(t, err)
	path := findEstimate(t, fit, "y", domainsem.OpRegression, "x")
	assert.InDelta(t, 0.8, path.Estimate, 0.1)

	_, err = est.FitModel("y ~ ", table)
	assert.Error(t, err)
}
