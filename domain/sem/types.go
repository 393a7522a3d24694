package sem

import "math"

// SignificanceZ is the two-sided 5% critical value used to flag paths
const SignificanceZ = 1.96

// Operators as they appear in estimate rows
const (
	OpRegression = "~"
	OpMeasure    = "=~"
	OpCovariance = "~~"
)

// Estimate is one parameter row of a fitted structural equation model.
// Directed paths read "LVal ~ RVal" (RVal affects LVal).
type Estimate struct {
	LVal        string
	Op          string
	RVal        string
	Estimate    float64
	StdErr      float64
	ZValue      float64
	PValue      float64
	Significant bool
	Segment     string
}

// IsSignificant applies the |z| > 1.96 rule; a missing z is never significant
func IsSignificant(z float64) bool {
	if math.IsNaN(z) {
		return false
	}
	return math.Abs(z) > SignificanceZ
}

// Annotate sets the significance flag and segment label on every row
func Annotate(estimates []Estimate, segment string) []Estimate {
	out := make([]Estimate, len(estimates))
	for i, e := range estimates {
		e.Significant = IsSignificant(e.ZValue)
		e.Segment = segment
		out[i] = e
	}
	return out
}

// FitStats summarises model fit
type FitStats struct {
	NObs       int
	Dropped    int
	Chi2       float64
	DF         int
	PValue     float64
	CFI        float64
	TLI        float64
	RMSEA      float64
	Objective  float64
	Iterations int
}

// Fit is the outcome of estimating one model on one segment
type Fit struct {
	Estimates []Estimate
	Stats     FitStats
}

// Variables returns every name appearing on either side of an estimate, in first-seen order
func Variables(estimates []Estimate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range estimates {
		for _, v := range []string{e.LVal, e.RVal} {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// SegmentStats tags the fit statistics of one segment
type SegmentStats struct {
	Segment string
	Stats   FitStats
}
