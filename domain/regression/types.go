package regression

// InterceptTerm is the name given to the constant column of every design
const InterceptTerm = "const"

// OverallLabel tags the rows of the pooled fit
const OverallLabel = "Overall"

// Term is one coefficient row of an OLS fit
type Term struct {
	Name    string
	Coef    float64
	StdErr  float64
	T       float64
	P       float64
	CILower float64
	CIUpper float64
}

// IsIntercept reports whether the term is the constant
func (t Term) IsIntercept() bool {
	return t.Name == InterceptTerm
}

// Fit is the result of one ordinary least squares estimation
type Fit struct {
	Terms       []Term
	RSquared    float64
	AdjRSquared float64
	FStatistic  float64
	FPValue     float64
	NObs        int
	DFResid     int
}

// Significant returns the terms whose p-value is at or below threshold,
// intercept included.
func (f *Fit) Significant(threshold float64) []Term {
	var out []Term
	for _, t := range f.Terms {
		if t.P <= threshold {
			out = append(out, t)
		}
	}
	return out
}

// DetailRow is one reported coefficient of a segment (or the pooled fit)
type DetailRow struct {
	Segment  string
	RSquared float64
	Term
}

// Rows tags every term with the segment label and R²
func Rows(segment string, fit *Fit, terms []Term) []DetailRow {
	out := make([]DetailRow, 0, len(terms))
	for _, t := range terms {
		out = append(out, DetailRow{Segment: segment, RSquared: fit.RSquared, Term: t})
	}
	return out
}
