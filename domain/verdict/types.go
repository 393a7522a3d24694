package verdict

import (
	"fmt"
	"strings"

	"surveylab/domain/sem"
	"surveylab/internal/errors"
)

// VerdictStatus is the outcome of checking a hypothesis against one segment
type VerdictStatus string

const (
	StatusAccepted     VerdictStatus = "Accepted"
	StatusRejected     VerdictStatus = "Rejected"
	StatusPathNotFound VerdictStatus = "Path Not Found"
)

// Path is a directed structural path "LVal ~ RVal"
type Path struct {
	LVal string
	RVal string
}

func (p Path) String() string {
	return p.LVal + " ~ " + p.RVal
}

// ParsePath parses "A ~ B". Measurement (=~) and covariance (~~) operators are rejected.
func ParsePath(s string) (Path, error) {
	if strings.Contains(s, "=~") || strings.Contains(s, "~~") {
		return Path{}, errors.InvalidInput(fmt.Sprintf("hypothesis path %q must use the regression operator '~'", s))
	}
	parts := strings.Split(s, "~")
	if len(parts) != 2 {
		return Path{}, errors.InvalidInput(fmt.Sprintf("hypothesis path %q must have the form 'A ~ B'", s))
	}
	p := Path{LVal: strings.TrimSpace(parts[0]), RVal: strings.TrimSpace(parts[1])}
	if p.LVal == "" || p.RVal == "" {
		return Path{}, errors.InvalidInput(fmt.Sprintf("hypothesis path %q has an empty side", s))
	}
	return p, nil
}

// Hypothesis pairs a human-readable label with a structural path
type Hypothesis struct {
	Label string
	Path  Path
}

// NewHypothesis validates the path string
func NewHypothesis(label, path string) (Hypothesis, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Hypothesis{}, errors.Wrapf(err, "hypothesis %q", label)
	}
	return Hypothesis{Label: label, Path: p}, nil
}

// Verdict is one summary row: a hypothesis resolved against one segment
type Verdict struct {
	Segment    string
	Hypothesis Hypothesis
	Status     VerdictStatus
	Match      *sem.Estimate // nil when the path was not found
}

// Report is everything a SEM run writes to its workbook
type Report struct {
	Verdicts []Verdict
	// Estimates and Stats are only written when IncludeEstimates is set
	Estimates        []sem.Estimate
	Stats            []sem.SegmentStats
	IncludeEstimates bool
}
