package verdict

import "surveylab/domain/sem"

// Resolve looks up the first estimate with exactly matching endpoints.
// The operator is not considered and reversed direction never matches.
func Resolve(segment string, h Hypothesis, estimates []sem.Estimate) Verdict {
	for i := range estimates {
		e := estimates[i]
		if e.LVal == h.Path.LVal && e.RVal == h.Path.RVal {
			status := StatusRejected
			if e.Significant {
				status = StatusAccepted
			}
			return Verdict{Segment: segment, Hypothesis: h, Status: status, Match: &e}
		}
	}
	return Verdict{Segment: segment, Hypothesis: h, Status: StatusPathNotFound}
}

// Summarize resolves every hypothesis for every segment, segment-major.
// Segments with no estimates (e.g. a failed fit) resolve to Path Not Found.
func Summarize(segments []string, hypotheses []Hypothesis, estimates map[string][]sem.Estimate) []Verdict {
	out := make([]Verdict, 0, len(segments)*len(hypotheses))
	for _, segment := range segments {
		for _, h := range hypotheses {
			out = append(out, Resolve(segment, h, estimates[segment]))
		}
	}
	return out
}
