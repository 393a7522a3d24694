package regression

// TermSet is the insertion-ordered union of significant predictor names
type TermSet struct {
	names []string
	index map[string]struct{}
}

// NewTermSet creates an empty set
func NewTermSet() *TermSet {
	return &TermSet{index: make(map[string]struct{})}
}

// AddSignificant adds every non-intercept term name
func (s *TermSet) AddSignificant(terms []Term) {
	for _, t := range terms {
		if t.IsIntercept() {
			continue
		}
		s.Add(t.Name)
	}
}

// Add inserts a name once
func (s *TermSet) Add(name string) {
	if _, ok := s.index[name]; ok {
		return
	}
	s.index[name] = struct{}{}
	s.names = append(s.names, name)
}

// Contains reports membership
func (s *TermSet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of names
func (s *TermSet) Len() int {
	return len(s.names)
}

// Names returns the names in insertion order
func (s *TermSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// OrderedBy returns the names in the order they appear in columns
func (s *TermSet) OrderedBy(columns []string) []string {
	out := make([]string, 0, len(s.names))
	for _, c := range columns {
		if s.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}
