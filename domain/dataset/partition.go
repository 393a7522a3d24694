package dataset

import (
	"sort"

	"surveylab/internal/errors"
)

const (
	// EntireDatasetLabel names the single segment used when segmentation is off
	EntireDatasetLabel = "Entire Dataset"
	// MissingSegmentLabel names the segment of rows with a blank segmentation value
	MissingSegmentLabel = "(missing)"
)

// SegmentOrder controls the order in which segments are returned
type SegmentOrder string

const (
	OrderSorted    SegmentOrder = "sorted"
	OrderFirstSeen SegmentOrder = "first-seen"
)

// ParseSegmentOrder validates a configured order name
func ParseSegmentOrder(s string) (SegmentOrder, error) {
	switch SegmentOrder(s) {
	case "", OrderSorted:
		return OrderSorted, nil
	case OrderFirstSeen:
		return OrderFirstSeen, nil
	}
	return "", errors.ConfigInvalid("segment order must be 'sorted' or 'first-seen', got '" + s + "'")
}

// Segment is a labeled, disjoint subset of a table's rows
type Segment struct {
	Label string
	Table *Table
}

// PartitionOptions configures Partition
type PartitionOptions struct {
	Enabled bool
	Column  string
	Order   SegmentOrder
}

// Partition splits t into segments. With segmentation disabled the result is
// a single "Entire Dataset" segment holding every row, whatever the column.
func Partition(t *Table, opts PartitionOptions) ([]Segment, error) {
	if !opts.Enabled {
		return []Segment{{Label: EntireDatasetLabel, Table: t}}, nil
	}
	if !t.HasColumn(opts.Column) {
		return nil, errors.MissingColumn("segmentation", opts.Column)
	}

	// Groups are keyed by the raw cell so a blank cell and a literal
	// "(missing)" never merge.
	var keys []string
	groups := make(map[string][]Record)
	for i, row := range t.Rows {
		key := t.Value(i, opts.Column)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}

	blankLabel := MissingSegmentLabel
	if _, taken := groups[MissingSegmentLabel]; taken {
		blankLabel = MissingSegmentLabel + " (blank)"
	}

	segments := make([]Segment, 0, len(keys))
	for _, key := range keys {
		label := key
		if key == "" {
			label = blankLabel
		}
		segments = append(segments, Segment{Label: label, Table: t.WithRows(groups[key])})
	}
	if opts.Order != OrderFirstSeen {
		sort.Slice(segments, func(i, j int) bool { return segments[i].Label < segments[j].Label })
	}
	return segments, nil
}

// Labels returns the segment labels in order
func Labels(segments []Segment) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.Label
	}
	return out
}
