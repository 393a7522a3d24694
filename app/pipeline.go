package app

import (
	"fmt"
	"regexp"

	"surveylab/domain/dataset"
	"surveylab/domain/run"
	"surveylab/internal"
	"surveylab/internal/errors"
	"surveylab/ports"
)

// FilterSpec excludes rows before segmentation
type FilterSpec struct {
	Column string
	Values []string
}

// OutputOptions locates the optional side outputs. Empty paths disable them.
type OutputOptions struct {
	HTMLPath     string
	ManifestPath string
}

// SegmentIssue records a segment that contributed nothing (or only partly) to a run
type SegmentIssue struct {
	Segment string
	Code    string
	Message string
}

func (i SegmentIssue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.Segment, i.Message, i.Code)
}

func issueStrings(issues []SegmentIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}

// newIssue logs a per-segment failure and converts it to an issue
func newIssue(logger *internal.Logger, segment string, err error) SegmentIssue {
	issue := SegmentIssue{Segment: segment, Code: errors.GetCode(err), Message: err.Error()}
	logger.Warn("Segment %s skipped: %v", segment, err)
	return issue
}

// loadSegments runs the shared front of both pipelines: read, filter, partition
func loadSegments(reader ports.DatasetReaderPort, filter FilterSpec, opts dataset.PartitionOptions, logger *internal.Logger) (*dataset.Table, []dataset.Segment, error) {
	table, err := reader.ReadTable()
	if err != nil {
		return nil, nil, err
	}

	filtered, err := dataset.Filter(table, filter.Column, filter.Values)
	if err != nil {
		return nil, nil, err
	}
	if removed := table.RowCount() - filtered.RowCount(); removed > 0 {
		logger.Info("Filter on %s removed %d rows, %d remain", filter.Column, removed, filtered.RowCount())
	}

	segments, err := dataset.Partition(filtered, opts)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Dataset split into %d segment(s): %v", len(segments), dataset.Labels(segments))
	return filtered, segments, nil
}

// SelectPredictors returns the columns matching ^prefix for any prefix, in
// column order and without duplicates. The dependent column is never a predictor.
func SelectPredictors(columns, prefixes []string, dependent string) ([]string, error) {
	patterns := make([]*regexp.Regexp, 0, len(prefixes))
	for _, p := range prefixes {
		re, err := regexp.Compile("^" + p)
		if err != nil {
			return nil, errors.ConfigInvalid(fmt.Sprintf("invalid predictor prefix %q: %v", p, err))
		}
		patterns = append(patterns, re)
	}

	var out []string
	for _, c := range columns {
		if c == dependent {
			continue
		}
		for _, re := range patterns {
			if re.MatchString(c) {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

// newManifest starts a manifest when one was requested
func newManifest(kind run.Pipeline, inputPath string, outputs OutputOptions, settings map[string]interface{}) (*run.Manifest, error) {
	if outputs.ManifestPath == "" {
		return nil, nil
	}
	return run.NewManifest(kind, inputPath, settings)
}

func finishManifest(m *run.Manifest, path string, logger *internal.Logger) error {
	if m == nil {
		return nil
	}
	m.Finish()
	if err := m.Write(path); err != nil {
		return err
	}
	logger.Info("Run manifest %s saved to %s", m.RunID, path)
	return nil
}
