package run

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"surveylab/domain/core"
	"surveylab/internal/errors"
)

// CodeVersion is stamped into every manifest
var CodeVersion = "dev"

// SegmentRecord is the manifest entry for one segment
type SegmentRecord struct {
	Label  string `json:"label"`
	Rows   int    `json:"rows"`
	Status string `json:"status"` // "fitted", "skipped" or "failed"
	Reason string `json:"reason,omitempty"`
}

// Segment statuses
const (
	SegmentFitted  = "fitted"
	SegmentSkipped = "skipped"
	SegmentFailed  = "failed"
)

// Manifest records what a run read, how it was configured and what it wrote
type Manifest struct {
	RunID       core.RunID             `json:"run_id"`
	Pipeline    Pipeline               `json:"pipeline"`
	InputPath   string                 `json:"input_path"`
	Settings    map[string]interface{} `json:"settings"`
	Fingerprint RunFingerprint         `json:"fingerprint"`
	Segments    []SegmentRecord        `json:"segments"`
	Outputs     []string               `json:"outputs"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at,omitzero"`
}

// NewManifest starts a manifest for a run over inputPath. The input file is
// hashed so reruns against changed data are distinguishable.
func NewManifest(pipeline Pipeline, inputPath string, settings map[string]interface{}) (*Manifest, error) {
	datasetHash, err := core.HashFile(inputPath)
	if err != nil {
		return nil, errors.InputNotFound(inputPath)
	}
	return &Manifest{
		RunID:       core.NewRunID(),
		Pipeline:    pipeline,
		InputPath:   inputPath,
		Settings:    settings,
		Fingerprint: NewRunFingerprint(datasetHash, core.ComputeSettingsHash(settings), CodeVersion),
		StartedAt:   time.Now().UTC(),
	}, nil
}

// AddSegment appends a segment outcome
func (m *Manifest) AddSegment(label string, rows int, status, reason string) {
	m.Segments = append(m.Segments, SegmentRecord{Label: label, Rows: rows, Status: status, Reason: reason})
}

// AddOutput records a written file
func (m *Manifest) AddOutput(path string) {
	m.Outputs = append(m.Outputs, path)
}

// Finish stamps the completion time
func (m *Manifest) Finish() {
	m.FinishedAt = time.Now().UTC()
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if _, err := core.ParseRunID(m.RunID.String()); err != nil {
		return errors.WithCode(errors.CodeInvalidInput, errors.Wrap(err, "run manifest"))
	}
	if m.Pipeline != PipelineOLS && m.Pipeline != PipelineSEM {
		return errors.InvalidInput("run manifest: unknown pipeline " + string(m.Pipeline))
	}
	if m.Fingerprint.DatasetHash.IsEmpty() {
		return errors.InvalidInput("run manifest: dataset_hash cannot be empty")
	}
	if m.Fingerprint.CodeVersion == "" {
		return errors.InvalidInput("run manifest: code_version cannot be empty")
	}
	return nil
}

// Write saves the manifest as indented JSON
func (m *Manifest) Write(path string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.OutputFailed(path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.OutputFailed(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.OutputFailed(path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by Write
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InputNotFound(path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.InputInvalid(path, err)
	}
	return &m, nil
}
