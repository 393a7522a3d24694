package run

import (
	"crypto/sha256"
	"fmt"

	"surveylab/domain/core"
)

// Pipeline names which analysis a run performed
type Pipeline string

const (
	PipelineOLS Pipeline = "ols"
	PipelineSEM Pipeline = "sem"
)

// RunFingerprint identifies a reproducible run: same data, same settings, same code
type RunFingerprint struct {
	DatasetHash  core.Hash `json:"dataset_hash"`
	SettingsHash core.Hash `json:"settings_hash"`
	CodeVersion  string    `json:"code_version"`
	Fingerprint  core.Hash `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(datasetHash, settingsHash core.Hash, codeVersion string) RunFingerprint {
	return RunFingerprint{
		DatasetHash:  datasetHash,
		SettingsHash: settingsHash,
		CodeVersion:  codeVersion,
		Fingerprint:  computeRunFingerprint(datasetHash, settingsHash, codeVersion),
	}
}

func computeRunFingerprint(datasetHash, settingsHash core.Hash, codeVersion string) core.Hash {
	data := fmt.Sprintf("dataset:%s|settings:%s|code:%s", datasetHash, settingsHash, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
