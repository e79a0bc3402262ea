package oracle

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"alma.local/vmdiff/output"
)

// TriageRecord is the diagnostic bundle stored next to a divergent input.
type TriageRecord struct {
	Input       string                  `json:"base64"`
	Fingerprint string                  `json:"fingerprint"`
	First       *output.ExecutionResult `json:"fst"`
	Second      *output.ExecutionResult `json:"snd"`
	Cause       string                  `json:"cause"`
}

// NewTriageRecord builds a record; either result may be nil.
func NewTriageRecord(input []byte, first, second *output.ExecutionResult, cause string) *TriageRecord {
	return &TriageRecord{
		Input:       base64.StdEncoding.EncodeToString(input),
		Fingerprint: Fingerprint(input),
		First:       first,
		Second:      second,
		Cause:       cause,
	}
}

// Fingerprint is a short stable identifier of an input.
func Fingerprint(input []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(input))
}

// WriteFile stores the record as <dir>/<fingerprint>.json and returns the path.
func (r *TriageRecord) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("oracle: create findings dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("oracle: marshal triage record: %w", err)
	}
	path := filepath.Join(dir, r.Fingerprint+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("oracle: write triage record: %w", err)
	}
	return path, nil
}
