// Package results defines the augmented run file schema and its writer.
// Result documents keep the dataset schema so that a results file can be
// re-validated by the loader: augmentation only adds fields.
package results

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/nerlink/pkg/nerlink/dataset"
)

var entropy = ulid.Monotonic(rand.Reader, 0)

// NewRunID returns a sortable unique identifier for a dataset run.
func NewRunID() string {
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// TagPrediction is the model's output for a single ground-truth mention.
type TagPrediction struct {
	URI     string `json:"uri,omitempty"`
	Context string `json:"context,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Tag is a ground-truth mention with an optional attached prediction.
// The embedded mention fields are never modified.
type Tag struct {
	dataset.Mention
	Prediction *TagPrediction `json:"prediction,omitempty"`
}

// DocPrediction is the model's output for a whole document (combined and
// separate modes).
type DocPrediction struct {
	NEROutput string            `json:"ner_output,omitempty"`
	Entities  []dataset.Mention `json:"entities"`
	Error     string            `json:"error,omitempty"`
}

// DocumentResult is one processed document in the run file.
type DocumentResult struct {
	ID         string         `json:"id"`
	Corpus     string         `json:"corpus"`
	SourceFile string         `json:"source_file,omitempty"`
	Tags       []Tag          `json:"tags"`
	Predicted  *DocPrediction `json:"predicted,omitempty"`
}

// Metadata describes a run.
type Metadata struct {
	RunID        string    `json:"run_id"`
	Dataset      string    `json:"dataset"`
	Model        string    `json:"model"`
	Mode         string    `json:"mode"`
	Timestamp    time.Time `json:"timestamp"`
	TotalSamples int       `json:"total_samples"`
	Successful   int       `json:"successful"`
	Failed       int       `json:"failed"`
}

// Run is the full run file contents.
type Run struct {
	Metadata Metadata         `json:"metadata"`
	Results  []DocumentResult `json:"results"`
}

// FileName returns the run file name for a dataset/model pair. Characters
// that are unsafe in file names are replaced.
func FileName(datasetName, model string) string {
	safe := strings.NewReplacer(":", "_", "/", "_").Replace(model)
	return fmt.Sprintf("%s_%s_results.json", datasetName, safe)
}

// Write serializes the run to <dir>/<dataset>_<model>_results.json. The
// file appears atomically: content is written to a temp file in the same
// directory and renamed into place, so a crash never leaves a partial
// result file.
func Write(dir string, run *Run) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", err
	}
	data = append(data, '\n')

	path := filepath.Join(dir, FileName(run.Metadata.Dataset, run.Metadata.Model))
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}

// ReadRun loads a previously written run file.
func ReadRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &run, nil
}
