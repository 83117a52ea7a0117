package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cognicore/nerlink/pkg/nerlink/dataset"
)

func sampleRun() *Run {
	return &Run{
		Metadata: Metadata{
			RunID:        NewRunID(),
			Dataset:      "KORE50",
			Model:        "gemma3:4b",
			Mode:         "mention",
			Timestamp:    time.Now().UTC(),
			TotalSamples: 1,
			Successful:   1,
		},
		Results: []DocumentResult{{
			ID:         "KORE50_0",
			Corpus:     "Paris is the capital of France.",
			SourceFile: "KORE50.json",
			Tags: []Tag{
				{
					Mention:    dataset.Mention{Text: "Paris", URI: "https://en.wikipedia.org/wiki/Paris", BeginIndex: 0, EndIndex: 5},
					Prediction: &TagPrediction{URI: "https://en.wikipedia.org/wiki/Paris", Context: "Capital of France."},
				},
				{
					Mention: dataset.Mention{Text: "France", URI: "https://en.wikipedia.org/wiki/France", BeginIndex: 24, EndIndex: 30},
				},
			},
		}},
	}
}

func TestWriteAndReadRun(t *testing.T) {
	dir := t.TempDir()
	run := sampleRun()

	path, err := Write(dir, run)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "KORE50_gemma3_4b_results.json" {
		t.Errorf("unexpected file name: %s", filepath.Base(path))
	}

	got, err := ReadRun(path)
	if err != nil {
		t.Fatalf("ReadRun: %v", err)
	}
	if got.Metadata.RunID != run.Metadata.RunID {
		t.Errorf("run ID lost in round trip")
	}
	if len(got.Results) != 1 || len(got.Results[0].Tags) != 2 {
		t.Fatalf("results lost in round trip: %+v", got.Results)
	}
	if got.Results[0].Tags[0].Prediction == nil {
		t.Error("prediction lost in round trip")
	}
	if got.Results[0].Tags[1].Prediction != nil {
		t.Error("unexpected prediction on unaugmented tag")
	}
}

// Augmentation is additive: the results array must still satisfy the
// dataset loader's schema, with identical mention counts and offsets.
func TestRunResultsRemainLoaderCompatible(t *testing.T) {
	dir := t.TempDir()
	run := sampleRun()

	path, err := Write(dir, run)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read run file: %v", err)
	}
	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	docs, err := dataset.Parse(envelope.Results)
	if err != nil {
		t.Fatalf("results no longer parse as a dataset: %v", err)
	}
	if len(docs) != len(run.Results) {
		t.Fatalf("document count changed: %d != %d", len(docs), len(run.Results))
	}
	for i, doc := range docs {
		want := run.Results[i]
		if len(doc.Tags) != len(want.Tags) {
			t.Fatalf("doc %d: mention count changed: %d != %d", i, len(doc.Tags), len(want.Tags))
		}
		for j, tag := range doc.Tags {
			if tag != want.Tags[j].Mention {
				t.Errorf("doc %d tag %d: mention changed: %+v != %+v", i, j, tag, want.Tags[j].Mention)
			}
		}
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := Write(dir, sampleRun()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("expected exactly the result file, found %v", names)
	}
}

func TestWriteCreatesResultsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results", "nested")
	if _, err := Write(dir, sampleRun()); err != nil {
		t.Fatalf("Write into missing dir: %v", err)
	}
}

func TestFileNameSanitizesModel(t *testing.T) {
	got := FileName("AIDA-EE", "library/llama3:8b")
	if strings.ContainsAny(got, ":/") {
		t.Errorf("unsafe characters in file name: %s", got)
	}
	if got != "AIDA-EE_library_llama3_8b_results.json" {
		t.Errorf("unexpected file name: %s", got)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		if seen[id] {
			t.Fatalf("duplicate run ID %s", id)
		}
		seen[id] = true
	}
}
