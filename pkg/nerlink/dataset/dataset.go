package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cognicore/nerlink/pkg/nerlink/internalerr"
)

// Mention is a tagged span of text referring to a named entity.
// BeginIndex and EndIndex are byte offsets into the document corpus.
// An empty URI marks an unresolved (out-of-knowledge-base) entity.
type Mention struct {
	Text       string `json:"text"`
	URI        string `json:"uri"`
	BeginIndex int    `json:"beginIndex"`
	EndIndex   int    `json:"endIndex"`
}

// Document is a single corpus text with its ground-truth entity tags.
type Document struct {
	ID         string    `json:"id,omitempty"`
	Corpus     string    `json:"corpus"`
	Tags       []Mention `json:"tags"`
	SourceFile string    `json:"source_file,omitempty"`
}

// Dataset is a named collection of documents loaded from one JSON file.
type Dataset struct {
	Name string
	Docs []Document
}

// Len returns the number of documents in the dataset.
func (d *Dataset) Len() int { return len(d.Docs) }

// Validate checks mention offsets against the corpus.
func (doc *Document) Validate() error {
	for i, tag := range doc.Tags {
		if tag.BeginIndex < 0 || tag.BeginIndex > tag.EndIndex || tag.EndIndex > len(doc.Corpus) {
			return fmt.Errorf("%w: tag %d: offsets [%d, %d) out of range for corpus of length %d",
				internalerr.ErrMalformedDataset, i, tag.BeginIndex, tag.EndIndex, len(doc.Corpus))
		}
	}
	return nil
}

// Open resolves a dataset by name inside dir and loads it. The name maps
// to <dir>/<name>.json.
func Open(dir, name string) (*Dataset, error) {
	path := filepath.Join(dir, name+".json")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s (%s)", internalerr.ErrDatasetNotFound, name, path)
	}
	return LoadFile(path)
}

// LoadFile loads a single dataset JSON file.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", internalerr.ErrDatasetNotFound, path)
		}
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	docs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range docs {
		docs[i].ID = fmt.Sprintf("%s_%d", stem, i)
		docs[i].SourceFile = filepath.Base(path)
	}

	return &Dataset{Name: stem, Docs: docs}, nil
}

// Parse decodes a JSON array of documents and validates mention offsets.
// Entries with an empty corpus are dropped; tag ordering is preserved.
func Parse(data []byte) ([]Document, error) {
	var raw []Document
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrMalformedDataset, err)
	}

	docs := make([]Document, 0, len(raw))
	for i, doc := range raw {
		if doc.Corpus == "" {
			continue
		}
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadAll loads every *.json file in dir, keyed by dataset name.
func LoadAll(dir string) (map[string]*Dataset, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no JSON files in %s", internalerr.ErrDatasetNotFound, dir)
	}
	sort.Strings(entries)

	datasets := make(map[string]*Dataset, len(entries))
	for _, path := range entries {
		ds, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		datasets[ds.Name] = ds
	}
	return datasets, nil
}

// Names returns the sorted dataset names found in dir without loading them.
func Names(dir string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, path := range entries {
		names = append(names, strings.TrimSuffix(filepath.Base(path), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
