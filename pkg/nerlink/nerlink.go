// Package nerlink augments entity-linking datasets with predictions from
// a language model: it recognizes entity mentions, links them to
// Wikipedia, and aligns the model's answers back to character offsets in
// the source corpus.
package nerlink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cognicore/nerlink/pkg/nerlink/dataset"
	"github.com/cognicore/nerlink/pkg/nerlink/internalerr"
	"github.com/cognicore/nerlink/pkg/nerlink/pool"
	"github.com/cognicore/nerlink/pkg/nerlink/prompt"
	"github.com/cognicore/nerlink/pkg/nerlink/results"
)

// ChatModel is the capability the pipeline needs from a language model.
type ChatModel interface {
	Chat(ctx context.Context, system, user string, format json.RawMessage) (string, error)
}

// Mode selects the prompting strategy for a run.
type Mode string

const (
	// ModeCombined performs NER and linking in one model call per document.
	ModeCombined Mode = "combined"
	// ModeSeparate performs NER first, then linking, per document.
	ModeSeparate Mode = "separate"
	// ModeMention issues one disambiguation prompt per ground-truth mention.
	ModeMention Mode = "mention"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCombined, ModeSeparate, ModeMention:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", internalerr.ErrInvalidConfig, s)
}

// Options configures a Pipeline.
type Options struct {
	Model   ChatModel
	Mode    Mode
	Workers int
	// Window limits mention prompts to this many bytes of corpus context
	// on each side of the mention; 0 sends the whole corpus.
	Window int
	// OnProgress, if set, receives (done, total) after each work item.
	OnProgress func(done, total int)
}

// Pipeline runs dataset augmentation against a model.
type Pipeline struct {
	model      ChatModel
	mode       Mode
	workers    int
	window     int
	onProgress func(done, total int)
}

// New creates a Pipeline with the given dependencies.
func New(opts Options) *Pipeline {
	mode := opts.Mode
	if mode == "" {
		mode = ModeCombined
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		model:      opts.Model,
		mode:       mode,
		workers:    workers,
		window:     opts.Window,
		onProgress: opts.OnProgress,
	}
}

// RunNER expands a text with entity markers, e.g. "Alice has a dog" ->
// "[START_ENT]Alice[END_ENT] has a dog".
func (p *Pipeline) RunNER(ctx context.Context, text string) (string, error) {
	out, err := p.model.Chat(ctx, prompt.NERSystem, prompt.NER(text), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RunLinking links each marked entity in NER-tagged text to a Wikipedia
// URI and aligns the results to offsets in the untagged text.
func (p *Pipeline) RunLinking(ctx context.Context, taggedText string) ([]dataset.Mention, error) {
	content, err := p.model.Chat(ctx, prompt.LinkingSystem, prompt.Linking(taggedText), prompt.TagListSchema)
	if err != nil {
		return nil, err
	}
	tags, err := decodeTagList(content)
	if err != nil {
		return nil, err
	}
	raw := stripMarkers(taggedText)
	return alignTags(raw, tags), nil
}

// RunCombined recognizes and links entities in one model call.
func (p *Pipeline) RunCombined(ctx context.Context, text string) ([]dataset.Mention, error) {
	content, err := p.model.Chat(ctx, prompt.CombinedSystem, prompt.Combined(text), prompt.TagListSchema)
	if err != nil {
		return nil, err
	}
	tags, err := decodeTagList(content)
	if err != nil {
		return nil, err
	}
	return alignTags(text, tags), nil
}

// MentionPrediction is the model's answer for a single mention.
type MentionPrediction struct {
	URI     string `json:"uri"`
	Context string `json:"context"`
}

// Disambiguate asks the model for the most probable entity behind one
// ground-truth mention, using the surrounding corpus as context.
func (p *Pipeline) Disambiguate(ctx context.Context, doc dataset.Document, m dataset.Mention) (MentionPrediction, error) {
	content, err := p.model.Chat(ctx, prompt.MentionSystem, prompt.Mention(doc, m, p.window), prompt.MentionSchema)
	if err != nil {
		return MentionPrediction{}, err
	}
	var pred MentionPrediction
	if err := decodeStrict(content, &pred); err != nil {
		return MentionPrediction{}, err
	}
	return pred, nil
}

// ProcessDataset runs the pipeline over a dataset. When limit > 0 it
// bounds the number of work items: documents in combined/separate mode,
// mentions in mention mode. Per-item failures are recorded in the run and
// never abort the batch; the returned error is non-nil only when the
// context was cancelled.
func (p *Pipeline) ProcessDataset(ctx context.Context, ds *dataset.Dataset, modelName string, limit int) (*results.Run, error) {
	docs := ds.Docs
	if p.mode != ModeMention && limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}

	run := &results.Run{
		Metadata: results.Metadata{
			RunID:     results.NewRunID(),
			Dataset:   ds.Name,
			Model:     modelName,
			Mode:      string(p.mode),
			Timestamp: time.Now().UTC(),
		},
		Results: make([]results.DocumentResult, len(docs)),
	}
	for i, doc := range docs {
		tags := make([]results.Tag, len(doc.Tags))
		for j, m := range doc.Tags {
			tags[j] = results.Tag{Mention: m}
		}
		run.Results[i] = results.DocumentResult{
			ID:         doc.ID,
			Corpus:     doc.Corpus,
			SourceFile: doc.SourceFile,
			Tags:       tags,
		}
	}

	cfg := pool.Config{Workers: p.workers, OnProgress: p.onProgress}
	if p.mode == ModeMention {
		p.processMentions(ctx, cfg, docs, run, limit)
	} else {
		p.processDocuments(ctx, cfg, docs, run)
	}
	return run, ctx.Err()
}

func (p *Pipeline) processDocuments(ctx context.Context, cfg pool.Config, docs []dataset.Document, run *results.Run) {
	outcomes := pool.Run(ctx, cfg, docs, func(ctx context.Context, doc dataset.Document) (*results.DocPrediction, error) {
		if p.mode == ModeSeparate {
			tagged, err := p.RunNER(ctx, doc.Corpus)
			if err != nil {
				return nil, err
			}
			entities, err := p.RunLinking(ctx, tagged)
			if err != nil {
				return nil, err
			}
			return &results.DocPrediction{NEROutput: tagged, Entities: entities}, nil
		}
		entities, err := p.RunCombined(ctx, doc.Corpus)
		if err != nil {
			return nil, err
		}
		return &results.DocPrediction{Entities: entities}, nil
	})

	run.Metadata.TotalSamples = len(outcomes)
	for _, out := range outcomes {
		if out.Err != nil {
			run.Results[out.Index].Predicted = &results.DocPrediction{
				Entities: []dataset.Mention{},
				Error:    out.Err.Error(),
			}
			run.Metadata.Failed++
			continue
		}
		pred := out.Value
		if pred.Entities == nil {
			pred.Entities = []dataset.Mention{}
		}
		run.Results[out.Index].Predicted = pred
		run.Metadata.Successful++
	}
}

type mentionItem struct {
	doc int
	tag int
}

func (p *Pipeline) processMentions(ctx context.Context, cfg pool.Config, docs []dataset.Document, run *results.Run, limit int) {
	var items []mentionItem
	for i, doc := range docs {
		for j := range doc.Tags {
			items = append(items, mentionItem{doc: i, tag: j})
		}
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	outcomes := pool.Run(ctx, cfg, items, func(ctx context.Context, it mentionItem) (MentionPrediction, error) {
		doc := docs[it.doc]
		return p.Disambiguate(ctx, doc, doc.Tags[it.tag])
	})

	run.Metadata.TotalSamples = len(outcomes)
	for _, out := range outcomes {
		it := items[out.Index]
		tag := &run.Results[it.doc].Tags[it.tag]
		if out.Err != nil {
			tag.Prediction = &results.TagPrediction{Error: out.Err.Error()}
			run.Metadata.Failed++
			continue
		}
		tag.Prediction = &results.TagPrediction{URI: out.Value.URI, Context: out.Value.Context}
		run.Metadata.Successful++
	}
}

type tagItem struct {
	Text string `json:"text"`
	URI  string `json:"uri"`
}

type tagList struct {
	Tags []tagItem `json:"tags"`
}

func decodeTagList(content string) ([]tagItem, error) {
	var list tagList
	if err := decodeStrict(content, &list); err != nil {
		return nil, err
	}
	if list.Tags == nil {
		return nil, fmt.Errorf("%w: missing tags key", internalerr.ErrResponseParse)
	}
	return list.Tags, nil
}

// decodeStrict unmarshals exactly one JSON value with unknown fields
// rejected, wrapping failures in ErrResponseParse.
func decodeStrict(content string, v any) error {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrResponseParse, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing content after JSON value", internalerr.ErrResponseParse)
	}
	return nil
}

func stripMarkers(taggedText string) string {
	s := strings.ReplaceAll(taggedText, prompt.StartEnt, "")
	return strings.ReplaceAll(s, prompt.EndEnt, "")
}

// alignTags locates each predicted entity in the raw text by a
// case-insensitive left-to-right scan. The scan resumes after the
// previous match so repeated surface forms map to successive occurrences;
// if that fails the search restarts from the beginning, and entities that
// never occur in the text are dropped.
func alignTags(raw string, tags []tagItem) []dataset.Mention {
	lower := strings.ToLower(raw)
	mentions := make([]dataset.Mention, 0, len(tags))
	last := 0
	for _, tag := range tags {
		if tag.Text == "" {
			continue
		}
		needle := strings.ToLower(tag.Text)
		start := strings.Index(lower[last:], needle)
		if start >= 0 {
			start += last
		} else {
			start = strings.Index(lower, needle)
		}
		if start < 0 {
			continue
		}
		end := start + len(tag.Text)
		last = end
		mentions = append(mentions, dataset.Mention{
			Text:       tag.Text,
			URI:        tag.URI,
			BeginIndex: start,
			EndIndex:   end,
		})
	}
	return mentions
}
