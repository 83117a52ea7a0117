// Package prompt renders the prompts sent to the language model. All
// rendering is deterministic: identical inputs produce identical prompts.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cognicore/nerlink/pkg/nerlink/dataset"
)

// Markers used to delimit entities in NER-tagged text.
const (
	StartEnt = "[START_ENT]"
	EndEnt   = "[END_ENT]"
)

// NERSystem instructs the model to tag named entities in place.
const NERSystem = `You are an expert Named Entity Recognition system.
Tag named entities using [START_ENT] and [END_ENT] markers.
Focus on: people, organizations, locations, events, works of art, products.
Do NOT tag common nouns, adjectives, or generic terms.
Return ONLY the tagged text, no explanations.`

// LinkingSystem instructs the model to link tagged entities to Wikipedia.
const LinkingSystem = `You are an expert Entity Linking system.
For each entity marked with [START_ENT] and [END_ENT] tags, find the correct Wikipedia URL.
Consider the full context of the sentence to disambiguate entities.
Return a JSON object with a "tags" key containing linked entities.`

// CombinedSystem instructs the model to recognize and link in one pass.
const CombinedSystem = `You are an expert at Named Entity Recognition and Entity Linking.
Your task is to:
1. Identify named entities in text (people, organizations, locations, events, etc.)
2. Link each entity to its Wikipedia article URL

Return a JSON object with a "tags" key containing an array of entities.
Each entity should have:
- "text": The exact text of the entity as it appears in the input
- "uri": The Wikipedia URL for the entity (e.g., "https://en.wikipedia.org/wiki/Entity_Name")

Focus on entities that can be linked to Wikipedia. Skip generic terms or concepts without clear Wikipedia pages.`

// MentionSystem instructs the model to disambiguate a single marked mention.
const MentionSystem = `You are an expert at entity disambiguation.
One entity mention in the text is marked with [START_ENT] and [END_ENT] tags.
Using the surrounding context, identify the most probable Wikipedia article for that mention
and describe the entity in one short sentence.
If the mention refers to an emerging entity with no Wikipedia article, return an empty "uri".
Return a JSON object with "uri" and "context" keys.`

// TagListSchema constrains linking and combined responses to a tag list,
// mirroring the schema the model is asked to produce.
var TagListSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"tags": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"text": {"type": "string"},
					"uri": {"type": "string"}
				},
				"required": ["text", "uri"]
			}
		}
	},
	"required": ["tags"]
}`)

// MentionSchema constrains single-mention disambiguation responses.
var MentionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"uri": {"type": "string"},
		"context": {"type": "string"}
	},
	"required": ["uri", "context"]
}`)

// NER renders the user prompt asking the model to tag entities in text.
func NER(text string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Tag all named entities in this text:\n\n%s\n\n", text)
	fmt.Fprintf(&buf, "Example:\n")
	fmt.Fprintf(&buf, "Input: \"Einstein worked at Princeton University.\"\n")
	fmt.Fprintf(&buf, "Output: \"%sEinstein%s worked at %sPrinceton University%s.\"\n\n", StartEnt, EndEnt, StartEnt, EndEnt)
	fmt.Fprintf(&buf, "Now tag the entities:")
	return buf.String()
}

// Linking renders the user prompt asking the model to link each tagged
// entity in NER-tagged text to a Wikipedia article.
func Linking(taggedText string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Link each tagged entity to its Wikipedia article:\n\n\"%s\"\n\n", taggedText)
	fmt.Fprintf(&buf, "Return JSON with:\n")
	fmt.Fprintf(&buf, `{"tags": [{"text": "entity_text", "uri": "https://en.wikipedia.org/wiki/..."}]}`)
	return buf.String()
}

// Combined renders the user prompt for single-call NER plus linking.
func Combined(text string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Identify and link all named entities in this text to Wikipedia:\n\n\"%s\"\n\n", text)
	fmt.Fprintf(&buf, "For each entity, determine the most likely Wikipedia article based on the full context of the sentence.\n")
	fmt.Fprintf(&buf, `For ambiguous names (like "John" or "David"), use context clues to identify the correct person/entity.`)
	return buf.String()
}

// Mention renders the user prompt for disambiguating a single mention.
// The corpus excerpt is limited to window bytes on each side of the
// mention (window <= 0 keeps the whole corpus) and the mention itself is
// wrapped in entity markers.
func Mention(doc dataset.Document, m dataset.Mention, window int) string {
	begin, end := m.BeginIndex, m.EndIndex
	lo, hi := 0, len(doc.Corpus)
	if window > 0 {
		if begin-window > lo {
			lo = begin - window
		}
		if end+window < hi {
			hi = end + window
		}
	}

	var buf bytes.Buffer
	buf.WriteString("Disambiguate the marked mention in this text:\n\n\"")
	buf.WriteString(doc.Corpus[lo:begin])
	buf.WriteString(StartEnt)
	buf.WriteString(doc.Corpus[begin:end])
	buf.WriteString(EndEnt)
	buf.WriteString(doc.Corpus[end:hi])
	buf.WriteString("\"\n\n")
	fmt.Fprintf(&buf, "Return JSON with:\n")
	fmt.Fprintf(&buf, `{"uri": "https://en.wikipedia.org/wiki/...", "context": "one-sentence description"}`)
	return buf.String()
}
