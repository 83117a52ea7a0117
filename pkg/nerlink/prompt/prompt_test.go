package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cognicore/nerlink/pkg/nerlink/dataset"
)

func TestPromptsAreDeterministic(t *testing.T) {
	doc := dataset.Document{Corpus: "Angela Merkel spoke in Berlin."}
	m := dataset.Mention{Text: "Berlin", BeginIndex: 23, EndIndex: 29}

	if NER("x") != NER("x") {
		t.Error("NER prompt not deterministic")
	}
	if Linking("x") != Linking("x") {
		t.Error("Linking prompt not deterministic")
	}
	if Combined("x") != Combined("x") {
		t.Error("Combined prompt not deterministic")
	}
	if Mention(doc, m, 10) != Mention(doc, m, 10) {
		t.Error("Mention prompt not deterministic")
	}
}

func TestNERPromptContainsText(t *testing.T) {
	p := NER("Alice has a dog")
	if !strings.Contains(p, "Alice has a dog") {
		t.Error("input text missing from prompt")
	}
	if !strings.Contains(p, StartEnt) || !strings.Contains(p, EndEnt) {
		t.Error("entity markers missing from prompt")
	}
}

func TestMentionPromptMarksTheMention(t *testing.T) {
	doc := dataset.Document{Corpus: "Angela Merkel spoke in Berlin."}
	m := dataset.Mention{Text: "Berlin", BeginIndex: 23, EndIndex: 29}

	p := Mention(doc, m, 0)
	if !strings.Contains(p, StartEnt+"Berlin"+EndEnt) {
		t.Errorf("mention not marked: %s", p)
	}
	if !strings.Contains(p, "Angela Merkel spoke in") {
		t.Error("context missing with window 0 (whole corpus)")
	}
}

func TestMentionPromptWindowTruncatesContext(t *testing.T) {
	doc := dataset.Document{Corpus: "Angela Merkel spoke in Berlin about policy."}
	m := dataset.Mention{Text: "Berlin", BeginIndex: 23, EndIndex: 29}

	p := Mention(doc, m, 4)
	if strings.Contains(p, "Angela") {
		t.Errorf("window 4 should drop distant context: %s", p)
	}
	if !strings.Contains(p, " in "+StartEnt+"Berlin"+EndEnt+" abo") {
		t.Errorf("expected 4 bytes of context on each side: %s", p)
	}
}

func TestMentionPromptWindowAtCorpusEdges(t *testing.T) {
	doc := dataset.Document{Corpus: "Berlin."}
	m := dataset.Mention{Text: "Berlin", BeginIndex: 0, EndIndex: 6}

	p := Mention(doc, m, 100)
	if !strings.Contains(p, StartEnt+"Berlin"+EndEnt+".") {
		t.Errorf("window larger than corpus should keep it all: %s", p)
	}
}

func TestSchemasAreValidJSON(t *testing.T) {
	for name, schema := range map[string]json.RawMessage{
		"tag_list": TagListSchema,
		"mention":  MentionSchema,
	} {
		var v map[string]any
		if err := json.Unmarshal(schema, &v); err != nil {
			t.Errorf("%s schema is not valid JSON: %v", name, err)
		}
		if v["type"] != "object" {
			t.Errorf("%s schema should constrain an object", name)
		}
	}
}
