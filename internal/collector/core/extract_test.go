package core

import (
	"context"
	"strings"
	"testing"
)

func TestModelExtractorBuildsShapePrompt(t *testing.T) {
	var captured string
	model := textModelFunc(func(ctx context.Context, prompt string) (string, error) {
		captured = prompt
		return `{"news_items":[{"title":"t","summary":"s","sources":["https://a"],"topic":"x","groups":["g"]}]}`, nil
	})

	var out CollectionOutput
	e := NewModelExtractor(model)
	if err := e.Extract(context.Background(), "Extract news items", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(captured, `"news_items"`) {
		t.Fatalf("expected shape example in prompt, got %q", captured)
	}
	if !strings.Contains(captured, "Respond ONLY with a single valid JSON object") {
		t.Fatalf("expected strict format instruction, got %q", captured)
	}
	if len(out.NewsItems) != 1 || out.NewsItems[0].Title != "t" {
		t.Fatalf("unexpected decoded output: %+v", out)
	}
}

func TestDecodeModelJSONCodeFence(t *testing.T) {
	raw := "```json\n{\"news_items\": []}\n```"
	var out CollectionOutput
	if err := DecodeModelJSON(raw, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeModelJSONRepairsDefects(t *testing.T) {
	// Single quotes and a trailing comma, as models love to produce.
	raw := `{'news_items': [{'title': 'a', 'summary': 's', 'sources': [], 'topic': 't', 'groups': [],}]}`
	var out CollectionOutput
	if err := DecodeModelJSON(raw, &out); err != nil {
		t.Fatalf("expected repair to rescue malformed JSON: %v", err)
	}
	if len(out.NewsItems) != 1 || out.NewsItems[0].Title != "a" {
		t.Fatalf("unexpected decoded output: %+v", out)
	}
}

func TestDecodeModelJSONHopeless(t *testing.T) {
	var out CollectionOutput
	if err := DecodeModelJSON("I could not find any news today, sorry!", &out); err == nil {
		t.Fatalf("expected error for non-JSON output")
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Fatalf("stripCodeFence(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
