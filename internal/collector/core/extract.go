package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ModelExtractor implements StructuredExtractor by asking the model for a
// single JSON instance of the target shape and repairing the output before
// decoding. Model output is rarely clean JSON: fenced blocks, trailing
// commentary and single quotes are all common.
type ModelExtractor struct {
	model TextModel
}

func NewModelExtractor(model TextModel) *ModelExtractor {
	return &ModelExtractor{model: model}
}

// Extract requests exactly one instance of the target shape and decodes it
// into target, which must be a pointer.
func (e *ModelExtractor) Extract(ctx context.Context, prompt string, target interface{}) error {
	schema, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("describing target shape: %w", err)
	}
	full := fmt.Sprintf(`%s

Respond ONLY with a single valid JSON object matching this shape exactly (same keys, same nesting):
%s

Do not include any other text or explanation.`, prompt, schema)

	raw, err := e.model.Generate(ctx, full)
	if err != nil {
		return fmt.Errorf("extraction request: %w", err)
	}
	return DecodeModelJSON(raw, target)
}

// DecodeModelJSON strips code fences, repairs common JSON defects and
// unmarshals into target.
func DecodeModelJSON(raw string, target interface{}) error {
	cleaned := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), target); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("repairing model JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("decoding model JSON: %w", err)
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
