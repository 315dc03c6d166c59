package core

import (
	"context"
	"encoding/json"
)

// NewsItem is a single collected news story. Items are produced by the
// reactive worker's structured extraction or by the similarity engine's
// merge step, and are never mutated afterwards; a merge replaces both
// inputs with a fresh item.
type NewsItem struct {
	Title         string   `json:"title" yaml:"title"`
	Summary       string   `json:"summary" yaml:"summary"`
	Sources       []string `json:"sources" yaml:"sources"`
	PublishedDate string   `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	Topic         string   `json:"topic" yaml:"topic"`
	Groups        []string `json:"groups" yaml:"groups"`
}

// TopicEntry pairs a topic name with the metadata loaded from the topics
// file. Entries keep the file's ordering.
type TopicEntry struct {
	Name string
	Info TopicInfo
}

// TopicInfo holds the per-topic metadata. Unknown keys from the topics file
// are preserved in Extra.
type TopicInfo struct {
	Groups []string
	Extra  map[string]interface{}
}

// CollectionOutput is the structured-output shape the worker's extractor
// fills for each topic run.
type CollectionOutput struct {
	NewsItems []NewsItem `json:"news_items"`
}

// CollectionState is the single mutable context threaded through a whole
// collection run. It is created once at run start and discarded after the
// final save.
type CollectionState struct {
	RunID      string       `json:"run_id"`
	Topics     []TopicEntry `json:"-"`
	TopicIndex int          `json:"current_topic_index"`

	// Collections accumulates results across topic iterations; it only
	// shrinks when the deduplication pass replaces it wholesale.
	Collections  []NewsItem `json:"news_collections"`
	CurrentItems []NewsItem `json:"current_news_items"`

	// Scratch fields for the topic currently being processed; reset on
	// every topic transition.
	CurrentTopic     string   `json:"current_topic"`
	CurrentGroups    []string `json:"current_groups"`
	RecencyDays      int      `json:"recency_days"`
	MaxItemsPerTopic int      `json:"max_items_per_topic"`

	Messages      []Message `json:"messages"`
	ToolCallCount int       `json:"tool_call_count"`
}

// MessageHistory exposes the conversation for trailing-message inspection.
func (s *CollectionState) MessageHistory() []Message {
	return s.Messages
}

// Message roles, matching the chat-completion wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation entry. Assistant messages may carry tool-call
// requests; tool messages carry the observation for exactly one call.
type Message struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	Segments   []ContentSegment `json:"segments,omitempty"`
	ToolCalls  []ToolCall       `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

// ContentSegment is one part of a segmented message body, as produced by
// providers that return list-shaped content.
type ContentSegment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text flattens the message body to a single string.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	if len(m.Segments) > 0 {
		return m.Segments[0].Text
	}
	return ""
}

// ToolCall is a single tool invocation requested by the assistant.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolSpec describes a callable tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolRunner is a callable named action the reactive worker can dispatch.
// Call returns the observation text shown to the model; an error becomes a
// tool-level error observation, never a fatal abort.
type ToolRunner interface {
	Spec() ToolSpec
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// ChatModel invokes the language model over a conversation, with or without
// tool binding. Neither variant retries internally.
type ChatModel interface {
	Invoke(ctx context.Context, msgs []Message) (Message, error)
	InvokeWithTools(ctx context.Context, msgs []Message, tools []ToolSpec) (Message, error)
}

// TextModel is the single-prompt completion capability used by the merge and
// extraction steps.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder computes one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// StructuredExtractor turns free-form model output into exactly one instance
// of the target shape, decoded into the pointer passed as target.
type StructuredExtractor interface {
	Extract(ctx context.Context, prompt string, target interface{}) error
}

// EmbeddingCache is an optional read-through cache in front of an Embedder.
// A nil cache is valid and means no caching.
type EmbeddingCache interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Set(ctx context.Context, text string, vec []float32)
}

// TopicWorker runs one topic collection against the shared state, leaving
// its output in the state's current-items field.
type TopicWorker interface {
	Run(ctx context.Context, state interface{}) error
}

// CollectionSaver persists the final deduplicated collection grouped by
// topic and returns the primary path written.
type CollectionSaver interface {
	Save(collection map[string]SavedTopic) (string, error)
}
