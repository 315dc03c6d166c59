package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/newscollector/internal/collector/core"
)

// UsageFunc receives token usage after each successful model call.
type UsageFunc func(model string, promptTokens, completionTokens int64)

// Client talks to the OpenAI API. It implements the chat, completion and
// embedding contracts used by the collector. Calls are single attempts with
// no internal retry; retry policy belongs to the caller.
type Client struct {
	apiKey          string
	baseURL         string
	completionModel string
	smallModel      string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
	onUsage         UsageFunc
}

// NewClient creates a new OpenAI client. smallModel is used for the cheap
// single-prompt completions (merging, extraction); when empty it falls back
// to the completion model.
func NewClient(apiKey, completionModel, smallModel, embeddingModel string, temperature float64, maxTokens int, timeout time.Duration) *Client {
	if smallModel == "" {
		smallModel = completionModel
	}
	return &Client{
		apiKey:          apiKey,
		baseURL:         "https://api.openai.com/v1",
		completionModel: completionModel,
		smallModel:      smallModel,
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// SetBaseURL points the client at a different API endpoint, for proxies and
// compatible servers.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// OnUsage registers a callback for token usage reporting.
func (c *Client) OnUsage(fn UsageFunc) { c.onUsage = fn }

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []apiToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type apiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type apiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []apiTool     `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Invoke sends the conversation without tool binding.
func (c *Client) Invoke(ctx context.Context, msgs []core.Message) (core.Message, error) {
	return c.chat(ctx, c.completionModel, msgs, nil)
}

// InvokeWithTools sends the conversation with the given tools bound so the
// model may respond with tool calls.
func (c *Client) InvokeWithTools(ctx context.Context, msgs []core.Message, tools []core.ToolSpec) (core.Message, error) {
	apiTools := make([]apiTool, len(tools))
	for i, t := range tools {
		apiTools[i].Type = "function"
		apiTools[i].Function.Name = t.Name
		apiTools[i].Function.Description = t.Description
		apiTools[i].Function.Parameters = t.Parameters
	}
	return c.chat(ctx, c.completionModel, msgs, apiTools)
}

// Generate runs a single-prompt completion on the small model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := c.chat(ctx, c.smallModel, []core.Message{{Role: core.RoleUser, Content: prompt}}, nil)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (c *Client) chat(ctx context.Context, model string, msgs []core.Message, tools []apiTool) (core.Message, error) {
	requestBody := chatRequest{
		Model:       model,
		Messages:    toChatMessages(msgs),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Tools:       tools,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return core.Message{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return core.Message{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Message{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var openaiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return core.Message{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if openaiResp.Error != nil {
		return core.Message{}, fmt.Errorf("API error (%s): %s", openaiResp.Error.Type, openaiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return core.Message{}, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}
	if len(openaiResp.Choices) == 0 {
		return core.Message{}, fmt.Errorf("no choices in response")
	}

	if c.onUsage != nil {
		c.onUsage(model, openaiResp.Usage.PromptTokens, openaiResp.Usage.CompletionTokens)
	}

	return fromChatMessage(openaiResp.Choices[0].Message), nil
}

// Embed generates one embedding vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requestBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Usage struct {
			PromptTokens int64 `json:"prompt_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if c.onUsage != nil {
		c.onUsage(c.embeddingModel, openaiResp.Usage.PromptTokens, 0)
	}

	vecs := make([][]float32, len(openaiResp.Data))
	for _, d := range openaiResp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func toChatMessages(msgs []core.Message) []chatMessage {
	out := make([]chatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = chatMessage{
			Role:       m.Role,
			Content:    m.Text(),
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			var call apiToolCall
			call.ID = tc.ID
			call.Type = "function"
			call.Function.Name = tc.Name
			call.Function.Arguments = string(tc.Arguments)
			out[i].ToolCalls = append(out[i].ToolCalls, call)
		}
	}
	return out
}

func fromChatMessage(m chatMessage) core.Message {
	out := core.Message{
		Role:    core.RoleAssistant,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}
