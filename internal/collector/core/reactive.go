package core

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"sync"
)

// finalAnswerInstruction is appended once the tool-call budget is exhausted,
// forcing a tool-free final response.
const finalAnswerInstruction = "You have gathered enough information. " +
	"Please provide your final response based on all the information you've " +
	"collected so far. Do not attempt to use any tools."

// keptToolRounds is how many trailing (assistant-request, tool-observations)
// pairs survive context compaction.
const keptToolRounds = 2

// Loop step targets, as decided by ToolsCondition.
const (
	StepTools  = "tools"
	StepOutput = "output"
)

// ReactiveConfig assembles a bounded tool-use worker. The worker turns a
// prompt template plus a tool set into structured output via repeated
// "think, call tools, observe" rounds under a hard call budget.
type ReactiveConfig struct {
	SystemPrompt string
	Prompt       string

	// PassthroughKeys are path expressions resolved against the caller's
	// state to fill {name} placeholders in both prompts.
	PassthroughKeys []string

	Tools        []ToolRunner
	MaxToolCalls int

	// StructuredOutput allocates the target shape for extraction. Nil means
	// raw mode: the trailing message text is taken verbatim.
	StructuredOutput   func() interface{}
	ExtractorPrompt    string
	ExtractedOutputKey string

	// OutputKey names the caller state field that receives the result.
	OutputKey       string
	AggregateOutput bool
}

// ReactiveAgent is a generic bounded reactive tool-use worker. It is
// agnostic to the caller's state shape: values flow in through path-resolved
// placeholders and the result flows out through the configured output field.
type ReactiveAgent struct {
	cfg       ReactiveConfig
	model     ChatModel
	extractor StructuredExtractor
	specs     []ToolSpec
	byName    map[string]ToolRunner
	logger    *log.Logger
}

// NewReactiveAgent validates the configuration and builds the worker.
func NewReactiveAgent(cfg ReactiveConfig, model ChatModel, extractor StructuredExtractor, logger *log.Logger) (*ReactiveAgent, error) {
	if model == nil {
		return nil, fmt.Errorf("reactive agent requires a chat model")
	}
	if cfg.OutputKey == "" {
		return nil, fmt.Errorf("reactive agent requires an output key")
	}
	if cfg.MaxToolCalls < 0 {
		return nil, fmt.Errorf("max tool calls must be >= 0")
	}
	if cfg.StructuredOutput != nil && extractor == nil {
		return nil, fmt.Errorf("structured output configured without an extractor")
	}
	a := &ReactiveAgent{
		cfg:       cfg,
		model:     model,
		extractor: extractor,
		byName:    make(map[string]ToolRunner, len(cfg.Tools)),
		logger:    logger,
	}
	for _, t := range cfg.Tools {
		spec := t.Spec()
		a.specs = append(a.specs, spec)
		a.byName[spec.Name] = t
	}
	return a, nil
}

// Run executes the reactive loop against the caller's state. The loop is
// bounded: the tool-call counter strictly increases each round and the
// assistant step drops tool binding once the budget is reached, so output
// extraction happens within at most MaxToolCalls+1 assistant invocations.
func (a *ReactiveAgent) Run(ctx context.Context, state interface{}) error {
	msgs, err := a.buildPrompt(state)
	if err != nil {
		return err
	}
	calls := 0
	for {
		reply, err := a.assistant(ctx, msgs, calls)
		if err != nil {
			return &ModelInvocationError{Stage: "assistant", Err: err}
		}
		msgs = append(msgs, reply)

		next, err := ToolsCondition(msgs)
		if err != nil {
			return err
		}
		if next == StepOutput {
			break
		}

		msgs = append(msgs, a.dispatchTools(ctx, reply.ToolCalls)...)
		msgs = compactHistory(msgs, keptToolRounds)
		calls++
		a.syncState(state, msgs, calls)
	}
	return a.emit(ctx, state, msgs)
}

// buildPrompt materializes the initial system and user messages and resets
// the tool-call counter.
func (a *ReactiveAgent) buildPrompt(state interface{}) ([]Message, error) {
	values, err := resolveTemplateValues(state, a.cfg.PassthroughKeys)
	if err != nil {
		return nil, fmt.Errorf("resolving prompt values: %w", err)
	}
	msgs := []Message{
		{Role: RoleSystem, Content: renderTemplate(a.cfg.SystemPrompt, values)},
		{Role: RoleUser, Content: renderTemplate(a.cfg.Prompt, values)},
	}
	a.syncState(state, msgs, 0)
	return msgs, nil
}

// assistant invokes the model. Once the counter reaches the budget the model
// is called without tool binding and with the forced-answer instruction,
// which guarantees termination.
func (a *ReactiveAgent) assistant(ctx context.Context, msgs []Message, calls int) (Message, error) {
	if calls >= a.cfg.MaxToolCalls {
		forced := append(append([]Message{}, msgs...), Message{Role: RoleUser, Content: finalAnswerInstruction})
		return a.model.Invoke(ctx, forced)
	}
	return a.model.InvokeWithTools(ctx, msgs, a.specs)
}

// ToolsCondition inspects the trailing message and decides the next step.
// The state may be a bare message slice or any container exposing a message
// history; absence of any history is a StateError.
func ToolsCondition(state interface{}) (string, error) {
	last, err := latestMessage(state)
	if err != nil {
		return "", err
	}
	if len(last.ToolCalls) > 0 {
		return StepTools, nil
	}
	return StepOutput, nil
}

func latestMessage(state interface{}) (Message, error) {
	var msgs []Message
	switch s := state.(type) {
	case []Message:
		msgs = s
	case interface{ MessageHistory() []Message }:
		msgs = s.MessageHistory()
	default:
		v := indirect(reflect.ValueOf(state))
		if v.IsValid() && v.Kind() == reflect.Struct {
			if f, err := fieldOrKey(v, "messages"); err == nil {
				if m, ok := f.Interface().([]Message); ok {
					msgs = m
				}
			}
		}
		if msgs == nil {
			return Message{}, &StateError{Reason: fmt.Sprintf("no message history in %T", state)}
		}
	}
	if len(msgs) == 0 {
		return Message{}, &StateError{Reason: ErrNoMessages.Error()}
	}
	return msgs[len(msgs)-1], nil
}

// dispatchTools executes every requested call and produces one observation
// message per call, in request order. Calls within a round are independent
// and run concurrently; the loop does not resume until all have returned.
func (a *ReactiveAgent) dispatchTools(ctx context.Context, calls []ToolCall) []Message {
	obs := make([]Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()
			obs[i] = a.runTool(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return obs
}

func (a *ReactiveAgent) runTool(ctx context.Context, call ToolCall) Message {
	msg := Message{Role: RoleTool, ToolCallID: call.ID, Name: call.Name}
	tool, ok := a.byName[call.Name]
	if !ok {
		msg.Content = fmt.Sprintf("Error: unknown tool %q. Available tools: %s", call.Name, a.toolNames())
		return msg
	}
	out, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		terr := &ToolExecutionError{Tool: call.Name, Err: err}
		if a.logger != nil {
			a.logger.Printf("tool call failed: %v", terr)
		}
		msg.Content = fmt.Sprintf("Error: %v", terr)
		return msg
	}
	msg.Content = out
	return msg
}

func (a *ReactiveAgent) toolNames() string {
	names := ""
	for i, s := range a.specs {
		if i > 0 {
			names += ", "
		}
		names += s.Name
	}
	return names
}

// compactHistory rewrites the conversation to retain all system and user
// messages plus only the last keep (assistant-request, tool-observations)
// pairs. This bounds prompt size no matter how many rounds run.
func compactHistory(msgs []Message, keep int) []Message {
	type round struct {
		request      Message
		observations []Message
	}
	var preserved []Message
	var rounds []round
	var current *round

	flush := func() {
		if current != nil {
			rounds = append(rounds, *current)
			current = nil
		}
	}

	for _, m := range msgs {
		switch {
		case m.Role == RoleSystem || m.Role == RoleUser:
			preserved = append(preserved, m)
		case m.Role == RoleAssistant && len(m.ToolCalls) > 0:
			flush()
			current = &round{request: m}
		case m.Role == RoleTool:
			if current != nil {
				current.observations = append(current.observations, m)
			}
		case m.Role == RoleAssistant:
			flush()
			preserved = append(preserved, m)
		}
	}
	flush()

	if len(rounds) > keep {
		rounds = rounds[len(rounds)-keep:]
	}

	out := append([]Message{}, preserved...)
	for _, r := range rounds {
		out = append(out, r.request)
		out = append(out, r.observations...)
	}
	return out
}

// emit performs output extraction, writes the result into the caller's
// output field and fully clears the conversation history.
func (a *ReactiveAgent) emit(ctx context.Context, state interface{}, msgs []Message) error {
	content := msgs[len(msgs)-1].Text()

	var result interface{}
	if a.cfg.StructuredOutput != nil {
		target := a.cfg.StructuredOutput()
		prompt := renderTemplate(a.cfg.ExtractorPrompt, map[string]string{"content": content})
		if err := a.extractor.Extract(ctx, prompt, target); err != nil {
			return &ModelInvocationError{Stage: "extraction", Err: err}
		}
		result = target
		if a.cfg.ExtractedOutputKey != "" {
			v := indirect(reflect.ValueOf(target))
			f, err := fieldOrKey(v, a.cfg.ExtractedOutputKey)
			if err != nil {
				return fmt.Errorf("extracted output key: %w", err)
			}
			result = f.Interface()
		}
	} else {
		result = content
	}

	if a.cfg.AggregateOutput {
		rv := reflect.ValueOf(result)
		seq := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 0, 1)
		result = reflect.Append(seq, rv).Interface()
	}

	if err := setField(state, a.cfg.OutputKey, result); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	a.syncState(state, nil, 0)
	return nil
}

// syncState mirrors the loop's message history and counter into the caller's
// state when the state carries those fields. History replacement is always a
// fresh slice, never in-place mutation.
func (a *ReactiveAgent) syncState(state interface{}, msgs []Message, calls int) {
	_ = setField(state, "messages", msgs)
	_ = setField(state, "tool_call_count", calls)
}
