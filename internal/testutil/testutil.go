// Package testutil holds conformance checks shared by live provider tests,
// plus a scripted provider for runner tests.
package testutil

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stepkit/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const DefaultTimeout = 60 * time.Second

// SkipIfNoEnv skips live tests when envVar is empty.
func SkipIfNoEnv(t *testing.T, envVar string) {
	t.Helper()
	if os.Getenv(envVar) == "" {
		t.Skipf("skipping: %s not set", envVar)
	}
}

// TestConfig is the provider under test and the per-test deadline.
type TestConfig struct {
	Provider step.Provider
	Timeout  time.Duration
}

// DefaultConfig wraps provider with DefaultTimeout.
func DefaultConfig(provider step.Provider) TestConfig {
	return TestConfig{
		Provider: provider,
		Timeout:  DefaultTimeout,
	}
}

// Drain reads stream to the end and returns every event and the final message.
func Drain(ctx context.Context, t *testing.T, stream step.AssistantStream) ([]step.AssistantEvent, *step.AssistantMessage, error) {
	t.Helper()
	var events []step.AssistantEvent
	for {
		ev, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err, "stream.Next")
		events = append(events, ev)
	}
	msg, err := stream.Result()
	return events, msg, err
}

// EventTypes returns the type of each event, in order.
func EventTypes(events []step.AssistantEvent) []step.AssistantEventType {
	out := make([]step.AssistantEventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// Text concatenates the text parts of msg.
func Text(msg *step.AssistantMessage) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range msg.Parts {
		if p, ok := part.(step.TextPart); ok {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// TestBasicTextGeneration checks a plain prompt streams text and ends in stop.
func TestBasicTextGeneration(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	req := step.Request{
		History: []step.Message{
			step.UserMessage{Parts: []step.Part{step.TextPart{Text: "Write a haiku"}}},
		},
	}

	stream, err := cfg.Provider.Stream(ctx, req)
	require.NoError(t, err)
	defer stream.Close()

	events, msg, err := Drain(ctx, t, stream)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NotEmpty(t, events)

	assert.Equal(t, step.EventStart, events[0].Type)
	assert.Equal(t, step.EventDone, events[len(events)-1].Type)

	var streamed strings.Builder
	for _, ev := range events {
		if ev.Type == step.EventTextDelta {
			streamed.WriteString(ev.Delta)
		}
	}
	assert.NotEmpty(t, streamed.String())
	assert.Equal(t, streamed.String(), Text(msg))

	if msg.Usage == nil {
		t.Log("warning: usage info not returned")
	} else {
		assert.NotZero(t, msg.Usage.OutputTokens)
	}

	t.Logf("response: %q", Text(msg))
}

type calculatorArgs struct {
	A float64 `json:"a" jsonschema:"description=First number"`
	B float64 `json:"b" jsonschema:"description=Second number"`
}

// calculatorTool adds two integers.
type calculatorTool struct{}

func (c calculatorTool) Spec() step.ToolSpec {
	spec, err := step.NewToolSpec[calculatorArgs]("add", "Add two numbers together")
	if err != nil {
		panic(err)
	}
	return spec
}

func (c calculatorTool) Execute(_ context.Context, call step.ToolCall) (step.ToolResult, error) {
	var args calculatorArgs
	if err := call.DecodeArgs(&args); err != nil {
		return step.ToolResult{CallID: call.CallID, IsError: true}, err
	}
	return step.ToolResult{
		CallID: call.CallID,
		Name:   call.Name,
		Parts:  []step.Part{step.TextPart{Text: strconv.FormatFloat(args.A+args.B, 'f', 2, 64)}},
	}, nil
}

// TestToolCalling checks the model emits well-formed calls with ids.
func TestToolCalling(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	tool := calculatorTool{}
	req := step.Request{
		SystemPrompt: "You are a helpful assistant. Use the add tool when asked to add numbers.",
		History: []step.Message{
			step.UserMessage{Parts: []step.Part{step.TextPart{Text: "What is 123 + 456 and 444+888, use calculator pls?"}}},
		},
		Tools: []step.ToolSpec{tool.Spec()},
	}

	stream, err := cfg.Provider.Stream(ctx, req)
	require.NoError(t, err)
	defer stream.Close()

	events, msg, err := Drain(ctx, t, stream)
	require.NoError(t, err)
	require.NotNil(t, msg)

	var ended int
	for _, ev := range events {
		if ev.Type == step.EventToolCallEnd {
			require.NotNil(t, ev.ToolCall)
			ended++
		}
	}

	calls := msg.ToolCalls()
	require.NotEmpty(t, calls, "expected at least one tool call")
	assert.Equal(t, len(calls), ended)
	assert.Equal(t, step.StopToolUse, msg.StopReason)
	assert.Equal(t, "add", calls[0].Name)
	for _, call := range calls {
		assert.NotEmpty(t, call.CallID)
	}
	t.Logf("tool calls: %d, first call: %s(%s)", len(calls), calls[0].Name, calls[0].ArgsJSON())
}

// TestSystemPrompt checks the system instruction shapes the reply.
func TestSystemPrompt(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	req := step.Request{
		SystemPrompt: "You are a pirate. Always respond like a pirate. Use 'Arrr' in your response.",
		History: []step.Message{
			step.UserMessage{Parts: []step.Part{step.TextPart{Text: "Hello, how are you?"}}},
		},
	}

	stream, err := cfg.Provider.Stream(ctx, req)
	require.NoError(t, err)
	defer stream.Close()

	_, msg, err := Drain(ctx, t, stream)
	require.NoError(t, err)

	text := strings.ToLower(Text(msg))
	if !strings.Contains(text, "arrr") && !strings.Contains(text, "ahoy") && !strings.Contains(text, "matey") {
		t.Errorf("expected pirate-like response, got: %s", Text(msg))
	}

	t.Logf("response: %s", Text(msg))
}

// TestMultiTurn checks earlier turns are visible to the model.
func TestMultiTurn(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	req := step.Request{
		History: []step.Message{
			step.UserMessage{Parts: []step.Part{step.TextPart{Text: "My name is Alice."}}},
			step.AssistantMessage{Parts: []step.Part{step.TextPart{Text: "Hello Alice! Nice to meet you."}}},
			step.UserMessage{Parts: []step.Part{step.TextPart{Text: "What is my name?"}}},
		},
	}

	stream, err := cfg.Provider.Stream(ctx, req)
	require.NoError(t, err)
	defer stream.Close()

	_, msg, err := Drain(ctx, t, stream)
	require.NoError(t, err)

	text := Text(msg)
	assert.Contains(t, strings.ToLower(text), "alice")
	t.Logf("response: %s", text)
}

// TestToolRoundTrip runs a full tool call turn and sends the result back.
func TestToolRoundTrip(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	history := []step.Message{
		step.UserMessage{Parts: []step.Part{step.TextPart{Text: "Use the add tool to compute 2 + 3, then tell me the result."}}},
	}
	res, err := step.Step(ctx, step.StepRequest{
		Provider: cfg.Provider,
		History:  history,
		Tools:    []step.Tool{calculatorTool{}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ToolResults)
	for i, call := range res.ToolCalls {
		assert.Equal(t, call.CallID, res.ToolResults[i].CallID)
	}

	history = append(history, res.NewMessages...)
	res, err = step.Step(ctx, step.StepRequest{
		Provider: cfg.Provider,
		History:  history,
		Tools:    []step.Tool{calculatorTool{}},
	})
	require.NoError(t, err)
	assert.Contains(t, Text(&res.Assistant), "5")
}

// FakeProvider replays scripted assistant turns, one per Stream call.
type FakeProvider struct {
	// Turns are consumed in order. Only the Parts and StopReason are used.
	Turns []step.AssistantMessage
	// Hold, when non-nil, is awaited (or the context) before each terminal
	// event.
	Hold chan struct{}

	mu       sync.Mutex
	next     int
	requests []step.Request
}

var _ step.Provider = (*FakeProvider)(nil)

// Requests returns every request received so far.
func (f *FakeProvider) Requests() []step.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]step.Request(nil), f.requests...)
}

func (f *FakeProvider) Stream(ctx context.Context, req step.Request) (step.AssistantStream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if f.next >= len(f.Turns) {
		f.mu.Unlock()
		return nil, errors.New("testutil: no scripted turn left")
	}
	turn := f.Turns[f.next]
	f.next++
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s := step.NewEventStream(cancel)
	go f.play(ctx, turn, s)
	return s, nil
}

func (f *FakeProvider) play(ctx context.Context, turn step.AssistantMessage, s *step.EventStream) {
	out := &step.AssistantMessage{Provider: "fake", Model: "fake", Timestamp: time.Now().UnixMilli()}
	push := func(ev step.AssistantEvent) {
		ev.Partial = out.Snapshot()
		s.Push(ev)
	}

	var err error
	defer func() {
		if err != nil {
			out.StopReason = step.StopAborted
			out.ErrorMessage = err.Error()
		}
		ev := step.AssistantEvent{Type: step.EventDone, Reason: out.StopReason}
		if out.StopReason == step.StopError || out.StopReason == step.StopAborted {
			ev = step.AssistantEvent{Type: step.EventError, Reason: out.StopReason, Err: out.ErrorMessage}
		}
		push(ev)
		s.End(out.Snapshot(), err)
	}()

	push(step.AssistantEvent{Type: step.EventStart})
	for _, part := range turn.Parts {
		out.Parts = append(out.Parts, part)
		idx := len(out.Parts) - 1
		switch p := part.(type) {
		case step.TextPart:
			push(step.AssistantEvent{Type: step.EventTextStart, PartIndex: idx})
			push(step.AssistantEvent{Type: step.EventTextDelta, PartIndex: idx, Delta: p.Text})
			push(step.AssistantEvent{Type: step.EventTextEnd, PartIndex: idx, Delta: p.Text})
		case step.ThinkingPart:
			push(step.AssistantEvent{Type: step.EventThinkingStart, PartIndex: idx})
			push(step.AssistantEvent{Type: step.EventThinkingDelta, PartIndex: idx, Delta: p.Thinking})
			push(step.AssistantEvent{Type: step.EventThinkingEnd, PartIndex: idx, Delta: p.Thinking})
		case step.ToolCallPart:
			push(step.AssistantEvent{Type: step.EventToolCallStart, PartIndex: idx})
			push(step.AssistantEvent{Type: step.EventToolCallDelta, PartIndex: idx, Delta: string(p.ArgsJSON())})
			push(step.AssistantEvent{Type: step.EventToolCallEnd, PartIndex: idx, ToolCall: &p})
		}
	}

	out.StopReason = turn.StopReason
	out.ErrorMessage = turn.ErrorMessage
	if out.StopReason == "" {
		out.StopReason = step.StopStop
		if len(out.ToolCalls()) > 0 {
			out.StopReason = step.StopToolUse
		}
	}

	if f.Hold != nil {
		select {
		case <-f.Hold:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
}
