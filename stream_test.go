package step

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStream_DeliversInOrderThenEOF(t *testing.T) {
	s := NewEventStream(nil)
	final := &AssistantMessage{StopReason: StopStop}

	go func() {
		s.Push(AssistantEvent{Type: EventStart})
		s.Push(AssistantEvent{Type: EventTextDelta, Delta: "hi"})
		s.Push(AssistantEvent{Type: EventDone, Reason: StopStop})
		s.End(final, nil)
	}()

	ctx := context.Background()
	var types []AssistantEventType
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []AssistantEventType{EventStart, EventTextDelta, EventDone}, types)

	msg, err := s.Result()
	require.NoError(t, err)
	assert.Same(t, final, msg)

	// EOF is sticky.
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventStream_EndOnlyOnce(t *testing.T) {
	s := NewEventStream(nil)
	first := &AssistantMessage{StopReason: StopStop}
	s.End(first, nil)
	s.End(&AssistantMessage{StopReason: StopError}, errors.New("late"))

	msg, err := s.Result()
	assert.NoError(t, err)
	assert.Same(t, first, msg)
}

func TestEventStream_CloseUnblocksProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewEventStream(cancel)

	stopped := make(chan struct{})
	go func() {
		// Never read: the producer fills the buffer and blocks.
		for s.Push(AssistantEvent{Type: EventTextDelta}) {
		}
		<-ctx.Done()
		s.End(&AssistantMessage{StopReason: StopAborted}, ctx.Err())
		close(stopped)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("producer still blocked after Close")
	}

	msg, err := s.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopAborted, msg.StopReason)
	assert.False(t, s.Push(AssistantEvent{Type: EventDone}))
}

func TestEventStream_NextHonorsContext(t *testing.T) {
	s := NewEventStream(nil)
	defer s.End(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssistantMessage_Snapshot(t *testing.T) {
	m := &AssistantMessage{
		Parts: []Part{TextPart{Text: "a"}},
		Usage: &Usage{InputTokens: 1},
	}
	snap := m.Snapshot()

	m.Parts[0] = TextPart{Text: "changed"}
	m.Parts = append(m.Parts, TextPart{Text: "b"})
	m.Usage.InputTokens = 99

	assert.Equal(t, []Part{TextPart{Text: "a"}}, snap.Parts)
	assert.Equal(t, 1, snap.Usage.InputTokens)
}

func TestUnmarshalMessage_AssistantWithToolCall(t *testing.T) {
	orig := AssistantMessage{
		Provider: "google",
		Model:    "gemini-2.5-flash",
		Parts: []Part{
			ThinkingPart{Thinking: "hmm", Signature: "sig", ModelName: "gemini-2.5-flash"},
			ToolCallPart{CallID: "c1", Name: "get_weather", Arguments: map[string]any{"location": "NYC"}},
		},
		StopReason: StopToolUse,
		Usage:      &Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7},
	}

	b, err := orig.MarshalJSON()
	require.NoError(t, err)

	msg, err := UnmarshalMessage(b)
	require.NoError(t, err)
	got, ok := msg.(AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, orig, got)
}

func TestUnmarshalMessage_UnknownRole(t *testing.T) {
	_, err := UnmarshalMessage([]byte(`{"role":"system"}`))
	assert.Error(t, err)
}

func TestPerMillion(t *testing.T) {
	cost := PerMillion(1.25, 10, 0.3)("gemini-2.5-pro", Usage{
		InputTokens:      1_000_000,
		OutputTokens:     500_000,
		CachedReadTokens: 2_000_000,
	})
	assert.InDelta(t, 1.25, cost.Input, 1e-9)
	assert.InDelta(t, 5.0, cost.Output, 1e-9)
	assert.InDelta(t, 0.6, cost.CacheRead, 1e-9)
	assert.InDelta(t, 6.85, cost.Total, 1e-9)
}

func TestToolCallPart_ArgsJSON(t *testing.T) {
	assert.JSONEq(t, `{}`, string(ToolCallPart{}.ArgsJSON()))
	assert.JSONEq(t, `{"a":1}`, string(ToolCallPart{Arguments: map[string]any{"a": 1}}.ArgsJSON()))
}
