package google

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stepkit/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []step.AssistantEvent
}

func (r *recorder) emit(ev step.AssistantEvent) { r.events = append(r.events, ev) }

func (r *recorder) types() []step.AssistantEventType {
	out := make([]step.AssistantEventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newTestAssembler(cost step.CostFunc) (*assembler, *recorder, *step.AssistantMessage) {
	out := &step.AssistantMessage{Provider: ProviderName, Model: "gemini-2.5-flash"}
	rec := &recorder{}
	return newAssembler(out, cost, rec.emit, zerolog.Nop()), rec, out
}

func chunk(t *testing.T, raw string) GenerateContentResponse {
	t.Helper()
	var resp GenerateContentResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return resp
}

// run feeds raw chunks through a fresh assembler and appends the terminal event.
func run(t *testing.T, raws ...string) (*recorder, *step.AssistantMessage) {
	t.Helper()
	asm, rec, out := newTestAssembler(nil)
	asm.start()
	for _, raw := range raws {
		asm.handle(chunk(t, raw))
	}
	asm.finish()
	rec.emit(asm.terminal())
	return rec, out
}

func TestAssembler_SynthesizesMissingCallID(t *testing.T) {
	rec, out := run(t,
		`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"location":"NYC"}}}]}}]}`,
	)

	var end *step.AssistantEvent
	for i := range rec.events {
		if rec.events[i].Type == step.EventToolCallEnd {
			end = &rec.events[i]
		}
	}
	require.NotNil(t, end)
	require.NotNil(t, end.ToolCall)
	assert.Regexp(t, `^get_weather_\d+_\d+$`, end.ToolCall.CallID)
	assert.Equal(t, map[string]any{"location": "NYC"}, end.ToolCall.Arguments)
	assert.Equal(t, step.StopToolUse, out.StopReason)
}

func TestAssembler_TextThenToolCall(t *testing.T) {
	rec, out := run(t,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hi"}]}}]}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"get_weather","args":{"location":"NYC"}}}]}}]}`,
		`{"candidates":[{"finishReason":"STOP"}]}`,
	)

	assert.Equal(t, []step.AssistantEventType{
		step.EventStart,
		step.EventTextStart, step.EventTextDelta, step.EventTextEnd,
		step.EventToolCallStart, step.EventToolCallDelta, step.EventToolCallEnd,
		step.EventDone,
	}, rec.types())

	done := rec.events[len(rec.events)-1]
	assert.Equal(t, step.StopToolUse, done.Reason)
	assert.Equal(t, step.StopToolUse, out.StopReason)

	assert.Equal(t, "Hi", rec.events[3].Delta, "text_end carries the block content")
	assert.JSONEq(t, `{"location":"NYC"}`, rec.events[5].Delta)
	assert.Equal(t, 1, rec.events[4].PartIndex)
}

func TestAssembler_MarkerIDRestored(t *testing.T) {
	_, out := run(t,
		`{"candidates":[{"content":{"parts":[{"functionCall":{"id":"srv","name":"f","args":{"__step_call_id":"call_123","a":1}}}]}}]}`,
	)
	calls := out.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_123", calls[0].CallID)
	assert.Equal(t, map[string]any{"a": float64(1)}, calls[0].Arguments)
}

func TestAssembler_SingleOpenBlock(t *testing.T) {
	rec, out := run(t,
		`{"candidates":[{"content":{"parts":[{"text":"plan","thought":true},{"text":" more","thought":true}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"answer "}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"again","thought":true}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"x"},{"functionCall":{"name":"f"}},{"text":"y"}]}}]}`,
	)

	open := 0
	starts, ends := 0, 0
	for _, ev := range rec.events {
		switch ev.Type {
		case step.EventTextStart, step.EventThinkingStart:
			open++
			starts++
			require.Equal(t, 1, open, "two blocks open at once")
		case step.EventTextEnd, step.EventThinkingEnd:
			open--
			ends++
			require.Equal(t, 0, open)
		case step.EventToolCallStart:
			require.Equal(t, 0, open, "tool call inside an open block")
		}
	}
	assert.Equal(t, 0, open)
	assert.Equal(t, 5, starts)
	assert.Equal(t, starts, ends)

	require.Len(t, out.Parts, 6)
	assert.Equal(t, "plan more", out.Parts[0].(step.ThinkingPart).Thinking)
	assert.Equal(t, "answer ", out.Parts[1].(step.TextPart).Text)
	assert.Equal(t, "again", out.Parts[2].(step.ThinkingPart).Thinking)
	assert.Equal(t, "x", out.Parts[3].(step.TextPart).Text)
	assert.IsType(t, step.ToolCallPart{}, out.Parts[4])
	assert.Equal(t, "y", out.Parts[5].(step.TextPart).Text)
}

func TestAssembler_SignaturesAttachToBlocks(t *testing.T) {
	_, out := run(t,
		`{"candidates":[{"content":{"parts":[{"text":"think","thought":true}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"","thought":true,"thoughtSignature":"t-sig"}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"done","thoughtSignature":"x-sig"}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"f"},"thoughtSignature":"c-sig"}]}}]}`,
	)

	require.Len(t, out.Parts, 3)
	thinking := out.Parts[0].(step.ThinkingPart)
	assert.Equal(t, "t-sig", thinking.Signature)
	assert.Equal(t, "gemini-2.5-flash", thinking.ModelName)
	assert.Equal(t, "x-sig", out.Parts[1].(step.TextPart).Signature)
	assert.Equal(t, "c-sig", out.Parts[2].(step.ToolCallPart).Signature)
}

func TestAssembler_SnapshotsAreImmutable(t *testing.T) {
	rec, _ := run(t,
		`{"candidates":[{"content":{"parts":[{"text":"a"}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"b"}]}}]}`,
	)

	var texts []string
	for _, ev := range rec.events {
		if ev.Type == step.EventTextDelta {
			texts = append(texts, ev.Partial.Parts[ev.PartIndex].(step.TextPart).Text)
		}
	}
	assert.Equal(t, []string{"a", "ab"}, texts)
}

func TestAssembler_FinishReasons(t *testing.T) {
	tests := []struct {
		reason  string
		want    step.StopReason
		event   step.AssistantEventType
		errText string
	}{
		{"STOP", step.StopStop, step.EventDone, ""},
		{"MAX_TOKENS", step.StopLength, step.EventDone, ""},
		{"SAFETY", step.StopError, step.EventError, "SAFETY"},
		{"RECITATION", step.StopError, step.EventError, "RECITATION"},
		{"OTHER", step.StopStop, step.EventDone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			rec, out := run(t,
				`{"candidates":[{"content":{"parts":[{"text":"x"}]},"finishReason":"`+tt.reason+`"}]}`,
			)
			assert.Equal(t, tt.want, out.StopReason)
			last := rec.events[len(rec.events)-1]
			assert.Equal(t, tt.event, last.Type)
			assert.Equal(t, tt.want, last.Reason)
			if tt.errText != "" {
				assert.Contains(t, last.Err, tt.errText)
			}
		})
	}
}

func TestAssembler_NoFinishReasonDefaultsToStop(t *testing.T) {
	_, out := run(t, `{"candidates":[{"content":{"parts":[{"text":"x"}]}}]}`)
	assert.Equal(t, step.StopStop, out.StopReason)
}

func TestAssembler_PromptBlocked(t *testing.T) {
	rec, out := run(t, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	assert.Equal(t, step.StopError, out.StopReason)
	assert.Equal(t, "prompt blocked: SAFETY", out.ErrorMessage)
	assert.Equal(t, []step.AssistantEventType{step.EventStart, step.EventError}, rec.types())
}

func TestAssembler_UsageOverwritten(t *testing.T) {
	var priced []step.Usage
	cost := func(model string, u step.Usage) step.Cost {
		assert.Equal(t, "gemini-2.5-flash", model)
		priced = append(priced, u)
		return step.Cost{Total: float64(u.TotalTokens)}
	}
	asm, _, out := newTestAssembler(cost)
	asm.handle(chunk(t, `{"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":1,"totalTokenCount":11}}`))
	asm.handle(chunk(t, `{"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":4,"totalTokenCount":20,"cachedContentTokenCount":6,"thoughtsTokenCount":6}}`))

	require.NotNil(t, out.Usage)
	assert.Equal(t, step.Usage{
		InputTokens:      4,
		OutputTokens:     10,
		CachedReadTokens: 6,
		ThinkingTokens:   6,
		TotalTokens:      20,
		Cost:             step.Cost{Total: 20},
	}, *out.Usage)
	assert.Len(t, priced, 2)
}

func TestAssembler_FailClosesOpenBlock(t *testing.T) {
	asm, rec, out := newTestAssembler(nil)
	asm.start()
	asm.handle(chunk(t, `{"candidates":[{"content":{"parts":[{"text":"partial"}]}}]}`))
	asm.fail(step.StopAborted, "request aborted")
	rec.emit(asm.terminal())

	assert.Equal(t, []step.AssistantEventType{
		step.EventStart, step.EventTextStart, step.EventTextDelta, step.EventTextEnd, step.EventError,
	}, rec.types())
	assert.Equal(t, step.StopAborted, rec.events[4].Reason)
	assert.Equal(t, "partial", out.Parts[0].(step.TextPart).Text)
}

func TestAssembler_IgnoresUnknownParts(t *testing.T) {
	rec, out := run(t,
		`{"candidates":[{"content":{"parts":[{"executableCode":{"code":"1"}},{"inlineData":{"mimeType":"image/png","data":"AA"}},{"text":"ok"}]}}]}`,
	)
	require.Len(t, out.Parts, 1)
	assert.Equal(t, step.EventDone, rec.events[len(rec.events)-1].Type)
}
