package step

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxParallelTools bounds how many Parallel tools run at once.
const maxParallelTools = 8

// toolSet indexes the step's tools by name.
type toolSet map[string]Tool

func newToolSet(tools []Tool) toolSet {
	ts := make(toolSet, len(tools))
	for _, t := range tools {
		ts[t.Spec().Name] = t
	}
	return ts
}

func (ts toolSet) parallel(name string) bool {
	t, ok := ts[name]
	return ok && t.Spec().Parallel
}

// executeTools answers every call, in call order. Serial tools run first,
// one at a time; Parallel tools then run concurrently. Calls not started
// before cancellation get an interrupted result.
func (s *stepStream) executeTools(calls []ToolCall, tools toolSet) ([]ToolResult, bool) {
	if len(calls) == 0 {
		return nil, false
	}

	results := make([]ToolResult, len(calls))
	var deferred []int
	for i, call := range calls {
		if tools.parallel(call.Name) {
			deferred = append(deferred, i)
			continue
		}
		if s.ctx.Err() != nil {
			results[i] = interruptedToolResult(call)
			continue
		}
		results[i] = s.executeTool(call, tools)
	}

	if len(deferred) > 0 {
		var g errgroup.Group
		g.SetLimit(maxParallelTools)
		for _, i := range deferred {
			i := i // per-iteration copy (Go 1.22 loop semantics on go1.21)
			g.Go(func() error {
				if s.ctx.Err() != nil {
					results[i] = interruptedToolResult(calls[i])
					return nil
				}
				results[i] = s.executeTool(calls[i], tools)
				return nil
			})
		}
		_ = g.Wait()
	}

	return results, s.ctx.Err() != nil
}

func (s *stepStream) executeTool(call ToolCall, tools toolSet) ToolResult {
	tool, ok := tools[call.Name]
	if !ok {
		s.addError(ErrToolNotFound)
		return toolNotFoundResult(call)
	}

	s.emit(StepEvent{Type: StepEventToolExecStart, ToolCall: &call})

	toolCtx, cancel := context.WithCancel(s.ctx)
	res, err := tool.Execute(toolCtx, call)
	cancel()
	if err != nil {
		res = errorToolResult(call, err)
	}
	// The result must answer the call it was produced for.
	res.CallID = call.CallID
	if res.Name == "" {
		res.Name = call.Name
	}

	s.emit(StepEvent{Type: StepEventToolExecEnd, ToolCall: &call, ToolResult: &res})
	return res
}

func collectToolSpecs(tools []Tool) []ToolSpec {
	specs := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

func toolCallsOf(msg AssistantMessage) []ToolCall {
	parts := msg.ToolCalls()
	calls := make([]ToolCall, 0, len(parts))
	for _, tc := range parts {
		calls = append(calls, ToolCall{CallID: tc.CallID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return calls
}

func failedToolResult(call ToolCall, text string) ToolResult {
	return ToolResult{
		CallID:  call.CallID,
		Name:    call.Name,
		IsError: true,
		Parts:   []Part{TextPart{Text: text}},
	}
}

func interruptedToolResult(call ToolCall) ToolResult {
	return failedToolResult(call, "user interrupted the tool call")
}

func toolNotFoundResult(call ToolCall) ToolResult {
	return failedToolResult(call, "tool not found")
}

func errorToolResult(call ToolCall, err error) ToolResult {
	return failedToolResult(call, err.Error())
}

// toolResultsToMessages turns results into history entries; each keeps the
// call id of the tool call it answers.
func toolResultsToMessages(results []ToolResult) []Message {
	msgs := make([]Message, 0, len(results))
	now := time.Now().UnixMilli()
	for _, res := range results {
		msgs = append(msgs, ToolResultMessage{
			CallID:    res.CallID,
			Name:      res.Name,
			IsError:   res.IsError,
			Parts:     res.Parts,
			Timestamp: now,
			Details:   res.Details,
		})
	}
	return msgs
}
