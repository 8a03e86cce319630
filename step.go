package step

import (
	"context"
	"errors"
	"io"
)

// StepRequest is the input to one turn plus its tool round.
type StepRequest struct {
	Provider     Provider
	SystemPrompt string
	History      []Message
	Tools        []Tool
}

// StepResult holds the assistant turn, any tool results, and the
// messages to append to history.
type StepResult struct {
	Assistant   AssistantMessage
	ToolCalls   []ToolCall
	ToolResults []ToolResult
	NewMessages []Message
	Cancelled   bool
}

// Step runs StepStreamed to completion and returns its result.
func Step(ctx context.Context, req StepRequest) (StepResult, error) {
	stream, err := StepStreamed(ctx, req)
	if err != nil {
		return StepResult{}, err
	}
	defer stream.Close()

	for {
		_, err := stream.Next(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		return StepResult{}, err
	}

	res, err := stream.Result()
	if res == nil {
		return StepResult{}, err
	}
	return *res, err
}
