package step

import "context"

// Request is the provider-agnostic generation input.
type Request struct {
	SystemPrompt string
	History      []Message
	Tools        []ToolSpec
}

// AssistantStream streams assistant events.
//
// Next returns io.EOF once the terminal event (done or error) has been
// delivered. Result blocks until the stream has ended.
type AssistantStream interface {
	Next(ctx context.Context) (AssistantEvent, error)
	Result() (*AssistantMessage, error)
	Close() error
}

// Provider is the unified interface implemented by providers.
type Provider interface {
	Stream(ctx context.Context, req Request) (AssistantStream, error)
}
