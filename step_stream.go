package step

import (
	"context"
	"errors"
	"io"
	"sync"
)

// StepStream exposes streaming access to a single step.
type StepStream interface {
	Next(ctx context.Context) (StepEvent, error)
	Result() (*StepResult, error)
	Cancel()
	Close() error
}

type stepStream struct {
	ctx    context.Context
	cancel context.CancelFunc

	events chan StepEvent

	result    *StepResult
	resultErr error
	done      chan struct{}

	mu sync.Mutex
}

// StepStreamed runs a step and returns a stream of events.
func StepStreamed(parent context.Context, req StepRequest) (StepStream, error) {
	if req.Provider == nil {
		return nil, ErrNoProvider
	}

	ctx, cancel := context.WithCancel(parent)
	s := &stepStream{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan StepEvent, 16),
		done:   make(chan struct{}),
	}

	go s.run(req)
	return s, nil
}

func (s *stepStream) Next(ctx context.Context) (StepEvent, error) {
	select {
	case <-ctx.Done():
		return StepEvent{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return StepEvent{}, io.EOF
		}
		return ev, nil
	}
}

func (s *stepStream) Result() (*StepResult, error) {
	<-s.done
	return s.result, s.resultErr
}

func (s *stepStream) Cancel() {
	s.cancel()
}

func (s *stepStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *stepStream) run(req StepRequest) {
	defer close(s.events)
	defer close(s.done)
	defer s.cancel()

	s.emit(StepEvent{Type: StepEventStart})

	final, err := s.streamAssistant(req)
	if final == nil {
		s.finish(nil, err)
		return
	}

	result := &StepResult{
		Assistant:   *final,
		NewMessages: []Message{*final},
	}
	if err != nil || final.StopReason != StopToolUse {
		result.Cancelled = final.StopReason == StopAborted || s.ctx.Err() != nil
		s.finish(result, err)
		return
	}

	result.ToolCalls = toolCallsOf(*final)
	result.ToolResults, result.Cancelled = s.executeTools(result.ToolCalls, newToolSet(req.Tools))
	result.NewMessages = append(result.NewMessages, toolResultsToMessages(result.ToolResults)...)
	s.finish(result, nil)
}

// streamAssistant relays one assistant turn and returns its final message.
func (s *stepStream) streamAssistant(req StepRequest) (*AssistantMessage, error) {
	stream, err := req.Provider.Stream(s.ctx, Request{
		SystemPrompt: req.SystemPrompt,
		History:      req.History,
		Tools:        collectToolSpecs(req.Tools),
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	for {
		ev, err := stream.Next(s.ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Cancelled: stop the provider so it can publish its final message.
			_ = stream.Close()
			break
		}
		s.emit(StepEvent{Type: StepEventAssistant, Assistant: &ev})
	}
	return stream.Result()
}

func (s *stepStream) finish(res *StepResult, err error) {
	s.result = res
	s.addError(err)
	if res != nil {
		s.emitFinal(StepEvent{Type: StepEventEnd, Final: res})
	}
}

func (s *stepStream) emit(ev StepEvent) {
	select {
	case <-s.ctx.Done():
		return
	case s.events <- ev:
	}
}

// emitFinal waits for the consumer to take the end event. Once the step is
// cancelled it only delivers if the buffer has room, so Close never waits on
// a reader that has gone away.
func (s *stepStream) emitFinal(ev StepEvent) {
	select {
	case s.events <- ev:
		return
	case <-s.ctx.Done():
	}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *stepStream) addError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultErr == nil {
		s.resultErr = err
		return
	}
	s.resultErr = errors.Join(s.resultErr, err)
}
