package step

import (
	"context"
	"io"
	"sync"
)

// EventStream is an AssistantStream fed by a single producer goroutine.
//
// The producer calls Push for every event and End exactly once when it is
// finished; End must be the producer's last call. Consumers use Next,
// Result and Close.
type EventStream struct {
	events chan AssistantEvent
	done   chan struct{}
	closed chan struct{}
	cancel context.CancelFunc

	endOnce   sync.Once
	closeOnce sync.Once

	result *AssistantMessage
	err    error
}

var _ AssistantStream = (*EventStream)(nil)

// NewEventStream creates an EventStream. cancel, if non-nil, is invoked by
// Close to stop the producer.
func NewEventStream(cancel context.CancelFunc) *EventStream {
	return &EventStream{
		events: make(chan AssistantEvent, 16),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		cancel: cancel,
	}
}

// Push delivers ev to the consumer, blocking while the buffer is full.
// It reports false if the consumer has closed the stream.
func (s *EventStream) Push(ev AssistantEvent) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case <-s.closed:
		return false
	case s.events <- ev:
		return true
	}
}

// End freezes the final message and terminates the stream. Only the first
// call has any effect.
func (s *EventStream) End(final *AssistantMessage, err error) {
	s.endOnce.Do(func() {
		s.result = final
		s.err = err
		close(s.events)
		close(s.done)
	})
}

func (s *EventStream) Next(ctx context.Context) (AssistantEvent, error) {
	select {
	case <-ctx.Done():
		return AssistantEvent{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return AssistantEvent{}, io.EOF
		}
		return ev, nil
	}
}

func (s *EventStream) Result() (*AssistantMessage, error) {
	<-s.done
	return s.result, s.err
}

func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		close(s.closed)
	})
	<-s.done
	return nil
}
