package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-relay/domain/event"
	"chat-relay/observability"
)

// ErrSinkClosed tells the fan-out loop this connection is gone and the
// registration should be pruned.
var ErrSinkClosed = fmt.Errorf("sink closed")

// ChannelSink bridges the fan-out loop to one connection's writer. Events
// land in a buffered channel the connection drains at its own pace; when the
// buffer is full the event is dropped for this connection only. The
// publisher is never blocked.
type ChannelSink struct {
	Events  chan event.ChangeEvent
	done    chan struct{}
	once    sync.Once
	log     *slog.Logger
	monitor *observability.Monitor
}

func NewChannelSink(log *slog.Logger, monitor *observability.Monitor, bufferSize int) *ChannelSink {
	return &ChannelSink{
		Events:  make(chan event.ChangeEvent, bufferSize),
		done:    make(chan struct{}),
		log:     log,
		monitor: monitor,
	}
}

// Consume is called by the fan-out loop. An error here only ever means
// "prune me"; it is never surfaced to the mutator.
func (s *ChannelSink) Consume(ctx context.Context, e event.ChangeEvent) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.Events <- e:
		return nil
	default:
		// Slow consumer: drop rather than block the pipeline.
		s.monitor.IncrEventsDropped()
		s.log.Debug("subscriber buffer full, event dropped", "kind", e.Kind())
		return nil
	}
}

// Close marks the sink dead. Idempotent; in-flight Consume calls fail
// silently afterwards and drive pruning.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.done) })
}
