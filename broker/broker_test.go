package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// captureSink records every event it is handed, in order.
type captureSink struct {
	mu     sync.Mutex
	events []event.ChangeEvent
	fail   error
}

func (s *captureSink) Consume(_ context.Context, e event.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) received() []event.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.ChangeEvent(nil), s.events...)
}

func startBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker(slog.Default(), observability.NewMonitor(slog.Default()), 16, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Run(ctx) }()
	return b
}

func createdEvent() event.MessageCreated {
	return event.MessageCreated{Message: domain.Message{
		ID:        uuid.New(),
		Author:    "alice",
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}}
}

func Test_Subscriber_Receives_Exactly_One_Event(t *testing.T) {
	req := require.New(t)
	b := startBroker(t)

	sink := &captureSink{}
	b.Subscribe(event.KindCreated, sink)

	e := createdEvent()
	req.NoError(b.Publish(context.Background(), e))

	req.Eventually(func() bool {
		return len(sink.received()) == 1
	}, time.Second, 10*time.Millisecond)

	// No duplicate delivery shows up later.
	time.Sleep(50 * time.Millisecond)
	events := sink.received()
	req.Len(events, 1)
	req.Equal(e.MessageID(), events[0].MessageID())
}

func Test_Subscriber_Only_Gets_Its_Kind(t *testing.T) {
	req := require.New(t)
	b := startBroker(t)

	created := &captureSink{}
	deleted := &captureSink{}
	b.Subscribe(event.KindCreated, created)
	b.Subscribe(event.KindDeleted, deleted)

	req.NoError(b.Publish(context.Background(), createdEvent()))

	req.Eventually(func() bool {
		return len(created.received()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Empty(deleted.received())
}

func Test_Late_Subscriber_Gets_Nothing(t *testing.T) {
	req := require.New(t)
	b := startBroker(t)

	early := &captureSink{}
	b.Subscribe(event.KindCreated, early)

	// Snapshot is taken at publish time, before the late subscriber exists.
	req.NoError(b.Publish(context.Background(), createdEvent()))

	late := &captureSink{}
	b.Subscribe(event.KindCreated, late)

	req.Eventually(func() bool {
		return len(early.received()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Empty(late.received())
}

func Test_Unsubscribe_Stops_Delivery_And_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	b := startBroker(t)

	sink := &captureSink{}
	handle := b.Subscribe(event.KindCreated, sink)

	b.Unsubscribe(handle)
	b.Unsubscribe(handle)
	b.Unsubscribe(contract.Handle{ID: uuid.New(), Kind: event.KindEdited})

	req.NoError(b.Publish(context.Background(), createdEvent()))
	time.Sleep(50 * time.Millisecond)
	req.Empty(sink.received())
}

func Test_Events_Arrive_In_Publish_Order(t *testing.T) {
	req := require.New(t)
	b := startBroker(t)

	sink := &captureSink{}
	b.Subscribe(event.KindCreated, sink)

	var published []uuid.UUID
	for i := 0; i < 10; i++ {
		e := createdEvent()
		published = append(published, e.MessageID())
		req.NoError(b.Publish(context.Background(), e))
	}

	req.Eventually(func() bool {
		return len(sink.received()) == len(published)
	}, time.Second, 10*time.Millisecond)

	for i, e := range sink.received() {
		req.Equal(published[i], e.MessageID())
	}
}

func Test_Failing_Sink_Is_Pruned(t *testing.T) {
	req := require.New(t)
	b := startBroker(t)

	broken := &captureSink{fail: errors.New("connection reset")}
	healthy := &captureSink{}
	b.Subscribe(event.KindCreated, broken)
	b.Subscribe(event.KindCreated, healthy)

	req.NoError(b.Publish(context.Background(), createdEvent()))
	req.Eventually(func() bool {
		return len(healthy.received()) == 1
	}, time.Second, 10*time.Millisecond)

	// The broken sink was removed: the next event is snapshot without it.
	req.NoError(b.Publish(context.Background(), createdEvent()))
	req.Eventually(func() bool {
		return len(healthy.received()) == 2
	}, time.Second, 10*time.Millisecond)
	req.Empty(broken.received())
}

func Test_ChannelSink_Drops_When_Full(t *testing.T) {
	req := require.New(t)
	monitor := observability.NewMonitor(slog.Default())
	sink := NewChannelSink(slog.Default(), monitor, 1)

	// Nobody drains the channel: the first event fits, the rest are dropped
	// without blocking.
	for i := 0; i < 3; i++ {
		req.NoError(sink.Consume(context.Background(), createdEvent()))
	}
	req.Len(sink.Events, 1)
	req.Equal(uint64(2), monitor.Snapshot().EventsDropped)
}

func Test_ChannelSink_Closed_Reports_For_Pruning(t *testing.T) {
	req := require.New(t)
	sink := NewChannelSink(slog.Default(), observability.NewMonitor(slog.Default()), 1)

	sink.Close()
	sink.Close() // idempotent

	req.ErrorIs(sink.Consume(context.Background(), createdEvent()), ErrSinkClosed)
}
