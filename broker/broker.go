// Package broker routes change events to live subscriber connections.
// Delivery is at-most-once and best-effort: there is no backlog, no replay,
// and a subscriber registered after publish does not see the event.
package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"

	"github.com/google/uuid"
)

type registration struct {
	handle contract.Handle
	sink   contract.EventSink
}

// delivery pairs an event with the registry snapshot taken at publish time,
// so subscribers that register later never observe it.
type delivery struct {
	event event.ChangeEvent
	regs  []registration
}

// Broker owns the per-kind subscriber registry and the publish pipeline.
// Publish snapshots the registry and hands off to a buffered channel; the
// fan-out loop (Run) delivers, so a slow subscriber never delays a mutator.
type Broker struct {
	mu   sync.RWMutex
	subs map[event.Kind]map[uuid.UUID]contract.EventSink

	deliveries  chan delivery
	log         *slog.Logger
	monitor     *observability.Monitor
	sinkTimeout time.Duration
}

func NewBroker(log *slog.Logger, monitor *observability.Monitor,
	bufferSize int, sinkTimeout time.Duration) *Broker {
	return &Broker{
		subs:        make(map[event.Kind]map[uuid.UUID]contract.EventSink),
		deliveries:  make(chan delivery, bufferSize),
		log:         log,
		monitor:     monitor,
		sinkTimeout: sinkTimeout,
	}
}

// Subscribe registers sink as a listener for kind and returns the handle
// used to revoke it.
func (b *Broker) Subscribe(kind event.Kind, sink contract.EventSink) contract.Handle {
	handle := contract.Handle{ID: uuid.New(), Kind: kind}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[kind]; !ok {
		b.subs[kind] = make(map[uuid.UUID]contract.EventSink)
	}
	b.subs[kind][handle.ID] = sink

	b.monitor.AddSubscriptions(1)
	b.log.Debug("subscriber registered", "kind", kind, "handle", handle.ID)
	return handle
}

// Unsubscribe removes the registration. Idempotent: revoking an unknown or
// already-revoked handle is a no-op, so it is safe after a connection has
// closed on its own.
func (b *Broker) Unsubscribe(handle contract.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sinks, ok := b.subs[handle.Kind]
	if !ok {
		return
	}
	if _, ok := sinks[handle.ID]; !ok {
		return
	}
	delete(sinks, handle.ID)
	if len(sinks) == 0 {
		delete(b.subs, handle.Kind)
	}

	b.monitor.AddSubscriptions(-1)
	b.log.Debug("subscriber removed", "kind", handle.Kind, "handle", handle.ID)
}

// Publish snapshots the subscribers registered for the event's kind right
// now and hands the pair to the fan-out pipeline. It blocks only on the
// channel handoff (bounded by ctx), never on subscriber delivery.
func (b *Broker) Publish(ctx context.Context, e event.ChangeEvent) error {
	d := delivery{event: e, regs: b.snapshot(e.Kind())}
	select {
	case b.deliveries <- d:
		b.monitor.IncrEventsPublished()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the publish channel and fans each event out. Deliveries happen
// in publish order, so each subscriber observes events in the order they
// were published; no ordering is promised across subscribers.
func (b *Broker) Run(ctx context.Context) error {
	for {
		select {
		case d := <-b.deliveries:
			b.fanout(ctx, d)
		case <-ctx.Done():
			b.log.Debug("context done, stopping fan-out")
			return nil
		}
	}
}

// fanout delivers one event to its publish-time snapshot. A failed sink is
// pruned, never reported upstream.
func (b *Broker) fanout(ctx context.Context, d delivery) {
	for _, reg := range d.regs {
		sinkCtx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
		err := reg.sink.Consume(sinkCtx, d.event)
		cancel()

		if err != nil {
			b.log.Debug("pruning dead subscriber",
				"kind", d.event.Kind(), "handle", reg.handle.ID, "error", err)
			b.Unsubscribe(reg.handle)
			b.monitor.IncrSinksPruned()
			continue
		}
		b.monitor.IncrEventsDelivered()
	}
}

// snapshot copies the current registrations for kind so that delivery
// iterates without holding the lock against subscribe/unsubscribe.
func (b *Broker) snapshot(kind event.Kind) []registration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sinks, ok := b.subs[kind]
	if !ok {
		return nil
	}
	regs := make([]registration, 0, len(sinks))
	for id, sink := range sinks {
		regs = append(regs, registration{
			handle: contract.Handle{ID: id, Kind: kind},
			sink:   sink,
		})
	}
	return regs
}
