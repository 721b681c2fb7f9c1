package services

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/google/uuid"
)

// Notifier turns mutation outcomes into change events and hands them to the
// broker. The handoff is synchronous (the mutation waits for it); delivery
// to subscribers is the broker's asynchronous concern.
type Notifier struct {
	broker contract.IBroker
}

func NewNotifier(broker contract.IBroker) *Notifier {
	return &Notifier{broker: broker}
}

func (n *Notifier) Created(ctx context.Context, message domain.Message) error {
	return n.broker.Publish(ctx, event.MessageCreated{Message: message})
}

func (n *Notifier) Edited(ctx context.Context, message domain.Message) error {
	return n.broker.Publish(ctx, event.MessageEdited{Message: message})
}

func (n *Notifier) Deleted(ctx context.Context, id uuid.UUID) error {
	return n.broker.Publish(ctx, event.MessageDeleted{ID: id})
}
