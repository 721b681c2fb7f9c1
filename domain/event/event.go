// Package event defines the transient change events fanned out to
// subscribers. Events are built after a mutation commits and are never
// persisted; delivery is at-most-once.
package event

import (
	"chat-relay/domain"

	"github.com/google/uuid"
)

// Kind discriminates the three change-notification kinds.
type Kind string

const (
	KindCreated Kind = "created"
	KindEdited  Kind = "edited"
	KindDeleted Kind = "deleted"
)

// ParseKind validates a client-supplied kind string.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindCreated, KindEdited, KindDeleted:
		return Kind(s), true
	default:
		return "", false
	}
}

// ChangeEvent is implemented by the three mutation notifications.
type ChangeEvent interface {
	Kind() Kind
	MessageID() uuid.UUID
}

// MessageCreated carries the full snapshot of a freshly stored message.
type MessageCreated struct {
	Message domain.Message
}

func (e MessageCreated) Kind() Kind           { return KindCreated }
func (e MessageCreated) MessageID() uuid.UUID { return e.Message.ID }

// MessageEdited carries the post-edit snapshot.
type MessageEdited struct {
	Message domain.Message
}

func (e MessageEdited) Kind() Kind           { return KindEdited }
func (e MessageEdited) MessageID() uuid.UUID { return e.Message.ID }

// MessageDeleted carries the identifier only; the snapshot is gone from the
// readable store by the time subscribers observe the event.
type MessageDeleted struct {
	ID uuid.UUID
}

func (e MessageDeleted) Kind() Kind           { return KindDeleted }
func (e MessageDeleted) MessageID() uuid.UUID { return e.ID }
