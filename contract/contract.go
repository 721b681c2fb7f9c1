//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself; the supervisor owns restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives change events fanned out by the broker. Consume must
// never block the caller beyond ctx; a returned error marks the sink dead
// and is a cue to prune, not a caller-visible failure.
type EventSink interface {
	Consume(ctx context.Context, e event.ChangeEvent) error
}

// Handle identifies one (connection, kind) registration.
type Handle struct {
	ID   uuid.UUID
	Kind event.Kind
}

// IBroker routes each change event to every sink currently subscribed to
// that event's kind.
type IBroker interface {
	Subscribe(kind event.Kind, sink EventSink) Handle
	Unsubscribe(handle Handle)
	Publish(ctx context.Context, e event.ChangeEvent) error
}
