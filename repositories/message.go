//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apperrors "chat-relay/errors"

	"chat-relay/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const keyPrefix = "msg:"

// updateRetries bounds retries of read-modify-write transactions aborted by
// Badger's SSI conflict detection under concurrent writers.
const updateRetries = 5

type IMessageRepository interface {
	Put(message domain.Message) error
	Get(id uuid.UUID) (domain.Message, error)
	ForEach(fn func(domain.Message) error) error
	Update(id uuid.UUID, mutate func(*domain.Message) error) (domain.Message, error)
	Tombstone(id uuid.UUID) error
}

// MessageRepository persists messages in BadgerDB, keyed by "msg:{uuid}".
// The store guarantees durability and primary-key uniqueness only; display
// ordering is the caller's concern.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

func messageKey(id uuid.UUID) []byte {
	return []byte(keyPrefix + id.String())
}

// Put inserts a new record. A pre-existing key yields ErrConflict: ids are
// minted by the gateway, so a duplicate means an invariant was broken.
func (m *MessageRepository) Put(message domain.Message) error {
	key := messageKey(message.ID)
	value, err := json.Marshal(message)
	if err != nil {
		return err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return apperrors.ErrConflict
		case errors.Is(err, badger.ErrKeyNotFound):
			return txn.Set(key, value)
		default:
			return err
		}
	})
	if errors.Is(err, apperrors.ErrConflict) {
		m.log.Error("duplicate message id on insert", "id", message.ID)
		return fmt.Errorf("%w: id %s", apperrors.ErrConflict, message.ID)
	}
	return wrapStoreErr(err)
}

// Get returns the record or ErrNotFound. Tombstoned records are never
// returned by reads.
func (m *MessageRepository) Get(id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &message)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, wrapStoreErr(err)
	}
	if message.Deleted {
		return domain.Message{}, apperrors.ErrNotFound
	}
	return message, nil
}

// ForEach streams every non-deleted message through fn in key order, which
// is NOT the display order. The scan is restartable: each call opens a fresh
// read transaction. Returning an error from fn stops the scan.
func (m *MessageRepository) ForEach(fn func(domain.Message) error) error {
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(keyPrefix)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var message domain.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			if message.Deleted {
				continue
			}
			if err := fn(message); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapStoreErr(err)
}

// Update atomically reads, applies mutate, and writes back inside a single
// transaction, so concurrent edits of the same message serialize instead of
// interleaving into a torn write. Absent and tombstoned records both yield
// ErrNotFound.
func (m *MessageRepository) Update(id uuid.UUID, mutate func(*domain.Message) error) (domain.Message, error) {
	key := messageKey(id)
	var updated domain.Message

	attempt := func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err != nil {
				return err
			}
			var message domain.Message
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			}); err != nil {
				return err
			}
			if message.Deleted {
				return apperrors.ErrNotFound
			}
			if err := mutate(&message); err != nil {
				return err
			}
			value, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err := txn.Set(key, value); err != nil {
				return err
			}
			updated = message
			return nil
		})
	}

	var err error
	for i := 0; i < updateRetries; i++ {
		err = attempt()
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		m.log.Debug("retrying conflicted update", "id", id, "attempt", i+1)
	}
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, badger.ErrKeyNotFound), errors.Is(err, apperrors.ErrNotFound):
		return domain.Message{}, apperrors.ErrNotFound
	case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrValidation):
		return domain.Message{}, err
	default:
		return domain.Message{}, wrapStoreErr(err)
	}
}

// Tombstone marks the record deleted. Deleting an absent or already-deleted
// message reports ErrNotFound so clients can detect stale state.
func (m *MessageRepository) Tombstone(id uuid.UUID) error {
	_, err := m.Update(id, func(message *domain.Message) error {
		message.Deleted = true
		return nil
	})
	return err
}

// wrapStoreErr marks unexpected storage failures as retryable for the
// caller; taxonomy errors pass through untouched.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict) ||
		errors.Is(err, apperrors.ErrForbidden) || errors.Is(err, apperrors.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
}
