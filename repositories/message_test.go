package repositories

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chat-relay/domain"
	apperrors "chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(content string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Author:    "alice",
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func Test_Put_And_Get_Roundtrip(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	message := testMessage("this message will self destruct in 5 seconds")
	req.NoError(repository.Put(message))

	fetched, err := repository.Get(message.ID)
	req.NoError(err)
	req.Equal(message.ID, fetched.ID)
	req.Equal(message.Author, fetched.Author)
	req.Equal(message.Content, fetched.Content)
	req.True(message.CreatedAt.Equal(fetched.CreatedAt))
}

func Test_Get_Absent_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repository.Get(uuid.New())
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func Test_Put_Duplicate_Id(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	message := testMessage("first")
	req.NoError(repository.Put(message))

	duplicate := message
	duplicate.Content = "second"
	req.ErrorIs(repository.Put(duplicate), apperrors.ErrConflict)

	// The original record is untouched.
	fetched, err := repository.Get(message.ID)
	req.NoError(err)
	req.Equal("first", fetched.Content)
}

func Test_Update_Sets_Content_And_EditedAt(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	message := testMessage("hello")
	req.NoError(repository.Put(message))

	updated, err := repository.Update(message.ID, func(m *domain.Message) error {
		now := time.Now().UTC()
		m.Content = "hello world"
		m.EditedAt = &now
		return nil
	})
	req.NoError(err)
	req.Equal("hello world", updated.Content)
	req.NotNil(updated.EditedAt)

	fetched, err := repository.Get(message.ID)
	req.NoError(err)
	req.Equal(updated.Content, fetched.Content)
}

func Test_Update_Absent_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repository.Update(uuid.New(), func(m *domain.Message) error {
		m.Content = "never stored"
		return nil
	})
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func Test_Tombstone_Hides_And_Blocks_Edits(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	message := testMessage("to be deleted")
	req.NoError(repository.Put(message))
	req.NoError(repository.Tombstone(message.ID))

	_, err := repository.Get(message.ID)
	req.ErrorIs(err, apperrors.ErrNotFound)

	// Second delete is NotFound, not success.
	req.ErrorIs(repository.Tombstone(message.ID), apperrors.ErrNotFound)

	// A tombstoned message is never editable again.
	_, err = repository.Update(message.ID, func(m *domain.Message) error {
		m.Content = "resurrected"
		return nil
	})
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func Test_ForEach_Skips_Tombstones(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	kept := testMessage("kept")
	deleted := testMessage("gone")
	req.NoError(repository.Put(kept))
	req.NoError(repository.Put(deleted))
	req.NoError(repository.Tombstone(deleted.ID))

	var seen []uuid.UUID
	req.NoError(repository.ForEach(func(m domain.Message) error {
		seen = append(seen, m.ID)
		return nil
	}))
	req.Equal([]uuid.UUID{kept.ID}, seen)

	// The scan is restartable: a second pass yields the same set.
	var again []uuid.UUID
	req.NoError(repository.ForEach(func(m domain.Message) error {
		again = append(again, m.ID)
		return nil
	}))
	req.Equal(seen, again)
}

func Test_Concurrent_Updates_Are_Not_Lost(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	message := testMessage("0")
	req.NoError(repository.Put(message))

	const writers = 2
	const increments = 10

	// Under contention an update may exhaust its conflict retries and fail;
	// what must never happen is a success that does not land. The final value
	// therefore equals the number of successful increments exactly.
	var successes atomic.Int32
	errs := make(chan error, writers*increments)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				_, err := repository.Update(message.ID, func(m *domain.Message) error {
					n, err := strconv.Atoi(m.Content)
					if err != nil {
						return err
					}
					m.Content = strconv.Itoa(n + 1)
					return nil
				})
				if err == nil {
					successes.Add(1)
				} else {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.ErrorIs(err, apperrors.ErrStoreUnavailable)
	}
	req.Positive(successes.Load())

	fetched, err := repository.Get(message.ID)
	req.NoError(err)
	req.Equal(fmt.Sprintf("%d", successes.Load()), fetched.Content)
}
