//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"

	"github.com/google/uuid"
)

// ISearcher is the query side of the content index.
type ISearcher interface {
	Search(ctx context.Context, terms string, limit int) ([]uuid.UUID, error)
}

type IChatService interface {
	SendMessage(ctx context.Context, principal domain.Principal, content string) (domain.Message, error)
	EditMessage(ctx context.Context, principal domain.Principal, id uuid.UUID, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, principal domain.Principal, id uuid.UUID) error
	GetMessages(ctx context.Context) ([]domain.Message, error)
	SearchMessages(ctx context.Context, terms string, limit int) ([]domain.Message, error)
}

// ChatService is the sole writer path. It validates and authorizes
// mutations, commits them to the store, and emits exactly one change event
// per successful mutation, after the commit and never for a failure.
type ChatService struct {
	repository repositories.IMessageRepository
	notifier   *Notifier
	moderator  *moderation.Moderator
	searcher   ISearcher
	monitor    *observability.Monitor
	log        *slog.Logger
	maxContent int
}

func NewChatService(
	log *slog.Logger,
	repository repositories.IMessageRepository,
	notifier *Notifier,
	moderator *moderation.Moderator,
	searcher ISearcher,
	monitor *observability.Monitor,
	maxContent int,
) *ChatService {
	return &ChatService{
		repository: repository,
		notifier:   notifier,
		moderator:  moderator,
		searcher:   searcher,
		monitor:    monitor,
		log:        log,
		maxContent: maxContent,
	}
}

// SendMessage stores a new message authored by the principal. The id and
// CreatedAt are server-minted; clients never supply them.
func (s *ChatService) SendMessage(ctx context.Context, principal domain.Principal, content string) (domain.Message, error) {
	if !principal.Valid() {
		return domain.Message{}, apperrors.ErrUnauthorized
	}
	if err := s.validateContent(content); err != nil {
		return domain.Message{}, err
	}

	masked := s.moderator.Mask(content)
	message := domain.Message{
		ID:        uuid.New(),
		Author:    principal.UserID,
		Content:   masked,
		Lang:      moderation.DetectLang(masked),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repository.Put(message); err != nil {
		return domain.Message{}, err
	}

	s.monitor.IncrMessagesSent()
	if err := s.notifier.Created(ctx, message); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// EditMessage replaces the content of a message the principal authored.
// EditedAt is stamped on every successful edit; the read-modify-write runs
// atomically in the store, so concurrent edits never produce a torn record.
func (s *ChatService) EditMessage(ctx context.Context, principal domain.Principal, id uuid.UUID, content string) (domain.Message, error) {
	if !principal.Valid() {
		return domain.Message{}, apperrors.ErrUnauthorized
	}
	if err := s.validateContent(content); err != nil {
		return domain.Message{}, err
	}

	masked := s.moderator.Mask(content)
	updated, err := s.repository.Update(id, func(message *domain.Message) error {
		if message.Author != principal.UserID {
			return fmt.Errorf("%w: not the author of %s", apperrors.ErrForbidden, id)
		}
		now := time.Now().UTC()
		message.Content = masked
		message.Lang = moderation.DetectLang(masked)
		message.EditedAt = &now
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	s.monitor.IncrMessagesEdited()
	if err := s.notifier.Edited(ctx, updated); err != nil {
		return domain.Message{}, err
	}
	return updated, nil
}

// DeleteMessage tombstones a message the principal authored. A second
// delete of the same id reports ErrNotFound rather than silent success, so
// clients can detect stale state.
func (s *ChatService) DeleteMessage(ctx context.Context, principal domain.Principal, id uuid.UUID) error {
	if !principal.Valid() {
		return apperrors.ErrUnauthorized
	}

	message, err := s.repository.Get(id)
	if err != nil {
		return err
	}
	if message.Author != principal.UserID {
		return fmt.Errorf("%w: not the author of %s", apperrors.ErrForbidden, id)
	}
	if err := s.repository.Tombstone(id); err != nil {
		return err
	}

	s.monitor.IncrMessagesDeleted()
	return s.notifier.Deleted(ctx, id)
}

// GetMessages returns all non-deleted messages in display order:
// (CreatedAt, ID) ascending, independent of insertion order.
func (s *ChatService) GetMessages(_ context.Context) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.repository.ForEach(func(message domain.Message) error {
		messages = append(messages, message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	domain.SortMessages(messages)
	return messages, nil
}

// SearchMessages resolves index hits against the store, dropping anything
// tombstoned since indexing. Results keep the index's relevance order.
func (s *ChatService) SearchMessages(ctx context.Context, terms string, limit int) ([]domain.Message, error) {
	ids, err := s.searcher.Search(ctx, terms, limit)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.repository.Get(id)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (s *ChatService) validateContent(content string) error {
	if content == "" {
		return fmt.Errorf("%w: empty content", apperrors.ErrValidation)
	}
	if length := utf8.RuneCountInString(content); length > s.maxContent {
		return fmt.Errorf("%w: content length %d exceeds %d",
			apperrors.ErrValidation, length, s.maxContent)
	}
	return nil
}
