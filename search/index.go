// Package search keeps a bluge full-text index of message content in sync
// with the store, fed by change events. The index is eventually consistent:
// lookups re-check hits against the store before returning them.
package search

import (
	"context"
	"log/slog"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

// Index is both an event sink (kept subscribed to all three kinds for the
// process lifetime) and the query side of message search.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Kinds lists the event kinds the index must stay subscribed to.
func (x *Index) Kinds() []event.Kind {
	return []event.Kind{event.KindCreated, event.KindEdited, event.KindDeleted}
}

// Consume applies one change event to the index. Indexing failures are
// logged and swallowed: search lags behind rather than failing a mutation.
func (x *Index) Consume(_ context.Context, e event.ChangeEvent) error {
	var err error
	switch evt := e.(type) {
	case event.MessageCreated:
		err = x.upsert(evt.Message)
	case event.MessageEdited:
		err = x.upsert(evt.Message)
	case event.MessageDeleted:
		err = x.writer.Delete(bluge.Identifier(evt.ID.String()))
	}
	if err != nil {
		x.log.Error("index update failed", "id", e.MessageID(), "error", err)
	}
	return nil
}

func (x *Index) upsert(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String())
	doc.AddField(bluge.NewTextField("content", message.Content))
	doc.AddField(bluge.NewKeywordField("author", message.Author))
	return x.writer.Update(doc.ID(), doc)
}

// Search returns the ids of the best-matching messages for the query terms.
func (x *Index) Search(ctx context.Context, terms string, limit int) ([]uuid.UUID, error) {
	reader, err := x.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	query := bluge.NewMatchQuery(terms).SetField("content")
	request := bluge.NewTopNSearch(limit, query)

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, err := uuid.Parse(string(value)); err == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
