// Package domain contains core concepts of the message system.
// Messages are validated by the gateway; the domain only defines
// structure and ordering.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Message is the core entity. ID, Author, and CreatedAt are immutable once
// assigned; Content and EditedAt change on edits; Deleted is a tombstone so
// that deletion can be observed and fanned out before physical reclamation.
type Message struct {
	ID        uuid.UUID  `json:"id"`
	Author    string     `json:"author"`
	Content   string     `json:"content"`
	Lang      string     `json:"lang,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Deleted   bool       `json:"deleted,omitempty"`
}

// Less defines the display order: CreatedAt ascending, message ID breaking
// ties so the order is total regardless of insertion order.
func Less(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// SortMessages orders messages in place by (CreatedAt, ID) ascending.
func SortMessages(messages []Message) {
	sort.Slice(messages, func(i, j int) bool {
		return Less(messages[i], messages[j])
	})
}
