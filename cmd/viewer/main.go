// Command viewer prints the message collection straight from BadgerDB,
// tombstones included. Read-only; safe to run next to a live server.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"chat-relay/domain"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
}

func main() {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// BypassLockGuard allows opening while the server holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	messages, err := loadMessages(db)
	if err != nil {
		log.Fatalf("Failed to read messages: %v", err)
	}
	domain.SortMessages(messages)

	render(messages)
}

func loadMessages(db *badger.DB) ([]domain.Message, error) {
	var messages []domain.Message
	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
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
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

func render(messages []domain.Message) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Author", "Content", "Lang", "Created", "Edited", "State"})

	for _, m := range messages {
		edited := ""
		if m.EditedAt != nil {
			edited = m.EditedAt.Format(time.RFC822)
		}
		state := color.Green.Sprint("live")
		content := m.Content
		if m.Deleted {
			state = color.Gray.Sprint("tombstone")
			content = color.Gray.Sprint(content)
		}
		table.Append([]string{
			m.ID.String(),
			m.Author,
			content,
			m.Lang,
			m.CreatedAt.Format(time.RFC822),
			edited,
			state,
		})
	}

	table.Render()
	fmt.Printf("%d message(s)\n", len(messages))
}
