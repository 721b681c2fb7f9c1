package moderation

import (
	"bufio"
	"embed"
	"strings"

	"chat-relay/errors"

	"github.com/samber/lo"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// LoadWords reads every embedded censored list (one file per language, one
// word per line, '#' comments allowed) and returns the deduplicated union.
func LoadWords() ([]string, error) {
	entries, err := censoredFolder.ReadDir("censored")
	if err != nil {
		return nil, err
	}

	var words []string
	for _, entry := range entries {
		file, err := censoredFolder.Open("censored/" + entry.Name())
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			words = append(words, line)
		}
		if err := scanner.Err(); err != nil {
			_ = file.Close()
			return nil, err
		}
		_ = file.Close()
	}

	words = lo.Uniq(words)
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return words, nil
}
