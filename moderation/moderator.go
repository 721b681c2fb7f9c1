// Package moderation masks censored words in message content before it is
// stored or fanned out. Matching runs on a normalized view of the text
// (lowercase, leet speak folded, punctuation stripped) while masking is
// applied to the original runes, so spacing and casing survive.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	machine *goahocorasick.Machine
	mask    rune
}

// runeMap tracks, for every rune kept in the normalized text, its index in
// the original text.
type runeMap struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton over the normalized word
// list. Building is the expensive part; Mask is cheap and concurrency-safe.
func NewModerator(words []string, mask rune) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		if p := normalize([]rune(w)); len(p) > 0 {
			patterns = append(patterns, p)
		}
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{machine: machine, mask: mask}, nil
}

// Mask replaces every censored match with the mask rune.
func (m *Moderator) Mask(content string) string {
	mapping := index(content)
	if len(mapping.normalized) == 0 {
		return content
	}

	matches := m.machine.MultiPatternSearch(mapping.normalized, false)
	if len(matches) == 0 {
		return content
	}

	runes := []rune(content)
	for _, match := range matches {
		start := match.Pos
		end := start + len(match.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			runes[i] = m.mask
		}
	}
	return string(runes)
}

// index builds the normalized view of content plus the position mapping
// back into the original runes.
func index(content string) runeMap {
	orig := []rune(content)
	mapping := runeMap{
		normalized: make([]rune, 0, len(orig)),
		origIdx:    make([]int, 0, len(orig)),
	}
	for i, r := range orig {
		folded := foldLeet(r)
		if skippable(folded) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(folded))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalize(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		folded := foldLeet(r)
		if skippable(folded) {
			continue
		}
		out = append(out, unicode.ToLower(folded))
	}
	return out
}

// foldLeet maps common leet speak substitutions back to plain letters so
// "b4d" matches "bad".
func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func skippable(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
