// Package parser extracts flashcards from markdown decks.
//
// A card starts with a "Q:" line and may carry "P:" (pronunciation),
// "A:" (meaning) and "H:" (hint) fields. Fields can span several lines.
// A card ends at a "---" line or at the next "Q:".
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/memora/internal/domain"
)

const separator = "---"

type field int

const (
	seeking field = iota
	readingFront
	readingPronunciation
	readingMeaning
	readingHint
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", readingFront},
	{"P:", readingPronunciation},
	{"A:", readingMeaning},
	{"H:", readingHint},
}

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. The cards carry no
// id and are in the new state.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var current domain.Card
	var block []string
	state := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(block, "\n"), "\n")
		switch state {
		case readingFront:
			current.Front = content
		case readingPronunciation:
			current.Pronunciation = content
		case readingMeaning:
			current.Meaning = content
		case readingHint:
			current.Hint = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if strings.TrimSpace(current.Front) != "" {
			cards = append(cards, domain.NewCard("", current.Front, current.Pronunciation, current.Meaning, current.Hint))
		}
		current = domain.Card{}
		state = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishCard()
			continue
		}

		next, content, ok := fieldLine(line)
		if !ok {
			if state != seeking {
				block = append(block, line)
			}
			continue
		}

		if next == readingFront && state != seeking {
			// A new question always starts a new card
			finishCard()
		} else {
			flushBlock()
		}
		state = next
		block = append(block, content)
	}

	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func fieldLine(line string) (field, string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return p.field, strings.TrimPrefix(rest, " "), true
		}
	}
	return seeking, "", false
}
