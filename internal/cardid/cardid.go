// Package cardid derives stable card ids from card text.
package cardid

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/memora/internal/domain"
)

// Normalize joins the card's identifying fields after cleaning each part.
// The hint is left out so editing it keeps the card's history.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		p = strings.ToLower(p)
		return strings.TrimSpace(p)
	}

	// Newline keeps "ab"+"c" and "a"+"bc" apart.
	return strings.Join([]string{
		normalizePart(card.Front),
		normalizePart(card.Pronunciation),
		normalizePart(card.Meaning),
	}, "\n")
}

// Derive returns the SHA-256 of the normalized card as a hex string.
func Derive(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", sum)
}

// Assign sets the id of every card that has none.
func Assign(cards []domain.Card) {
	for i := range cards {
		if cards[i].ID == "" {
			cards[i].ID = Derive(cards[i])
		}
	}
}
