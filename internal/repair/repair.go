// Package repair brings a card set back in line with the scheduling
// invariants before a queue is built from it.
package repair

import (
	"math"
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/fsrs"
)

// Normalize fixes cards in place and returns how many were changed.
//
//   - an unknown state becomes new
//   - a new card carries no schedule, stability, difficulty or last review
//   - a started card without a usable stability is reset to new
//   - a started card has difficulty in [1, 10], stability within the
//     maximum interval and a due date (now when missing)
func Normalize(cards []domain.Card, now time.Time) int {
	maxStability := fsrs.DefaultParams().MaximumInterval
	fixed := 0
	for i := range cards {
		before := cards[i]
		normalize(&cards[i], now, maxStability)
		if cards[i] != before {
			fixed++
		}
	}
	return fixed
}

func normalize(c *domain.Card, now time.Time, maxStability float64) {
	if !c.State.Valid() {
		c.State = domain.StateNew
	}

	if c.State != domain.StateNew && (math.IsNaN(c.Stability) || c.Stability <= 0) {
		c.State = domain.StateNew
	}

	if c.State == domain.StateNew {
		c.Stability = 0
		c.Difficulty = 0
		c.Due = time.Time{}
		c.LastReview = time.Time{}
		return
	}

	c.Stability = min(max(c.Stability, fsrs.MinStability), maxStability)
	if math.IsNaN(c.Difficulty) {
		c.Difficulty = 1
	}
	c.Difficulty = min(max(c.Difficulty, 1), 10)
	if !c.Scheduled() {
		c.Due = now
	}
}
