// Package scheduler applies the FSRS memory model to individual cards.
//
// Everything here is pure: the current time is always passed in and the
// input card is never mutated, so a Scheduler can be shared freely between
// goroutines.
package scheduler

import (
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/fsrs"
)

// Scheduler turns a card and a rating into the card's next state.
type Scheduler struct {
	params *fsrs.Params
}

// New returns a Scheduler using params, or the default parameters when
// params is nil.
func New(params *fsrs.Params) *Scheduler {
	if params == nil {
		params = fsrs.DefaultParams()
	}
	return &Scheduler{params: params}
}

// Params exposes the parameters in use.
func (s *Scheduler) Params() *fsrs.Params {
	return s.params
}

// Review returns a copy of card updated for rating at now.
//
// A new card takes its initial stability and difficulty from the rating and
// moves to learning on Again, otherwise straight to review. A card that has
// been reviewed before moves to relearning on Again and to review on Good or
// Easy; Hard keeps whatever state the card was in. Only learning reached
// from new and relearning are scheduled in minutes; every other outcome is
// a whole number of days.
func (s *Scheduler) Review(card domain.Card, rating fsrs.Rating, now time.Time) domain.Card {
	if !rating.Valid() {
		rating = min(max(rating, fsrs.Again), fsrs.Easy)
	}

	next := card
	var stability, difficulty float64
	var shortTerm bool

	if card.State == domain.StateNew {
		stability = s.params.InitialStability(rating)
		difficulty = s.params.InitialDifficulty(rating)
		next.State = domain.StateReview
		if rating == fsrs.Again {
			next.State = domain.StateLearning
		}
		shortTerm = next.State == domain.StateLearning
	} else {
		elapsed := fsrs.ElapsedDays(card.LastReview, now)
		current := max(card.Stability, fsrs.MinStability)
		retrievability := s.params.Retrievability(current, elapsed)
		difficulty = s.params.NextDifficulty(card.Difficulty, rating)

		switch rating {
		case fsrs.Again:
			stability = s.params.NextForgetStability(card.Difficulty, current, retrievability)
			next.State = domain.StateRelearning
		case fsrs.Hard:
			stability = s.params.NextRecallStability(card.Difficulty, current, retrievability, rating)
		default:
			stability = s.params.NextRecallStability(card.Difficulty, current, retrievability, rating)
			next.State = domain.StateReview
		}
		shortTerm = next.State == domain.StateRelearning
	}

	next.Stability = fsrs.Round2(stability)
	next.Difficulty = fsrs.Round2(difficulty)
	next.Due = s.params.NextDueDate(now, next.Stability, shortTerm)
	next.LastReview = now
	return next
}

// IsDue reports whether card should be shown at now. New cards and cards
// without a due date are never due.
func IsDue(card domain.Card, now time.Time) bool {
	if card.State == domain.StateNew || !card.Scheduled() {
		return false
	}
	return !card.Due.After(now)
}
