package study

import (
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/queue"
)

// Overview summarizes what is waiting to be studied today.
type Overview struct {
	DueLearning  int             `json:"due_learning"`
	DueReview    int             `json:"due_review"`
	NewAvailable int             `json:"new_available"`
	NewToday     int             `json:"new_today"`
	LimitReached bool            `json:"limit_reached"`
	Today        domain.DailyLog `json:"today"`
}

// Due returns the number of started cards due now.
func (o Overview) Due() int {
	return o.DueLearning + o.DueReview
}

// Summarize counts cards per queue group at now. today holds the counters
// already recorded for the current day.
func Summarize(cards []domain.Card, settings queue.Settings, today domain.DailyLog, now time.Time) Overview {
	p := queue.Split(cards, settings, today.NewCards, now)
	return Overview{
		DueLearning:  len(p.ActiveLearning),
		DueReview:    len(p.DueReview),
		NewAvailable: p.NewAvailable,
		NewToday:     len(p.FreshNew),
		LimitReached: p.QuotaReached(),
		Today:        today,
	}
}
