// Package queue assembles and advances the ordered list of cards a study
// session works through.
package queue

import (
	"slices"
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/fsrs"
	"github.com/conorfennell/memora/internal/scheduler"
)

const (
	// ReinsertOffset is how many cards a failed card is pushed back by.
	ReinsertOffset = 3
	// ExtraBatchSize is the default number of new cards added by StudyMore.
	ExtraBatchSize = 10
)

// Settings controls how much work a day may contain.
type Settings struct {
	NewCardsPerDay int // new cards introduced per calendar day
	ReviewLimit    int // cap on a freshly built queue, 0 for unlimited
}

// Queue is the remaining work of one study session. It is persisted as-is
// so an interrupted session can be resumed.
type Queue struct {
	Cards          []domain.Card `json:"queue"`
	InitialLength  int           `json:"initialLength"`
	CompletedCount int           `json:"completedCount"`
}

// Len returns the number of cards still queued.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Cards)
}

// Empty reports whether there is nothing left to study.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Head returns the card to present next.
func (q *Queue) Head() (domain.Card, bool) {
	if q.Empty() {
		return domain.Card{}, false
	}
	return q.Cards[0], true
}

// Contains reports whether a card with id is queued.
func (q *Queue) Contains(id string) bool {
	if q == nil {
		return false
	}
	return slices.ContainsFunc(q.Cards, func(c domain.Card) bool { return c.ID == id })
}

// Partition splits a card set into the three groups a queue is built from.
type Partition struct {
	ActiveLearning []domain.Card // learning or relearning, due now
	DueReview      []domain.Card // review, due now, earliest first
	FreshNew       []domain.Card // new, in stored order, limited by the daily quota
	NewAvailable   int           // all new cards, before the quota
}

// Split partitions cards at now. consumedToday is the number of new cards
// already introduced today.
func Split(cards []domain.Card, settings Settings, consumedToday int, now time.Time) Partition {
	var p Partition
	remaining := max(0, settings.NewCardsPerDay-consumedToday)

	for _, c := range cards {
		switch c.State {
		case domain.StateLearning, domain.StateRelearning:
			if scheduler.IsDue(c, now) {
				p.ActiveLearning = append(p.ActiveLearning, c)
			}
		case domain.StateReview:
			if scheduler.IsDue(c, now) {
				p.DueReview = append(p.DueReview, c)
			}
		case domain.StateNew:
			p.NewAvailable++
			if len(p.FreshNew) < remaining {
				p.FreshNew = append(p.FreshNew, c)
			}
		}
	}

	slices.SortStableFunc(p.DueReview, func(a, b domain.Card) int {
		return a.Due.Compare(b.Due)
	})
	return p
}

// QuotaReached reports whether new cards are being held back only because
// today's quota is spent.
func (p Partition) QuotaReached() bool {
	return len(p.FreshNew) == 0 && p.NewAvailable > 0
}

// Candidates returns the fresh work list in priority order, truncated to
// the review limit.
func (p Partition) Candidates(settings Settings) []domain.Card {
	out := make([]domain.Card, 0, len(p.ActiveLearning)+len(p.DueReview)+len(p.FreshNew))
	out = append(out, p.ActiveLearning...)
	out = append(out, p.DueReview...)
	out = append(out, p.FreshNew...)
	if settings.ReviewLimit > 0 && len(out) > settings.ReviewLimit {
		out = out[:settings.ReviewLimit]
	}
	return out
}

// Build produces the working queue for a session. When prev holds an
// unfinished session it is resumed and any new candidates are appended to
// its end; otherwise a fresh queue is built.
func Build(cards []domain.Card, prev *Queue, settings Settings, consumedToday int, now time.Time) *Queue {
	candidates := Split(cards, settings, consumedToday, now).Candidates(settings)

	if prev.Empty() {
		fresh := dedupe(candidates)
		return &Queue{Cards: fresh, InitialLength: len(fresh)}
	}

	q := &Queue{
		Cards:          dedupe(slices.Clone(prev.Cards)),
		InitialLength:  prev.InitialLength,
		CompletedCount: prev.CompletedCount,
	}
	q.Append(candidates)
	return q
}

// Append adds the cards that are not queued yet to the end of the queue and
// grows InitialLength accordingly. It returns the number of cards added.
func (q *Queue) Append(cards []domain.Card) int {
	seen := make(map[string]bool, len(q.Cards))
	for _, c := range q.Cards {
		seen[c.ID] = true
	}

	added := 0
	for _, c := range cards {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		q.Cards = append(q.Cards, c)
		added++
	}
	q.InitialLength += added
	return added
}

// ApplyRating advances the queue after the head card was answered with
// rating. A failed card comes back ReinsertOffset cards later as updated;
// any other rating completes it.
func (q *Queue) ApplyRating(rating fsrs.Rating, updated domain.Card) {
	if q.Empty() {
		return
	}
	rest := q.Cards[1:]

	if rating == fsrs.Again {
		pos := min(len(rest), ReinsertOffset)
		q.Cards = slices.Insert(slices.Clone(rest), pos, updated)
		return
	}

	q.Cards = slices.Clone(rest)
	q.CompletedCount++
}

// Extra returns up to limit new cards that are not already queued, ignoring
// the daily quota.
func Extra(cards []domain.Card, q *Queue, limit int) []domain.Card {
	var out []domain.Card
	for _, c := range cards {
		if len(out) >= limit {
			break
		}
		if c.State == domain.StateNew && !q.Contains(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

func dedupe(cards []domain.Card) []domain.Card {
	seen := make(map[string]bool, len(cards))
	out := cards[:0]
	for _, c := range cards {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}
