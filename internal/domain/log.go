package domain

import "time"

// ReviewLog records a single review event for a card.
// The Grade corresponds to FSRS ratings:
// 1: Again (Incorrect)
// 2: Hard
// 3: Good
// 4: Easy
type ReviewLog struct {
	ID          string        `json:"id"`
	CardID      string        `json:"card_id"`
	Grade       int           `json:"grade"`
	StateBefore State         `json:"state_before"`
	ReviewedAt  time.Time     `json:"reviewed_at"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// DailyLog holds the usage counters for one local calendar day.
type DailyLog struct {
	Day       string        `json:"day"` // YYYY-MM-DD in the learner's local time
	NewCards  int           `json:"new_cards"`
	Reviews   int           `json:"reviews"`
	TimeSpent time.Duration `json:"time_spent_ns"`
}

// DayKey returns the calendar day of t in t's own location.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
