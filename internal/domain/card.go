package domain

import (
	"fmt"
	"strings"
	"time"
)

// State is the learning stage of a card.
type State string

const (
	StateNew        State = "new"
	StateLearning   State = "learning"
	StateReview     State = "review"
	StateRelearning State = "relearning"
)

// Valid reports whether s is one of the four known states.
func (s State) Valid() bool {
	switch s {
	case StateNew, StateLearning, StateReview, StateRelearning:
		return true
	}
	return false
}

// ParseState converts a stored state name into a State.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown card state %q", s)
	}
	return st, nil
}

// Card represents a single memorised item and its scheduling state.
// Due is the zero time while the card has never been scheduled, and
// LastReview is the zero time before the first review.
type Card struct {
	ID            string `json:"id"`
	Front         string `json:"front"`
	Pronunciation string `json:"pronunciation,omitempty"`
	Meaning       string `json:"meaning"`
	Hint          string `json:"hint,omitempty"`
	SourceID      int64  `json:"source_id,omitempty"`

	State      State     `json:"state"`
	Stability  float64   `json:"stability"`
	Difficulty float64   `json:"difficulty"`
	Due        time.Time `json:"due,omitzero"`
	LastReview time.Time `json:"last_review,omitzero"`
}

// NewCard returns a never-reviewed card with the given content.
func NewCard(id, front, pronunciation, meaning, hint string) Card {
	return Card{
		ID:            id,
		Front:         front,
		Pronunciation: pronunciation,
		Meaning:       meaning,
		Hint:          hint,
		State:         StateNew,
	}
}

// Scheduled reports whether the card carries a due date.
func (c Card) Scheduled() bool {
	return !c.Due.IsZero()
}

// ParseTimestamp parses a stored RFC 3339 timestamp. An empty or malformed
// value yields the zero time and false.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp is the inverse of ParseTimestamp. The zero time formats as "".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
