package scheduler

import (
	"testing"
	"time"

	"github.com/conorfennell/memora/internal/fsrs"
)

func TestPreviewNewCard(t *testing.T) {
	s := New(nil)
	card := newCard()

	options := s.Preview(card, t0)
	if len(options) != 4 {
		t.Fatalf("Expected 4 options, but got %d", len(options))
	}

	// Again: 0.4 days = 9.6h, Hard: 1 day, Good: 2 days, Easy: 6 days.
	expected := []struct {
		rating fsrs.Rating
		label  string
	}{
		{fsrs.Again, "10h"},
		{fsrs.Hard, "1d"},
		{fsrs.Good, "2d"},
		{fsrs.Easy, "6d"},
	}
	for i, want := range expected {
		if options[i].Rating != want.rating {
			t.Errorf("Option %d: expected rating %s, but got %s", i, want.rating, options[i].Rating)
		}
		if options[i].Label != want.label {
			t.Errorf("Option %s: expected label '%s', but got '%s'", want.rating, want.label, options[i].Label)
		}
	}

	if card != newCard() {
		t.Error("Expected Preview to leave the card unchanged")
	}
}

func TestFormatInterval(t *testing.T) {
	testCases := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "<1m"},
		{0, "<1m"},
		{5 * time.Minute, "5m"},
		{59 * time.Minute, "59m"},
		{59*time.Minute + 40*time.Second, "1h"},
		{5 * time.Hour, "5h"},
		{23*time.Hour + 40*time.Minute, "1d"},
		{3 * day, "3d"},
		{29 * day, "29d"},
		{29*day + 17*time.Hour, "1mo"},
		{60 * day, "2mo"},
		{365 * day, "1.0y"},
		{548 * day, "1.5y"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatInterval(tc.input); got != tc.expected {
				t.Errorf("FormatInterval(%v): expected '%s', but got '%s'", tc.input, tc.expected, got)
			}
		})
	}
}
