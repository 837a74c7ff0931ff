package domain

import (
	"testing"
	"time"
)

func TestParseState(t *testing.T) {
	testCases := []struct {
		input    string
		expected State
		wantErr  bool
	}{
		{"new", StateNew, false},
		{" Review ", StateReview, false},
		{"relearning", StateRelearning, false},
		{"graduated", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseState(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected an error for %q, but got state %q", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseState(%q) returned an unexpected error: %v", tc.input, err)
			}
			if got != tc.expected {
				t.Errorf("Expected state '%s', but got '%s'", tc.expected, got)
			}
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 9, 14, 30, 15, 500, time.UTC)
	parsed, ok := ParseTimestamp(FormatTimestamp(ts))
	if !ok {
		t.Fatal("Expected formatted timestamp to parse")
	}
	if !parsed.Equal(ts) {
		t.Errorf("Expected %v, but got %v", ts, parsed)
	}

	if FormatTimestamp(time.Time{}) != "" {
		t.Error("Expected the zero time to format as an empty string")
	}
	for _, raw := range []string{"", "tomorrow", "2025-13-45"} {
		if _, ok := ParseTimestamp(raw); ok {
			t.Errorf("Expected %q to be rejected", raw)
		}
	}
}

func TestDayKeyUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	ts := time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)
	if got := DayKey(ts); got != "2025-03-09" {
		t.Errorf("Expected 2025-03-09, but got %s", got)
	}
	if got := DayKey(ts.In(loc)); got != "2025-03-10" {
		t.Errorf("Expected 2025-03-10, but got %s", got)
	}
}
