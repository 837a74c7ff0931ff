package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/fsrs"
)

// Option is the outcome of answering a card with one rating.
type Option struct {
	Rating fsrs.Rating `json:"rating"`
	Due    time.Time   `json:"due"`
	Label  string      `json:"label"`
}

// Preview returns, for each rating in grade order, when the card would next
// be due. The card itself is left untouched.
func (s *Scheduler) Preview(card domain.Card, now time.Time) []Option {
	options := make([]Option, 0, len(fsrs.Ratings))
	for _, r := range fsrs.Ratings {
		next := s.Review(card, r, now)
		options = append(options, Option{
			Rating: r,
			Due:    next.Due,
			Label:  FormatInterval(next.Due.Sub(now)),
		})
	}
	return options
}

// FormatInterval renders d as a short label such as "10m", "3d" or "1.5y".
func FormatInterval(d time.Duration) string {
	days := d.Hours() / 24

	// Breakpoints apply to the rounded value so 59m40s reads 1h, not 60m.
	m := math.Round(d.Minutes())
	h := math.Round(d.Hours())
	switch {
	case d < time.Minute:
		return "<1m"
	case m < 60:
		return fmt.Sprintf("%dm", int(m))
	case h < 24:
		return fmt.Sprintf("%dh", int(h))
	case math.Round(days) < 30:
		return fmt.Sprintf("%dd", int(math.Round(days)))
	case days < 365:
		return fmt.Sprintf("%dmo", int(math.Round(days/30)))
	default:
		return fmt.Sprintf("%.1fy", days/365)
	}
}
