package fsrs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Rating is the user's response to a card review.
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

// Ratings lists every rating in grade order.
var Ratings = [...]Rating{Again, Hard, Good, Easy}

// ErrInvalidRating is returned when a rating cannot be parsed.
var ErrInvalidRating = errors.New("invalid rating")

var ratingNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

// Valid reports whether r is one of Again, Hard, Good or Easy.
func (r Rating) Valid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.Valid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating accepts either a rating name ("good") or its grade ("3").
func ParseRating(s string) (Rating, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range Ratings {
		if s == ratingNames[r] {
			return r, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Rating(n).Valid() {
		return Rating(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

const (
	// MinStability is the floor for the stability of any reviewed card.
	MinStability = 0.1
	// MinShortTermDays is roughly five minutes.
	MinShortTermDays = 0.0035

	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// DefaultWeights are the FSRS v4.5 default parameters.
var DefaultWeights = [17]float64{
	0.4, 0.6, 2.4, 5.8, //     w[0..3]   initial stability per grade
	4.93, 0.94, 0.86, 0.01, // w[4..7]   difficulty
	1.49, 0.14, 0.94, //       w[8..10]  recall stability
	2.18, 0.05, 0.34, 1.26, // w[11..14] forget stability
	0.29, 2.61, //             w[15..16] hard penalty, easy bonus
}

// Params holds the parameters for the FSRS algorithm.
type Params struct {
	W                [17]float64
	DesiredRetention float64 // target recall probability at the due date
	MaximumInterval  float64 // in days
}

// DefaultParams returns the fixed scheduling constants.
func DefaultParams() *Params {
	return &Params{
		W:                DefaultWeights,
		DesiredRetention: 0.9,
		MaximumInterval:  36500,
	}
}

// Retrievability is the modelled probability of recall after elapsedDays.
// It is 0 for a card without stability.
func (p *Params) Retrievability(stability, elapsedDays float64) float64 {
	if stability <= 0 || math.IsNaN(stability) {
		return 0
	}
	return 1 / (1 + clampElapsed(elapsedDays)/(9*stability))
}

// InitialStability is the stability after the very first review.
func (p *Params) InitialStability(r Rating) float64 {
	return math.Max(MinStability, p.W[clampRating(r)-1])
}

// InitialDifficulty is the difficulty after the very first review.
func (p *Params) InitialDifficulty(r Rating) float64 {
	return clampDifficulty(p.W[4] - grade(r, -3)*p.W[5])
}

// NextDifficulty moves d towards the Easy starting difficulty while
// adjusting it by the rating.
func (p *Params) NextDifficulty(d float64, r Rating) float64 {
	next := d - p.W[6]*grade(r, -3)
	reverted := p.W[7]*p.InitialDifficulty(Easy) + (1-p.W[7])*next
	return clampDifficulty(reverted)
}

// NextRecallStability is the stability after a successful review.
// S' = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^(w[10]*(1-R)) - 1) * hardPenalty * easyBonus)
func (p *Params) NextRecallStability(d, s, retrievability float64, r Rating) float64 {
	d = clampDifficulty(d)
	s = math.Max(MinStability, s)

	hardPenalty := 1.0
	if r == Hard {
		hardPenalty = p.W[15]
	}
	easyBonus := 1.0
	if r == Easy {
		easyBonus = p.W[16]
	}

	growth := math.Exp(p.W[8]) *
		(11 - d) *
		math.Pow(s, -p.W[9]) *
		(math.Exp(p.W[10]*(1-retrievability)) - 1) *
		hardPenalty * easyBonus
	return p.clampStability(s * (1 + growth))
}

// NextForgetStability is the stability after a lapse.
// S' = w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^(w[14]*(1-R))
func (p *Params) NextForgetStability(d, s, retrievability float64) float64 {
	d = clampDifficulty(d)
	s = math.Max(0, s)

	next := p.W[11] *
		math.Pow(d, -p.W[12]) *
		(math.Pow(s+1, p.W[13]) - 1) *
		math.Exp(p.W[14]*(1-retrievability))
	return p.clampStability(next)
}

// IntervalDays converts stability into the number of days until the next
// review. Long-term intervals are whole days of at least one; short-term
// intervals are fractional with a floor of about five minutes.
func (p *Params) IntervalDays(stability float64, shortTerm bool) float64 {
	days := stability * 9 * (1/p.DesiredRetention - 1)
	if math.IsNaN(days) {
		days = 0
	}
	if shortTerm {
		days = math.Max(MinShortTermDays, days)
	} else {
		days = math.Max(1, math.Round(days))
	}
	return math.Min(days, p.MaximumInterval)
}

// NextDueDate calculates the next review date based on the new stability.
func (p *Params) NextDueDate(now time.Time, stability float64, shortTerm bool) time.Time {
	days := p.IntervalDays(stability, shortTerm)
	return now.Add(time.Duration(days * float64(24*time.Hour)))
}

// ElapsedDays is the fractional number of days between lastReview and now.
// Clock skew and a missing lastReview both yield 0.
func ElapsedDays(lastReview, now time.Time) float64 {
	if lastReview.IsZero() {
		return 0
	}
	return clampElapsed(now.Sub(lastReview).Hours() / 24)
}

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func (p *Params) clampStability(s float64) float64 {
	if math.IsNaN(s) {
		return MinStability
	}
	return math.Min(math.Max(s, MinStability), p.MaximumInterval)
}

func clampDifficulty(d float64) float64 {
	if math.IsNaN(d) {
		return minDifficulty
	}
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}

func clampElapsed(days float64) float64 {
	if math.IsNaN(days) || days < 0 {
		return 0
	}
	return days
}

func clampRating(r Rating) Rating {
	return min(max(r, Again), Easy)
}

// grade returns the numeric grade of r plus offset.
func grade(r Rating, offset float64) float64 {
	return float64(clampRating(r)) + offset
}
