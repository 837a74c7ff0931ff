// Package study runs a review session: it builds the queue from the card
// store, applies ratings through the scheduler and keeps the daily counters
// and the resumable snapshot up to date.
package study

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/fsrs"
	"github.com/conorfennell/memora/internal/queue"
	"github.com/conorfennell/memora/internal/repair"
	"github.com/conorfennell/memora/internal/scheduler"
)

var (
	// ErrNoCurrentCard is returned when answering with nothing left to study.
	ErrNoCurrentCard = errors.New("no card to review")
	// ErrCardMismatch is returned when the answered card is not the one at
	// the head of the queue.
	ErrCardMismatch = errors.New("card is not at the head of the queue")
)

// CardStore loads and saves the full card set.
type CardStore interface {
	GetAll() ([]domain.Card, error)
	SaveAll(cards []domain.Card) error
}

// UsageCounter tracks the per-day counters behind the new-card quota.
type UsageCounter interface {
	ConsumedNewCardsToday(now time.Time) (int, error)
	RecordReview(now time.Time, wasNew bool, elapsed time.Duration) error
}

// SnapshotStore persists the queue between runs.
type SnapshotStore interface {
	Load() (*queue.Queue, error)
	Save(q *queue.Queue) error
	Clear() error
}

// History receives a record of every review. It is optional.
type History interface {
	AppendReviewLog(log domain.ReviewLog) error
}

// Config bundles a Session's collaborators.
type Config struct {
	Cards     CardStore
	Usage     UsageCounter
	Snapshots SnapshotStore
	History   History
	Scheduler *scheduler.Scheduler
	Settings  queue.Settings
	// ExtraNewCards is the batch size of StudyMore. Zero means queue.ExtraBatchSize.
	ExtraNewCards int
	Logger        *slog.Logger
}

// Session is the single writer for one learner's cards while studying.
// All methods are safe for concurrent use.
type Session struct {
	cfg Config

	mu           sync.Mutex
	queue        *queue.Queue
	limitReached bool
	started      bool
	day          string // local day of the last Start
}

// NewSession returns an idle session; call Start to build its queue.
func NewSession(cfg Config) *Session {
	if cfg.Scheduler == nil {
		cfg.Scheduler = scheduler.New(nil)
	}
	if cfg.ExtraNewCards <= 0 {
		cfg.ExtraNewCards = queue.ExtraBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{cfg: cfg}
}

// Start builds the working queue, resuming a saved one when present.
func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.loadCards(now)
	if err != nil {
		return err
	}

	consumed, err := s.cfg.Usage.ConsumedNewCardsToday(now)
	if err != nil {
		return fmt.Errorf("failed to read daily usage: %w", err)
	}

	prev, err := s.cfg.Snapshots.Load()
	if err != nil {
		return fmt.Errorf("failed to load session snapshot: %w", err)
	}

	if dropped := dropVanished(prev, cards); dropped > 0 {
		s.cfg.Logger.Info("Dropped removed cards from saved session", "count", dropped)
	}

	part := queue.Split(cards, s.cfg.Settings, consumed, now)
	s.queue = queue.Build(cards, prev, s.cfg.Settings, consumed, now)
	s.limitReached = part.QuotaReached()
	s.started = true
	s.day = domain.DayKey(now)

	if err := s.persistQueue(); err != nil {
		return err
	}

	s.cfg.Logger.Info("Study session ready",
		"queued", s.queue.Len(),
		"initial_length", s.queue.InitialLength,
		"completed", s.queue.CompletedCount,
		"resumed", !prev.Empty(),
		"new_limit_reached", s.limitReached,
	)
	return nil
}

// Stale reports whether the queue should be rebuilt before use at now: the
// session has not started, it has nothing left to show, or the local day
// changed since it was built. A rebuilt queue picks up cards that have come
// due and a fresh daily quota.
func (s *Session) Stale(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.started || s.queue.Empty() || s.day != domain.DayKey(now)
}

// Current returns the card to show next.
func (s *Session) Current() (domain.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Head()
}

// Progress returns how many cards were cleared and how many were planned.
func (s *Session) Progress() (completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return 0, 0
	}
	return s.queue.CompletedCount, s.queue.InitialLength
}

// Remaining returns the number of cards left in the queue.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// LimitReached reports whether new cards were held back by the daily quota
// when the session started.
func (s *Session) LimitReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limitReached
}

// Preview returns the outcome of each rating for the current card.
func (s *Session) Preview(now time.Time) ([]scheduler.Option, bool) {
	head, ok := s.Current()
	if !ok {
		return nil, false
	}
	return s.cfg.Scheduler.Preview(head, now), true
}

// Answer rates the card at the head of the queue. id must match that card.
// spent is the time the learner took and only feeds the daily log.
func (s *Session) Answer(id string, rating fsrs.Rating, now time.Time, spent time.Duration) (domain.Card, error) {
	if !rating.Valid() {
		return domain.Card{}, fmt.Errorf("%w: %d", fsrs.ErrInvalidRating, int(rating))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head, ok := s.queue.Head()
	if !ok {
		return domain.Card{}, ErrNoCurrentCard
	}
	if head.ID != id {
		return domain.Card{}, fmt.Errorf("%w: got %s, want %s", ErrCardMismatch, id, head.ID)
	}

	cards, err := s.cfg.Cards.GetAll()
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to load cards: %w", err)
	}

	// Prefer the stored state; the queued copy may be older.
	current := head
	idx := -1
	for i, c := range cards {
		if c.ID == head.ID {
			current, idx = c, i
			break
		}
	}

	updated := s.cfg.Scheduler.Review(current, rating, now)
	if idx >= 0 {
		cards[idx] = updated
		if err := s.cfg.Cards.SaveAll(cards); err != nil {
			return domain.Card{}, fmt.Errorf("failed to save cards: %w", err)
		}
	} else {
		s.cfg.Logger.Warn("Reviewed card is no longer stored", "card", head.ID)
	}

	wasNew := current.State == domain.StateNew
	if err := s.cfg.Usage.RecordReview(now, wasNew, spent); err != nil {
		return domain.Card{}, fmt.Errorf("failed to record review: %w", err)
	}
	if s.cfg.History != nil {
		err := s.cfg.History.AppendReviewLog(domain.ReviewLog{
			CardID:      head.ID,
			Grade:       int(rating),
			StateBefore: current.State,
			ReviewedAt:  now,
			Elapsed:     spent,
		})
		if err != nil {
			s.cfg.Logger.Warn("Failed to record review history", "card", head.ID, "error", err)
		}
	}

	s.queue.ApplyRating(rating, updated)
	if err := s.persistQueue(); err != nil {
		return updated, err
	}

	s.cfg.Logger.Debug("Card reviewed",
		"card", head.ID,
		"rating", rating.String(),
		"state", string(updated.State),
		"stability", updated.Stability,
		"difficulty", updated.Difficulty,
		"due", updated.Due,
		"remaining", s.queue.Len(),
	)
	return updated, nil
}

// StudyMore appends a batch of new cards beyond today's quota and returns
// how many were added. The daily counter is only charged as they are rated.
func (s *Session) StudyMore(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.loadCards(now)
	if err != nil {
		return 0, err
	}
	if s.queue == nil {
		s.queue = &queue.Queue{}
	}

	added := s.queue.Append(queue.Extra(cards, s.queue, s.cfg.ExtraNewCards))
	if added > 0 {
		s.limitReached = false
	}
	if err := s.persistQueue(); err != nil {
		return added, err
	}

	s.cfg.Logger.Info("Added extra new cards", "added", added, "queued", s.queue.Len())
	return added, nil
}

// Abandon drops the in-memory queue. Every rating applied so far is already
// stored, so a later Start resumes from the saved snapshot.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.limitReached = false
	s.started = false
	s.day = ""
}

// loadCards reads the card set and repairs it, saving any fixes.
func (s *Session) loadCards(now time.Time) ([]domain.Card, error) {
	cards, err := s.cfg.Cards.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	if fixed := repair.Normalize(cards, now); fixed > 0 {
		s.cfg.Logger.Warn("Repaired inconsistent cards", "count", fixed)
		if err := s.cfg.Cards.SaveAll(cards); err != nil {
			return nil, fmt.Errorf("failed to save repaired cards: %w", err)
		}
	}
	return cards, nil
}

// dropVanished removes snapshot entries whose card is no longer stored.
func dropVanished(prev *queue.Queue, cards []domain.Card) int {
	if prev.Empty() {
		return 0
	}
	stored := make(map[string]bool, len(cards))
	for _, c := range cards {
		stored[c.ID] = true
	}
	before := len(prev.Cards)
	prev.Cards = slices.DeleteFunc(prev.Cards, func(c domain.Card) bool { return !stored[c.ID] })
	return before - len(prev.Cards)
}

func (s *Session) persistQueue() error {
	if s.queue.Empty() {
		if err := s.cfg.Snapshots.Clear(); err != nil {
			return fmt.Errorf("failed to clear session snapshot: %w", err)
		}
		return nil
	}
	if err := s.cfg.Snapshots.Save(s.queue); err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}
