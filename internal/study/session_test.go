package study

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/fsrs"
	"github.com/conorfennell/memora/internal/queue"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type memoryCards struct {
	cards []domain.Card
	saves int
}

func (m *memoryCards) GetAll() ([]domain.Card, error) {
	return slices.Clone(m.cards), nil
}

func (m *memoryCards) SaveAll(cards []domain.Card) error {
	m.cards = slices.Clone(cards)
	m.saves++
	return nil
}

func (m *memoryCards) find(id string) domain.Card {
	for _, c := range m.cards {
		if c.ID == id {
			return c
		}
	}
	return domain.Card{}
}

type memoryUsage struct {
	newCards int
	reviews  int
	spent    time.Duration
}

func (m *memoryUsage) ConsumedNewCardsToday(time.Time) (int, error) {
	return m.newCards, nil
}

func (m *memoryUsage) RecordReview(_ time.Time, wasNew bool, elapsed time.Duration) error {
	if wasNew {
		m.newCards++
	}
	m.reviews++
	m.spent += elapsed
	return nil
}

type memorySnapshots struct {
	saved *queue.Queue
}

func (m *memorySnapshots) Load() (*queue.Queue, error) {
	if m.saved == nil {
		return nil, nil
	}
	q := *m.saved
	q.Cards = slices.Clone(m.saved.Cards)
	return &q, nil
}

func (m *memorySnapshots) Save(q *queue.Queue) error {
	cp := *q
	cp.Cards = slices.Clone(q.Cards)
	m.saved = &cp
	return nil
}

func (m *memorySnapshots) Clear() error {
	m.saved = nil
	return nil
}

type memoryHistory struct {
	logs []domain.ReviewLog
}

func (m *memoryHistory) AppendReviewLog(log domain.ReviewLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type fixture struct {
	cards     *memoryCards
	usage     *memoryUsage
	snapshots *memorySnapshots
	history   *memoryHistory
	session   *Session
}

func newFixture(cards []domain.Card, settings queue.Settings) *fixture {
	f := &fixture{
		cards:     &memoryCards{cards: cards},
		usage:     &memoryUsage{},
		snapshots: &memorySnapshots{},
		history:   &memoryHistory{},
	}
	f.session = NewSession(Config{
		Cards:     f.cards,
		Usage:     f.usage,
		Snapshots: f.snapshots,
		History:   f.history,
		Settings:  settings,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func newCards(n int) []domain.Card {
	cards := make([]domain.Card, n)
	for i := range cards {
		cards[i] = domain.NewCard(fmt.Sprintf("card%d", i+1), "front", "", "meaning", "")
	}
	return cards
}

func queuedIDs(s *Session) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, c := range s.queue.Cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestStartBuildsQueue(t *testing.T) {
	review := domain.Card{ID: "review", State: domain.StateReview, Stability: 3, Difficulty: 5, Due: t0.Add(-time.Hour), LastReview: t0.Add(-72 * time.Hour)}
	f := newFixture(append(newCards(3), review), queue.Settings{NewCardsPerDay: 2})

	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}

	if got := fmt.Sprint(queuedIDs(f.session)); got != "[review card1 card2]" {
		t.Errorf("Expected queue [review card1 card2], but got %s", got)
	}
	if completed, total := f.session.Progress(); completed != 0 || total != 3 {
		t.Errorf("Expected progress 0/3, but got %d/%d", completed, total)
	}
	if f.snapshots.saved == nil || f.snapshots.saved.Len() != 3 {
		t.Error("Expected the queue to be saved as a snapshot")
	}
	if f.session.LimitReached() {
		t.Error("Expected the new-card limit not to be reached")
	}
}

func TestAnswerAgainReinsertsCard(t *testing.T) {
	f := newFixture(newCards(5), queue.Settings{NewCardsPerDay: 10})
	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}

	updated, err := f.session.Answer("card1", fsrs.Again, t0, 3*time.Second)
	if err != nil {
		t.Fatalf("Answer() returned an unexpected error: %v", err)
	}
	if updated.State != domain.StateLearning {
		t.Errorf("Expected state learning, but got %s", updated.State)
	}

	if got := fmt.Sprint(queuedIDs(f.session)); got != "[card2 card3 card4 card1 card5]" {
		t.Errorf("Expected queue [card2 card3 card4 card1 card5], but got %s", got)
	}
	if completed, _ := f.session.Progress(); completed != 0 {
		t.Errorf("Expected completed count 0, but got %d", completed)
	}
	if stored := f.cards.find("card1"); stored.State != domain.StateLearning || !stored.LastReview.Equal(t0) {
		t.Errorf("Expected the stored card to be updated, but got %+v", stored)
	}
	if f.usage.newCards != 1 || f.usage.reviews != 1 || f.usage.spent != 3*time.Second {
		t.Errorf("Unexpected usage %+v", f.usage)
	}
	if len(f.history.logs) != 1 || f.history.logs[0].Grade != 1 || f.history.logs[0].StateBefore != domain.StateNew {
		t.Errorf("Unexpected review history %+v", f.history.logs)
	}
	if f.snapshots.saved == nil || f.snapshots.saved.Cards[3].ID != "card1" {
		t.Error("Expected the snapshot to follow the queue")
	}
}

func TestAnswerValidation(t *testing.T) {
	f := newFixture(newCards(2), queue.Settings{NewCardsPerDay: 10})
	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}

	if _, err := f.session.Answer("card2", fsrs.Good, t0, 0); !errors.Is(err, ErrCardMismatch) {
		t.Errorf("Expected ErrCardMismatch, but got %v", err)
	}
	if _, err := f.session.Answer("card1", fsrs.Rating(9), t0, 0); !errors.Is(err, fsrs.ErrInvalidRating) {
		t.Errorf("Expected ErrInvalidRating, but got %v", err)
	}
	if f.usage.reviews != 0 {
		t.Errorf("Expected rejected answers not to be recorded, but got %d reviews", f.usage.reviews)
	}
}

func TestSessionCompletes(t *testing.T) {
	f := newFixture(newCards(3), queue.Settings{NewCardsPerDay: 10})
	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}

	now := t0
	for {
		head, ok := f.session.Current()
		if !ok {
			break
		}
		now = now.Add(10 * time.Second)
		if _, err := f.session.Answer(head.ID, fsrs.Good, now, 10*time.Second); err != nil {
			t.Fatalf("Answer(%s) returned an unexpected error: %v", head.ID, err)
		}
	}

	if completed, total := f.session.Progress(); completed != 3 || total != 3 {
		t.Errorf("Expected progress 3/3, but got %d/%d", completed, total)
	}
	if f.snapshots.saved != nil {
		t.Error("Expected the snapshot to be cleared once the queue is empty")
	}
	if _, err := f.session.Answer("card1", fsrs.Good, now, 0); !errors.Is(err, ErrNoCurrentCard) {
		t.Errorf("Expected ErrNoCurrentCard, but got %v", err)
	}
	for _, c := range f.cards.cards {
		if c.State != domain.StateReview {
			t.Errorf("Expected %s to be in review, but got %s", c.ID, c.State)
		}
	}
}

func TestSessionResumes(t *testing.T) {
	f := newFixture(newCards(4), queue.Settings{NewCardsPerDay: 4})
	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	if _, err := f.session.Answer("card1", fsrs.Good, t0, time.Second); err != nil {
		t.Fatalf("Answer() returned an unexpected error: %v", err)
	}

	f.session.Abandon()
	if !f.session.Stale(t0) {
		t.Error("Expected an abandoned session to need a rebuild")
	}

	later := t0.Add(time.Minute)
	if err := f.session.Start(later); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	if got := fmt.Sprint(queuedIDs(f.session)); got != "[card2 card3 card4]" {
		t.Errorf("Expected queue [card2 card3 card4], but got %s", got)
	}
	if completed, total := f.session.Progress(); completed != 1 || total != 4 {
		t.Errorf("Expected progress 1/4 after resuming, but got %d/%d", completed, total)
	}
}

func TestDailyLimitAndStudyMore(t *testing.T) {
	f := newFixture(newCards(15), queue.Settings{NewCardsPerDay: 5})
	f.usage.newCards = 5

	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	if !f.session.LimitReached() {
		t.Error("Expected the daily limit to be reached")
	}
	if f.session.Remaining() != 0 {
		t.Errorf("Expected an empty queue, but got %d cards", f.session.Remaining())
	}

	added, err := f.session.StudyMore(t0)
	if err != nil {
		t.Fatalf("StudyMore() returned an unexpected error: %v", err)
	}
	if added != 10 {
		t.Errorf("Expected 10 extra cards, but got %d", added)
	}
	if f.session.LimitReached() {
		t.Error("Expected the limit flag to clear after studying more")
	}
	if _, total := f.session.Progress(); total != 10 {
		t.Errorf("Expected initial length 10, but got %d", total)
	}
	if f.usage.newCards != 5 {
		t.Errorf("Expected the counter to stay at 5 until cards are rated, but got %d", f.usage.newCards)
	}

	head, _ := f.session.Current()
	if _, err := f.session.Answer(head.ID, fsrs.Good, t0, 0); err != nil {
		t.Fatalf("Answer() returned an unexpected error: %v", err)
	}
	if f.usage.newCards != 6 {
		t.Errorf("Expected rating an extra card to count against the quota, but got %d", f.usage.newCards)
	}

	added, _ = f.session.StudyMore(t0)
	if added != 5 {
		t.Errorf("Expected the 5 remaining new cards to be added, but got %d", added)
	}
}

func TestStartRepairsCards(t *testing.T) {
	broken := domain.NewCard("broken", "front", "", "meaning", "")
	broken.Due = t0.Add(-time.Hour)
	f := newFixture([]domain.Card{broken}, queue.Settings{NewCardsPerDay: 5})

	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	if f.cards.saves != 1 {
		t.Errorf("Expected the repaired set to be saved once, but got %d saves", f.cards.saves)
	}
	if f.cards.find("broken").Scheduled() {
		t.Error("Expected the stray due date to be cleared")
	}
	if f.session.Remaining() != 1 {
		t.Errorf("Expected the repaired card to be queued as new, but got %d cards", f.session.Remaining())
	}
}

func TestResumeDropsRemovedCards(t *testing.T) {
	f := newFixture(newCards(3), queue.Settings{NewCardsPerDay: 3})
	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	f.session.Abandon()

	f.cards.cards = slices.DeleteFunc(f.cards.cards, func(c domain.Card) bool { return c.ID == "card2" })

	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	if got := fmt.Sprint(queuedIDs(f.session)); got != "[card1 card3]" {
		t.Errorf("Expected queue [card1 card3], but got %s", got)
	}
}

func TestStale(t *testing.T) {
	f := newFixture(newCards(1), queue.Settings{NewCardsPerDay: 5})
	if !f.session.Stale(t0) {
		t.Error("Expected a session that never started to be stale")
	}
	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	if f.session.Stale(t0.Add(time.Hour)) {
		t.Error("Expected a session with cards left to stay current on the same day")
	}
	if !f.session.Stale(t0.Add(24 * time.Hour)) {
		t.Error("Expected a session from the previous day to be stale")
	}

	if _, err := f.session.Answer("card1", fsrs.Good, t0, time.Second); err != nil {
		t.Fatalf("Answer() returned an unexpected error: %v", err)
	}
	if !f.session.Stale(t0) {
		t.Error("Expected a drained session to be stale")
	}
}

func TestStartSchedulesStartedCardWithoutDue(t *testing.T) {
	card := domain.NewCard("lost", "front", "", "meaning", "")
	card.State = domain.StateReview
	card.Stability = 3
	card.Difficulty = 5
	card.LastReview = t0.Add(-72 * time.Hour)
	f := newFixture([]domain.Card{card}, queue.Settings{NewCardsPerDay: 5})

	if err := f.session.Start(t0); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	if got := f.cards.find("lost").Due; !got.Equal(t0) {
		t.Errorf("Expected the missing due date to be set to %v, but got %v", t0, got)
	}
	if got := fmt.Sprint(queuedIDs(f.session)); got != "[lost]" {
		t.Errorf("Expected queue [lost], but got %s", got)
	}
}
