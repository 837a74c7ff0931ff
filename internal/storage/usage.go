package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/memora/internal/domain"
)

// DailyLog returns the usage counters for the calendar day of now, in now's
// location. A day without activity yields zero counters.
func (db *DB) DailyLog(now time.Time) (domain.DailyLog, error) {
	day := domain.DayKey(now)
	log := domain.DailyLog{Day: day}

	var spentMs int64
	err := db.conn.QueryRow(`
		SELECT new_cards, reviews, time_spent_ms
		FROM daily_log WHERE day = ?
	`, day).Scan(&log.NewCards, &log.Reviews, &spentMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return log, nil
		}
		return log, fmt.Errorf("failed to read daily log for %s: %w", day, err)
	}
	log.TimeSpent = time.Duration(spentMs) * time.Millisecond
	return log, nil
}

// ConsumedNewCardsToday returns how many new cards were introduced on the
// calendar day of now.
func (db *DB) ConsumedNewCardsToday(now time.Time) (int, error) {
	log, err := db.DailyLog(now)
	if err != nil {
		return 0, err
	}
	return log.NewCards, nil
}

// RecordReview counts one rating against the calendar day of now.
func (db *DB) RecordReview(now time.Time, wasNew bool, elapsed time.Duration) error {
	newCards := 0
	if wasNew {
		newCards = 1
	}
	_, err := db.conn.Exec(`
		INSERT INTO daily_log (day, new_cards, reviews, time_spent_ms)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(day) DO UPDATE SET
			new_cards = new_cards + excluded.new_cards,
			reviews = reviews + 1,
			time_spent_ms = time_spent_ms + excluded.time_spent_ms
	`, domain.DayKey(now), newCards, max(0, elapsed.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}
	return nil
}
