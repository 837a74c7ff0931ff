package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/memora/internal/domain"
)

// AppendReviewLog stores one review event, assigning it an id when it has none.
func (db *DB) AppendReviewLog(log domain.ReviewLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	_, err := db.conn.Exec(`
		INSERT INTO review_logs (id, card_id, grade, state_before, reviewed_at, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.ID, log.CardID, log.Grade, string(log.StateBefore), domain.FormatTimestamp(log.ReviewedAt), log.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to append review log for card %s: %w", log.CardID, err)
	}
	return nil
}

// ReviewLogsForCard returns a card's review history, oldest first.
func (db *DB) ReviewLogsForCard(cardID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.Query(`
		SELECT id, card_id, grade, state_before, reviewed_at, elapsed_ms
		FROM review_logs WHERE card_id = ?
		ORDER BY rowid
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			l          domain.ReviewLog
			state      string
			reviewedAt string
			elapsedMs  int64
		)
		if err := rows.Scan(&l.ID, &l.CardID, &l.Grade, &state, &reviewedAt, &elapsedMs); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		l.StateBefore = domain.State(state)
		l.ReviewedAt, _ = domain.ParseTimestamp(reviewedAt)
		l.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
