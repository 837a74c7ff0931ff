package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/queue"
)

// SnapshotStore persists the in-flight study queue so a session can be resumed.
type SnapshotStore struct {
	db  *DB
	now func() time.Time
}

// Snapshots returns the session snapshot store backed by db.
func (db *DB) Snapshots() *SnapshotStore {
	return &SnapshotStore{db: db, now: time.Now}
}

// Load returns the saved queue, or nil when there is none. A snapshot that
// no longer decodes is discarded rather than failing the session.
func (s *SnapshotStore) Load() (*queue.Queue, error) {
	var payload string
	err := s.db.conn.QueryRow(`SELECT payload FROM session_snapshot WHERE id = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	var q queue.Queue
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		s.db.logger.Warn("Discarding unreadable session snapshot", "error", err)
		return nil, s.Clear()
	}
	return &q, nil
}

// Save replaces the saved queue.
func (s *SnapshotStore) Save(q *queue.Queue) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}
	_, err = s.db.conn.Exec(`
		INSERT INTO session_snapshot (id, payload, saved_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at
	`, string(payload), domain.FormatTimestamp(s.now()))
	if err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}

// Clear removes the saved queue.
func (s *SnapshotStore) Clear() error {
	if _, err := s.db.conn.Exec(`DELETE FROM session_snapshot`); err != nil {
		return fmt.Errorf("failed to clear session snapshot: %w", err)
	}
	return nil
}
