package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/memora/internal/domain"
)

const cardColumns = `id, front, pronunciation, meaning, hint, state, stability, difficulty, due, last_review, source_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCard reads one cards row. A due date that does not parse is loaded as
// unset, which leaves the card out of every queue until it is repaired.
func (db *DB) scanCard(row rowScanner) (domain.Card, error) {
	var (
		c          domain.Card
		state      string
		due        sql.NullString
		lastReview sql.NullString
		sourceID   sql.NullInt64
	)
	err := row.Scan(
		&c.ID,
		&c.Front,
		&c.Pronunciation,
		&c.Meaning,
		&c.Hint,
		&state,
		&c.Stability,
		&c.Difficulty,
		&due,
		&lastReview,
		&sourceID,
	)
	if err != nil {
		return domain.Card{}, err
	}

	c.State = domain.State(state)
	c.SourceID = sourceID.Int64
	if due.Valid && due.String != "" {
		t, ok := domain.ParseTimestamp(due.String)
		if !ok {
			db.logger.Warn("Ignoring malformed due date", "card", c.ID, "due", due.String)
		}
		c.Due = t
	}
	if lastReview.Valid {
		c.LastReview, _ = domain.ParseTimestamp(lastReview.String)
	}
	return c, nil
}

func (db *DB) queryCards(query string, args ...any) ([]domain.Card, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := db.scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetAll returns every card in insertion order.
func (db *DB) GetAll() ([]domain.Card, error) {
	cards, err := db.queryCards(`SELECT ` + cardColumns + ` FROM cards ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all cards: %w", err)
	}
	return cards, nil
}

// SaveAll writes every card in one transaction, inserting cards it has not
// seen before. Existing cards keep their position in the insertion order.
func (db *DB) SaveAll(cards []domain.Card) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO cards (` + cardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			front = excluded.front,
			pronunciation = excluded.pronunciation,
			meaning = excluded.meaning,
			hint = excluded.hint,
			state = excluded.state,
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			due = excluded.due,
			last_review = excluded.last_review,
			source_id = excluded.source_id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cards {
		if _, err := stmt.Exec(cardArgs(c)...); err != nil {
			return fmt.Errorf("failed to save card %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cards: %w", err)
	}
	return nil
}

// InsertCard inserts a card unless one with the same id already exists.
// It reports whether a row was added.
func (db *DB) InsertCard(card domain.Card) (bool, error) {
	res, err := db.conn.Exec(`
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, cardArgs(card)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result for card %s: %w", card.ID, err)
	}
	return n > 0, nil
}

// FindCardByID retrieves a card by its id.
func (db *DB) FindCardByID(id string) (*domain.Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := db.scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// GetCardsBySourceID retrieves all cards associated with a specific source ID.
func (db *DB) GetCardsBySourceID(sourceID int64) ([]domain.Card, error) {
	cards, err := db.queryCards(`SELECT `+cardColumns+` FROM cards WHERE source_id = ? ORDER BY rowid`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return cards, nil
}

// DeleteCardByID removes a card from the database by its id.
func (db *DB) DeleteCardByID(id string) error {
	res, err := db.conn.Exec(`DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCardNotFound
	}
	return nil
}

func cardArgs(c domain.Card) []any {
	return []any{
		c.ID,
		c.Front,
		c.Pronunciation,
		c.Meaning,
		c.Hint,
		string(c.State),
		c.Stability,
		c.Difficulty,
		nullString(domain.FormatTimestamp(c.Due)),
		nullString(domain.FormatTimestamp(c.LastReview)),
		nullInt64(c.SourceID),
	}
}
