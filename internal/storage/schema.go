package storage

const schema = `
-- The 'cards' table stores each flashcard together with its scheduling state.
-- Timestamps are RFC 3339 text; an empty due date means "not yet scheduled".
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    front TEXT NOT NULL,
    pronunciation TEXT NOT NULL DEFAULT '',
    meaning TEXT NOT NULL DEFAULT '',
    hint TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT 'new',
    stability REAL NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    due TEXT,
    last_review TEXT,
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

-- The 'sources' table tracks where cards come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned TEXT
);

-- One row per local calendar day.
CREATE TABLE IF NOT EXISTS daily_log (
    day TEXT PRIMARY KEY,
    new_cards INTEGER NOT NULL DEFAULT 0,
    reviews INTEGER NOT NULL DEFAULT 0,
    time_spent_ms INTEGER NOT NULL DEFAULT 0
);

-- At most one in-flight study session.
CREATE TABLE IF NOT EXISTS session_snapshot (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    payload TEXT NOT NULL,
    saved_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL,
    grade INTEGER NOT NULL,
    state_before TEXT NOT NULL,
    reviewed_at TEXT NOT NULL,
    elapsed_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id, reviewed_at);
`
