// Package sqlitestore provides SQLite-backed implementations of the
// secretroom provider interfaces: rooms, the solve attempt ledger, and
// durable lockout rows.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS secret_room (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  owner_id     TEXT NOT NULL,
  owner_name   TEXT NOT NULL DEFAULT '',
  title        TEXT NOT NULL,
  hint         TEXT NOT NULL DEFAULT '',
  answer_hash  TEXT NOT NULL,
  content_kind TEXT NOT NULL,
  content_text TEXT NOT NULL DEFAULT '',
  image_ref    TEXT NOT NULL DEFAULT '',
  image_alt    TEXT NOT NULL DEFAULT '',
  visibility   TEXT NOT NULL,
  policy       TEXT NOT NULL,
  view_limit   INTEGER NOT NULL DEFAULT 0,
  views_used   INTEGER NOT NULL DEFAULT 0,
  expires_at   INTEGER NOT NULL DEFAULT 0,
  active       INTEGER NOT NULL DEFAULT 1,
  version      INTEGER NOT NULL DEFAULT 0,
  created_at   INTEGER NOT NULL,
  updated_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_secret_room_public
  ON secret_room (visibility, active, created_at);

CREATE TABLE IF NOT EXISTS solve_attempt (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  room_id     INTEGER NOT NULL,
  origin_hash TEXT NOT NULL,
  solver_id   TEXT NOT NULL DEFAULT '',
  correct     INTEGER NOT NULL,
  latency_ms  INTEGER NOT NULL DEFAULT 0,
  created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_solve_attempt_room_origin
  ON solve_attempt (room_id, origin_hash, created_at);
CREATE INDEX IF NOT EXISTS idx_solve_attempt_room
  ON solve_attempt (room_id, created_at);

CREATE TABLE IF NOT EXISTS solve_lockout (
  room_id     INTEGER NOT NULL,
  origin_hash TEXT NOT NULL,
  until       INTEGER NOT NULL,
  created_at  INTEGER NOT NULL,
  PRIMARY KEY (room_id, origin_hash)
);
`

// Store persists secretroom state in SQLite. One Store value implements the
// room provider, the attempt ledger, and the lockout provider.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and creates the schema if absent.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
