package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FindActiveBlock returns the expiry of an unexpired lockout row for the
// (room, origin) pair. Expired rows are ignored, not deleted.
func (s *Store) FindActiveBlock(ctx context.Context, roomID int64, originHash string, now time.Time) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return time.Time{}, false, fmt.Errorf("storage is not configured")
	}

	var until int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT until FROM solve_lockout
		 WHERE room_id = ? AND origin_hash = ? AND until > ?`,
		roomID, originHash, toMillis(now),
	).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("find lockout: %w", err)
	}
	return fromMillis(until), true, nil
}

// CreateBlock upserts the lockout row for the (room, origin) pair.
func (s *Store) CreateBlock(ctx context.Context, roomID int64, originHash string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO solve_lockout (room_id, origin_hash, until, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(room_id, origin_hash) DO UPDATE SET until = excluded.until`,
		roomID, originHash, toMillis(until), toMillis(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("insert lockout: %w", err)
	}
	return nil
}
