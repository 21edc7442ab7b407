package sqlitestore

import (
	"context"
	"fmt"
	"time"

	secretroom "github.com/internos-labs/secretroom"
)

// AppendAttempt inserts one immutable attempt row.
func (s *Store) AppendAttempt(ctx context.Context, attempt secretroom.Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO solve_attempt (
		   room_id, origin_hash, solver_id, correct, latency_ms, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.RoomID,
		attempt.OriginHash,
		attempt.SolverID,
		boolToInt(attempt.Correct),
		attempt.LatencyMs,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// CountFailedSince counts failed attempts for one origin within the window.
// Failures older than the origin's most recent correct attempt are excluded:
// a success resets the durable failure streak the same way it clears the
// accelerator counter.
func (s *Store) CountFailedSince(ctx context.Context, roomID int64, originHash string, since time.Time) (int64, error) {
	return s.countAttempts(ctx,
		`SELECT COUNT(*) FROM solve_attempt
		 WHERE room_id = ? AND origin_hash = ? AND correct = 0 AND created_at >= ?
		   AND created_at > COALESCE(
		     (SELECT MAX(created_at) FROM solve_attempt
		      WHERE room_id = ? AND origin_hash = ? AND correct = 1), 0)`,
		roomID, originHash, toMillis(since), roomID, originHash)
}

// CountSince counts all attempts against a room within the window.
func (s *Store) CountSince(ctx context.Context, roomID int64, since time.Time) (int64, error) {
	return s.countAttempts(ctx,
		`SELECT COUNT(*) FROM solve_attempt
		 WHERE room_id = ? AND created_at >= ?`,
		roomID, toMillis(since))
}

// CountCorrectSince counts successful attempts against a room within the window.
func (s *Store) CountCorrectSince(ctx context.Context, roomID int64, since time.Time) (int64, error) {
	return s.countAttempts(ctx,
		`SELECT COUNT(*) FROM solve_attempt
		 WHERE room_id = ? AND correct = 1 AND created_at >= ?`,
		roomID, toMillis(since))
}

func (s *Store) countAttempts(ctx context.Context, query string, args ...any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int64
	if err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}
