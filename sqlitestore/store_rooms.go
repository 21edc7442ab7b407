package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	secretroom "github.com/internos-labs/secretroom"
)

const roomColumns = `id, owner_id, owner_name, title, hint, answer_hash,
content_kind, content_text, image_ref, image_alt, visibility, policy,
view_limit, views_used, expires_at, active, version, created_at, updated_at`

// GetRoom loads one room by id.
func (s *Store) GetRoom(ctx context.Context, id int64) (secretroom.Room, error) {
	if err := ctx.Err(); err != nil {
		return secretroom.Room{}, err
	}
	if s == nil || s.sqlDB == nil {
		return secretroom.Room{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM secret_room WHERE id = ?`, id)
	return scanRoom(row)
}

// CreateRoom inserts a room and returns its assigned id.
func (s *Store) CreateRoom(ctx context.Context, room secretroom.Room) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	createdAt := room.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := room.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO secret_room (
		   owner_id, owner_name, title, hint, answer_hash,
		   content_kind, content_text, image_ref, image_alt,
		   visibility, policy, view_limit, views_used,
		   expires_at, active, version, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		room.OwnerID,
		room.OwnerName,
		room.Title,
		room.Hint,
		room.AnswerHash,
		string(room.ContentKind),
		room.ContentText,
		room.ImageRef,
		room.ImageAlt,
		string(room.Visibility),
		string(room.Policy),
		room.ViewLimit,
		room.ViewsUsed,
		toMillis(room.ExpiresAt),
		boolToInt(room.Active),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert room: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("room insert id: %w", err)
	}
	return id, nil
}

// UpdateRoomMeta rewrites the owner-editable fields and the answer hash.
// View state and version are untouched; those belong to UpdateRoomState.
func (s *Store) UpdateRoomMeta(ctx context.Context, room secretroom.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE secret_room SET
		   title = ?, hint = ?, answer_hash = ?,
		   visibility = ?, policy = ?, view_limit = ?,
		   expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		room.Title,
		room.Hint,
		room.AnswerHash,
		string(room.Visibility),
		string(room.Policy),
		room.ViewLimit,
		toMillis(room.ExpiresAt),
		toMillis(time.Now().UTC()),
		room.ID,
	)
	if err != nil {
		return fmt.Errorf("update room meta: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update room meta rows: %w", err)
	}
	if affected == 0 {
		return secretroom.ErrNotFound
	}
	return nil
}

// UpdateRoomState applies a view-state write under the per-room version CAS.
// The write lands only when the stored version still equals expectedVersion.
func (s *Store) UpdateRoomState(ctx context.Context, id int64, expectedVersion uint64, viewsUsed int, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE secret_room SET
		   views_used = ?, active = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		viewsUsed,
		boolToInt(active),
		toMillis(time.Now().UTC()),
		id,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update room state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update room state rows: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetRoom(ctx, id); err != nil {
			return err
		}
		return secretroom.ErrRoomVersionConflict
	}
	return nil
}

// DeleteRoom removes a room row. Attempt and lockout rows are kept.
func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM secret_room WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete room rows: %w", err)
	}
	if affected == 0 {
		return secretroom.ErrNotFound
	}
	return nil
}

// ListPublicRooms returns active PUBLIC rooms created strictly before the
// cursor timestamp, newest first.
func (s *Store) ListPublicRooms(ctx context.Context, createdBefore time.Time, limit int) ([]secretroom.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM secret_room
		 WHERE visibility = ? AND active = 1 AND created_at < ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		string(secretroom.VisibilityPublic),
		toMillis(createdBefore),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list public rooms: %w", err)
	}
	defer rows.Close()

	var out []secretroom.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list public rooms: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (secretroom.Room, error) {
	var (
		room                           secretroom.Room
		contentKind, visibility        string
		policy                         string
		expiresAt, createdAt, updated  int64
		active                         int
	)

	err := row.Scan(
		&room.ID,
		&room.OwnerID,
		&room.OwnerName,
		&room.Title,
		&room.Hint,
		&room.AnswerHash,
		&contentKind,
		&room.ContentText,
		&room.ImageRef,
		&room.ImageAlt,
		&visibility,
		&policy,
		&room.ViewLimit,
		&room.ViewsUsed,
		&expiresAt,
		&active,
		&room.Version,
		&createdAt,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return secretroom.Room{}, secretroom.ErrNotFound
	}
	if err != nil {
		return secretroom.Room{}, fmt.Errorf("scan room: %w", err)
	}

	room.ContentKind = secretroom.ContentKind(contentKind)
	room.Visibility = secretroom.Visibility(visibility)
	room.Policy = secretroom.Policy(policy)
	room.ExpiresAt = fromMillis(expiresAt)
	room.Active = active != 0
	room.CreatedAt = fromMillis(createdAt)
	room.UpdatedAt = fromMillis(updated)
	return room, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
