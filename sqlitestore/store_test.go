package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	secretroom "github.com/internos-labs/secretroom"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "secretroom.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRoom(now time.Time) secretroom.Room {
	return secretroom.Room{
		OwnerID:     "user-1",
		OwnerName:   "ada",
		Title:       "riddle of the day",
		Hint:        "a fish",
		AnswerHash:  "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		ContentKind: secretroom.ContentText,
		ContentText: "the treasure is under the stairs",
		Visibility:  secretroom.VisibilityPublic,
		Policy:      secretroom.PolicyLimited,
		ViewLimit:   3,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateGetRoomRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 4, 9, 30, 0, 0, time.UTC)

	id, err := store.CreateRoom(context.Background(), sampleRoom(now))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	got, err := store.GetRoom(context.Background(), id)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.Title != "riddle of the day" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Policy != secretroom.PolicyLimited || got.ViewLimit != 3 {
		t.Fatalf("policy = %v limit = %d", got.Policy, got.ViewLimit)
	}
	if !got.Active || got.Version != 0 {
		t.Fatalf("active = %v version = %d, want active v0", got.Active, got.Version)
	}
	if !got.ExpiresAt.IsZero() {
		t.Fatalf("expires_at = %v, want never", got.ExpiresAt)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, now)
	}
}

func TestGetRoomUnknown(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)

	if _, err := store.GetRoom(context.Background(), 4242); !errors.Is(err, secretroom.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateRoomStateCAS(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	id, err := store.CreateRoom(ctx, sampleRoom(time.Now().UTC()))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if err := store.UpdateRoomState(ctx, id, 0, 1, true); err != nil {
		t.Fatalf("first CAS write: %v", err)
	}

	// Same expected version again must conflict: the first write bumped it.
	err = store.UpdateRoomState(ctx, id, 0, 2, true)
	if !errors.Is(err, secretroom.ErrRoomVersionConflict) {
		t.Fatalf("stale CAS err = %v, want ErrRoomVersionConflict", err)
	}

	got, err := store.GetRoom(ctx, id)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.Version != 1 || got.ViewsUsed != 1 {
		t.Fatalf("version = %d views = %d, want 1/1", got.Version, got.ViewsUsed)
	}

	if err := store.UpdateRoomState(ctx, id, 1, 2, false); err != nil {
		t.Fatalf("second CAS write: %v", err)
	}
	got, err = store.GetRoom(ctx, id)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.Active {
		t.Fatal("room still active after deactivating write")
	}
}

func TestUpdateRoomStateUnknownRoom(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)

	err := store.UpdateRoomState(context.Background(), 999, 0, 1, true)
	if !errors.Is(err, secretroom.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateRoomMeta(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	id, err := store.CreateRoom(ctx, sampleRoom(time.Now().UTC()))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	room, err := store.GetRoom(ctx, id)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	room.Title = "renamed"
	room.Visibility = secretroom.VisibilityPrivate
	if err := store.UpdateRoomMeta(ctx, room); err != nil {
		t.Fatalf("update meta: %v", err)
	}

	got, err := store.GetRoom(ctx, id)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.Title != "renamed" || got.Visibility != secretroom.VisibilityPrivate {
		t.Fatalf("meta not applied: %q %v", got.Title, got.Visibility)
	}
	if got.Version != room.Version {
		t.Fatal("meta update must not touch the version")
	}
}

func TestDeleteRoom(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	id, err := store.CreateRoom(ctx, sampleRoom(time.Now().UTC()))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if err := store.DeleteRoom(ctx, id); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	if _, err := store.GetRoom(ctx, id); !errors.Is(err, secretroom.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}
	if err := store.DeleteRoom(ctx, id); !errors.Is(err, secretroom.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListPublicRoomsFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		room := sampleRoom(base.Add(time.Duration(i) * time.Minute))
		if _, err := store.CreateRoom(ctx, room); err != nil {
			t.Fatalf("create public room: %v", err)
		}
	}

	private := sampleRoom(base.Add(10 * time.Minute))
	private.Visibility = secretroom.VisibilityPrivate
	if _, err := store.CreateRoom(ctx, private); err != nil {
		t.Fatalf("create private room: %v", err)
	}
	inactive := sampleRoom(base.Add(11 * time.Minute))
	inactive.Active = false
	if _, err := store.CreateRoom(ctx, inactive); err != nil {
		t.Fatalf("create inactive room: %v", err)
	}

	page, err := store.ListPublicRooms(ctx, base.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len = %d, want 2", len(page))
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Fatal("listing not newest-first")
	}

	rest, err := store.ListPublicRooms(ctx, page[1].CreatedAt, 10)
	if err != nil {
		t.Fatalf("list rest: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("rest len = %d, want 1", len(rest))
	}
}

func TestAttemptCounts(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	record := func(origin string, correct bool, at time.Time) {
		t.Helper()
		err := store.AppendAttempt(ctx, secretroom.Attempt{
			RoomID:     1,
			OriginHash: origin,
			Correct:    correct,
			CreatedAt:  at,
		})
		if err != nil {
			t.Fatalf("append attempt: %v", err)
		}
	}

	record("o1", false, now.Add(-time.Minute))
	record("o1", false, now.Add(-30*time.Second))
	record("o1", true, now.Add(-10*time.Second))
	record("o1", false, now.Add(-5*time.Second))
	record("o2", false, now.Add(-20*time.Second))
	record("o1", false, now.Add(-2*time.Hour)) // outside the window

	since := now.Add(-time.Hour)

	// The success at -10s resets o1's failure streak: only the failure
	// after it counts.
	failed, err := store.CountFailedSince(ctx, 1, "o1", since)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}

	total, err := store.CountSince(ctx, 1, since)
	if err != nil {
		t.Fatalf("count total: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}

	correct, err := store.CountCorrectSince(ctx, 1, since)
	if err != nil {
		t.Fatalf("count correct: %v", err)
	}
	if correct != 1 {
		t.Fatalf("correct = %d, want 1", correct)
	}
}

func TestLockoutRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, found, err := store.FindActiveBlock(ctx, 1, "o1", now); err != nil || found {
		t.Fatalf("clean pair: found=%v err=%v", found, err)
	}

	until := now.Add(15 * time.Minute).Truncate(time.Millisecond)
	if err := store.CreateBlock(ctx, 1, "o1", until); err != nil {
		t.Fatalf("create block: %v", err)
	}

	got, found, err := store.FindActiveBlock(ctx, 1, "o1", now)
	if err != nil {
		t.Fatalf("find block: %v", err)
	}
	if !found || !got.Equal(until) {
		t.Fatalf("block = (%v, %v), want (%v, true)", got, found, until)
	}

	// Upsert extends the same pair instead of failing.
	later := until.Add(10 * time.Minute)
	if err := store.CreateBlock(ctx, 1, "o1", later); err != nil {
		t.Fatalf("extend block: %v", err)
	}
	got, found, err = store.FindActiveBlock(ctx, 1, "o1", now)
	if err != nil || !found {
		t.Fatalf("find extended block: found=%v err=%v", found, err)
	}
	if !got.Equal(later) {
		t.Fatalf("block = %v, want %v", got, later)
	}

	// Past expiry the row is invisible.
	if _, found, err := store.FindActiveBlock(ctx, 1, "o1", later.Add(time.Second)); err != nil || found {
		t.Fatalf("expired block still reported: found=%v err=%v", found, err)
	}
}
