package secretroom

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func solveTestConfig() Config {
	cfg := defaultConfig()
	cfg.Origin.Pepper = "test-pepper-0123456789abcdef"
	cfg.Lockout.Threshold = 3
	cfg.Lockout.Window = time.Minute
	cfg.Lockout.Duration = 5 * time.Minute
	// Floor-level argon2id parameters keep unit tests fast.
	cfg.Answer.Memory = 8 * 1024
	cfg.Answer.Time = 1
	cfg.Answer.Parallelism = 1
	cfg.Answer.KeyLength = 16
	return cfg
}

// memStore is the in-memory provider fake backing engine unit tests. It
// implements RoomProvider, AttemptLedger, and LockoutProvider with the same
// semantics the SQLite store has, version CAS included.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	rooms    map[int64]Room
	attempts []Attempt
	blocks   map[string]time.Time

	failUpdateState error // when set, UpdateRoomState returns it once
}

func newMemStore() *memStore {
	return &memStore{
		nextID: 1,
		rooms:  make(map[int64]Room),
		blocks: make(map[string]time.Time),
	}
}

func (m *memStore) GetRoom(_ context.Context, id int64) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (m *memStore) CreateRoom(_ context.Context, room Room) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.ID = m.nextID
	m.nextID++
	m.rooms[room.ID] = room
	return room.ID, nil
}

func (m *memStore) UpdateRoomMeta(_ context.Context, room Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rooms[room.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = room.Title
	stored.Hint = room.Hint
	stored.AnswerHash = room.AnswerHash
	stored.Visibility = room.Visibility
	stored.Policy = room.Policy
	stored.ViewLimit = room.ViewLimit
	stored.ExpiresAt = room.ExpiresAt
	stored.UpdatedAt = room.UpdatedAt
	m.rooms[room.ID] = stored
	return nil
}

func (m *memStore) UpdateRoomState(_ context.Context, id int64, expectedVersion uint64, viewsUsed int, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdateState != nil {
		err := m.failUpdateState
		m.failUpdateState = nil
		return err
	}
	room, ok := m.rooms[id]
	if !ok {
		return ErrNotFound
	}
	if room.Version != expectedVersion {
		return ErrRoomVersionConflict
	}
	room.ViewsUsed = viewsUsed
	room.Active = active
	room.Version++
	m.rooms[id] = room
	return nil
}

func (m *memStore) DeleteRoom(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(m.rooms, id)
	return nil
}

func (m *memStore) ListPublicRooms(_ context.Context, createdBefore time.Time, limit int) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Room, 0, limit)
	for _, room := range m.rooms {
		if room.Visibility == VisibilityPublic && room.Active && room.CreatedAt.Before(createdBefore) {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) AppendAttempt(_ context.Context, attempt Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *memStore) CountFailedSince(_ context.Context, roomID int64, originHash string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lastCorrect time.Time
	for _, a := range m.attempts {
		if a.RoomID == roomID && a.OriginHash == originHash && a.Correct && a.CreatedAt.After(lastCorrect) {
			lastCorrect = a.CreatedAt
		}
	}
	var n int64
	for _, a := range m.attempts {
		if a.RoomID == roomID && a.OriginHash == originHash && !a.Correct &&
			a.CreatedAt.After(since) && a.CreatedAt.After(lastCorrect) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountSince(_ context.Context, roomID int64, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.attempts {
		if a.RoomID == roomID && a.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountCorrectSince(_ context.Context, roomID int64, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.attempts {
		if a.RoomID == roomID && a.Correct && a.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) blockKey(roomID int64, originHash string) string {
	return fmt.Sprintf("%d:%s", roomID, originHash)
}

func (m *memStore) FindActiveBlock(_ context.Context, roomID int64, originHash string, now time.Time) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.blocks[m.blockKey(roomID, originHash)]
	if !ok || !until.After(now) {
		return time.Time{}, false, nil
	}
	return until, true, nil
}

func (m *memStore) CreateBlock(_ context.Context, roomID int64, originHash string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[m.blockKey(roomID, originHash)] = until
	return nil
}

func (m *memStore) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// fakeStorage satisfies StorageProvider without real object storage.
type fakeStorage struct {
	readErr error
}

func (f *fakeStorage) IssueReadURL(_ context.Context, fileRef string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return "https://objects.test/o/" + fileRef + "?sig=fake", nil
}

func (f *fakeStorage) IssueUploadURL(_ context.Context, fileName, _ string) (UploadGrant, error) {
	return UploadGrant{
		UploadURL: "https://objects.test/u/" + fileName + "?sig=fake",
		FileRef:   "1700000000/00000000-0000-0000-0000-000000000000/" + fileName,
	}, nil
}

type testEngineOption func(*Builder)

func buildTestEngine(t *testing.T, cfg Config, opts ...testEngineOption) (*Engine, *memStore, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := newMemStore()

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRooms(store).
		WithLedger(store).
		WithLockouts(store).
		WithStorage(&fakeStorage{})
	for _, opt := range opts {
		opt(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, store, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

const testAnswer = "correct-horse-battery"

func createTestRoom(t *testing.T, engine *Engine, in CreateRoomInput) int64 {
	t.Helper()

	if in.Title == "" {
		in.Title = "test room"
	}
	if in.Answer == "" {
		in.Answer = testAnswer
	}
	if in.Policy == "" {
		in.Policy = PolicyUnlimited
	}
	if in.Content.Kind == "" {
		in.Content = ContentSpec{Kind: ContentText, Text: "the secret"}
	}

	owner := CallerIdentity{UserID: "owner-1", Name: "owner"}
	res, err := engine.CreateRoom(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	return res.ID
}

func solveAttempt(t *testing.T, engine *Engine, ctx context.Context, roomID int64, answerText string) (SolveResult, error) {
	t.Helper()

	grant, err := engine.NonceForRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("NonceForRoom failed: %v", err)
	}
	return engine.Solve(ctx, roomID, grant.Nonce, answerText)
}
