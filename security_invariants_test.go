package secretroom

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newInvariantEngine(t *testing.T, cfg Config) (*Engine, *memStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := newMemStore()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRooms(store).
		WithLedger(store).
		WithLockouts(store).
		WithStorage(&fakeStorage{}).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, store, mr, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func TestSecurityInvariantNonceExpiresWithTTL(t *testing.T) {
	cfg := solveTestConfig()
	cfg.Nonce.TTL = 2 * time.Second

	engine, _, mr, done := newInvariantEngine(t, cfg)
	defer done()

	roomID := createTestRoom(t, engine, CreateRoomInput{})
	ctx := WithClientIP(context.Background(), "203.0.113.60")

	grant, err := engine.NonceForRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("NonceForRoom failed: %v", err)
	}

	mr.FastForward(3 * time.Second)

	if _, err := engine.Solve(ctx, roomID, grant.Nonce, testAnswer); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired nonce to report ErrNotFound, got %v", err)
	}
}

func TestSecurityInvariantNonceSingleWinnerUnderConcurrency(t *testing.T) {
	engine, _, _, done := newInvariantEngine(t, solveTestConfig())
	defer done()

	roomID := createTestRoom(t, engine, CreateRoomInput{})
	ctx := WithClientIP(context.Background(), "203.0.113.61")

	grant, err := engine.NonceForRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("NonceForRoom failed: %v", err)
	}

	const solvers = 8
	results := make([]error, solvers)

	var wg sync.WaitGroup
	wg.Add(solvers)
	for i := 0; i < solvers; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.Solve(ctx, roomID, grant.Nonce, testAnswer)
		}(i)
	}
	wg.Wait()

	var winners int
	for _, err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, ErrNotFound) {
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one solve to consume the nonce, got %d", winners)
	}
}

func TestSecurityInvariantAnswerNeverStoredPlaintext(t *testing.T) {
	engine, store, _, done := newInvariantEngine(t, solveTestConfig())
	defer done()

	roomID := createTestRoom(t, engine, CreateRoomInput{Answer: "hunter2-plaintext"})

	store.mu.Lock()
	hash := store.rooms[roomID].AnswerHash
	store.mu.Unlock()

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected PHC argon2id hash, got %q", hash)
	}
	if strings.Contains(hash, "hunter2-plaintext") {
		t.Fatal("plaintext answer leaked into the stored hash")
	}
}

func TestSecurityInvariantLockoutSurvivesCounterLoss(t *testing.T) {
	engine, store, mr, done := newInvariantEngine(t, solveTestConfig())
	defer done()

	roomID := createTestRoom(t, engine, CreateRoomInput{})
	ctx := WithClientIP(context.Background(), "203.0.113.62")

	// Drive the origin over the threshold.
	for i := 0; i < 3; i++ {
		if _, err := solveAttempt(t, engine, ctx, roomID, "wrong"); err == nil {
			t.Fatal("expected wrong answer to fail")
		}
	}

	store.mu.Lock()
	blocks := len(store.blocks)
	store.mu.Unlock()
	if blocks == 0 {
		t.Fatal("expected a durable block row after crossing the threshold")
	}

	// Losing every Redis key must not release the lockout.
	mr.FlushAll()

	var lockErr *LockoutError
	_, err := solveAttempt(t, engine, ctx, roomID, testAnswer)
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected lockout to persist after counter loss, got %v", err)
	}
}

func TestSecurityInvariantWrongAnswerAndUnknownRoomShareOneError(t *testing.T) {
	engine, _, _, done := newInvariantEngine(t, solveTestConfig())
	defer done()

	roomID := createTestRoom(t, engine, CreateRoomInput{})
	ctx := WithClientIP(context.Background(), "203.0.113.63")

	_, wrongErr := solveAttempt(t, engine, ctx, roomID, "wrong")
	if !errors.Is(wrongErr, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong answer, got %v", wrongErr)
	}

	grant, err := engine.NonceForRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("NonceForRoom failed: %v", err)
	}
	_, unknownErr := engine.Solve(ctx, roomID+1000, grant.Nonce, testAnswer)
	if !errors.Is(unknownErr, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown room, got %v", unknownErr)
	}

	if wrongErr.Error() != unknownErr.Error() {
		t.Fatalf("observable errors must match: %q vs %q", wrongErr, unknownErr)
	}
}
