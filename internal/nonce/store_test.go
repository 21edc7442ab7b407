package nonce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewStore(client, "sn", ttl)
}

func TestIssueAndConsume(t *testing.T) {
	_, store := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, 42)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	roomID, err := store.Consume(ctx, token)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if roomID != 42 {
		t.Fatalf("expected roomID 42, got %d", roomID)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	_, store := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := store.Consume(ctx, token); err != nil {
		t.Fatalf("first Consume failed: %v", err)
	}

	if _, err := store.Consume(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Consume: expected ErrNotFound, got %v", err)
	}
}

func TestConsumeUnknownToken(t *testing.T) {
	_, store := newTestStore(t, time.Minute)

	if _, err := store.Consume(context.Background(), "never-issued"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiredTokenIndistinguishableFromUnknown(t *testing.T) {
	mr, store := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, 9)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	_, expiredErr := store.Consume(ctx, token)
	_, unknownErr := store.Consume(ctx, "never-issued")

	if !errors.Is(expiredErr, ErrNotFound) {
		t.Fatalf("expired token: expected ErrNotFound, got %v", expiredErr)
	}
	if !errors.Is(expiredErr, unknownErr) && expiredErr.Error() != unknownErr.Error() {
		t.Fatalf("expired and unknown tokens must be indistinguishable: %v vs %v", expiredErr, unknownErr)
	}
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	_, store := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, 13)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, token); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", wins)
	}
}
