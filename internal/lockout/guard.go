// Package lockout tracks consecutive solve failures per (room, origin) pair
// and escalates to a durable, time-bounded block.
//
// The failure counter lives in Redis for low-latency reads under load; the
// durable attempt ledger is the fallback when the counter is cold, and the
// durable lockout row is the only authority for the block itself. An empty or
// unavailable accelerator therefore degrades to correct-but-slower behavior,
// never to lost protection.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates a lockout backend (Redis or durable store) is
// unreachable.
var ErrUnavailable = errors.New("lockout backend unavailable")

// Config holds brute-force protection tuning. Window bounds the trailing
// failure-counting period; Duration is the length of an escalated block.
type Config struct {
	RedisPrefix string
	Threshold   int
	Window      time.Duration
	Duration    time.Duration
}

// FailureCounter recomputes the failure count from the durable attempt
// ledger when the accelerator counter is absent.
type FailureCounter interface {
	CountFailedSince(ctx context.Context, roomID int64, originHash string, since time.Time) (int64, error)
}

// BlockStore persists durable lockout rows.
type BlockStore interface {
	FindActiveBlock(ctx context.Context, roomID int64, originHash string, now time.Time) (time.Time, bool, error)
	CreateBlock(ctx context.Context, roomID int64, originHash string, until time.Time) error
}

// Guard composes the accelerator counter with the durable ledger and block
// store.
type Guard struct {
	redis  redis.UniversalClient
	ledger FailureCounter
	blocks BlockStore
	config Config
}

// NewGuard creates a lockout [Guard].
func NewGuard(redisClient redis.UniversalClient, ledger FailureCounter, blocks BlockStore, cfg Config) *Guard {
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "sl"
	}
	return &Guard{
		redis:  redisClient,
		ledger: ledger,
		blocks: blocks,
		config: cfg,
	}
}

func (g *Guard) key(roomID int64, originHash string) string {
	return g.config.RedisPrefix + ":" + strconv.FormatInt(roomID, 10) + ":" + originHash
}

// CheckBlocked reads the durable block row fresh on every call — the blocked
// decision itself is never cached. Returns the block expiry when one is
// active.
func (g *Guard) CheckBlocked(ctx context.Context, roomID int64, originHash string) (time.Time, bool, error) {
	until, found, err := g.blocks.FindActiveBlock(ctx, roomID, originHash, time.Now())
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return until, found, nil
}

// RecordFailure advances the windowed failure counter and escalates to a
// durable block once the threshold is reached. The call that crosses the
// threshold reports the block itself — the caller must surface it rather
// than the generic failure.
//
// The caller appends the failed attempt to the durable ledger before calling
// RecordFailure. Counter resolution is therefore a fallback chain: a warm
// Redis counter holds the prior streak and is incremented; on a miss the
// ledger recount already includes the current failure and is used as-is. The
// resolved value is always written back with the window as TTL.
func (g *Guard) RecordFailure(ctx context.Context, roomID int64, originHash string) (time.Time, bool, error) {
	now := time.Now()
	key := g.key(roomID, originHash)

	count, err := g.redis.Get(ctx, key).Int64()
	switch {
	case err == nil:
		count++
	case errors.Is(err, redis.Nil):
		count, err = g.ledger.CountFailedSince(ctx, roomID, originHash, now.Add(-g.config.Window))
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	default:
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := g.redis.Set(ctx, key, count, g.config.Window).Err(); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count >= int64(g.config.Threshold) {
		until := now.Add(g.config.Duration)
		if err := g.blocks.CreateBlock(ctx, roomID, originHash, until); err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return until, true, nil
	}

	return time.Time{}, false, nil
}

// Clear removes the accelerator counter after a successful solve. The
// durable attempt history is an immutable ledger and stays untouched.
func (g *Guard) Clear(ctx context.Context, roomID int64, originHash string) error {
	if err := g.redis.Del(ctx, g.key(roomID, originHash)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FailureCount returns the current accelerator counter value, zero when
// absent.
func (g *Guard) FailureCount(ctx context.Context, roomID int64, originHash string) (int, error) {
	count, err := g.redis.Get(ctx, g.key(roomID, originHash)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(count), nil
}
