package secretroom

import (
	"context"
	"time"
)

// RoomActivity is the safe owner-facing introspection view for a room.
// It intentionally excludes origin hashes, answers, and per-attempt rows.
type RoomActivity struct {
	RoomID    int64
	Attempts  int64
	Solves    int64
	SolveRate float64
	Window    time.Duration
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// RoomActivity summarizes attempt volume and solve rate for one room over the
// configured stats window. Only the room owner may read it.
//
// RoomActivity may return an error when input validation, dependency calls, or security checks fail.
// RoomActivity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RoomActivity(ctx context.Context, caller CallerIdentity, roomID int64) (RoomActivity, error) {
	if e == nil || e.ledger == nil {
		return RoomActivity{}, ErrEngineNotReady
	}
	if caller.UserID == "" {
		return RoomActivity{}, ErrForbidden
	}

	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return RoomActivity{}, err
	}
	if room.OwnerID != caller.UserID {
		return RoomActivity{}, ErrForbidden
	}

	since := time.Now().Add(-e.config.Listing.StatsWindow)
	attempts, err := e.ledger.CountSince(ctx, room.ID, since)
	if err != nil {
		return RoomActivity{}, err
	}
	solves, err := e.ledger.CountCorrectSince(ctx, room.ID, since)
	if err != nil {
		return RoomActivity{}, err
	}

	activity := RoomActivity{
		RoomID:   room.ID,
		Attempts: attempts,
		Solves:   solves,
		Window:   e.config.Listing.StatsWindow,
	}
	if attempts > 0 {
		activity.SolveRate = float64(solves) / float64(attempts)
	}
	return activity, nil
}

// Health pings the nonce and lockout backend and reports availability with
// the observed round-trip latency.
//
// Health may return an error when input validation, dependency calls, or security checks fail.
// Health does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.redis == nil {
		return HealthStatus{}
	}

	start := time.Now()
	err := e.redis.Ping(ctx).Err()

	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   time.Since(start),
	}
}
