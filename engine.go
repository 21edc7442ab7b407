package secretroom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/internos-labs/secretroom/answer"
	"github.com/internos-labs/secretroom/internal"
	"github.com/internos-labs/secretroom/internal/lockout"
	"github.com/internos-labs/secretroom/internal/nonce"
)

// Engine defines a public type used by secretroom APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	redis      redis.UniversalClient
	nonces     *nonce.Store
	guard      *lockout.Guard
	answerHash *answer.Hasher

	rooms    RoomProvider
	ledger   AttemptLedger
	lockouts LockoutProvider
	storage  StorageProvider

	audit   *auditDispatcher
	metrics *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// originHash derives the non-reversible origin identifier for the caller on
// ctx. An absent client IP still hashes deterministically, so unattributed
// callers share one lockout budget instead of escaping it.
func (e *Engine) originHash(ctx context.Context) string {
	return internal.HashOrigin(e.config.Origin.Pepper, clientIPFromContext(ctx))
}

// NonceForRoom issues a single-use solve nonce for an existing, available
// room. The nonce must accompany the subsequent solve call and expires after
// the configured TTL.
//
// NonceForRoom may return an error when input validation, dependency calls, or security checks fail.
// NonceForRoom does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) NonceForRoom(ctx context.Context, roomID int64) (NonceGrant, error) {
	if e == nil || e.nonces == nil {
		return NonceGrant{}, ErrEngineNotReady
	}

	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		e.metricInc(MetricNonceRejected)
		e.emitAudit(ctx, auditEventNonceRejected, false, roomID, e.originHash(ctx), err, nil)
		return NonceGrant{}, err
	}
	if room, err = e.ensureAvailable(ctx, room); err != nil {
		e.metricInc(MetricNonceRejected)
		e.emitAudit(ctx, auditEventNonceRejected, false, roomID, e.originHash(ctx), err, nil)
		return NonceGrant{}, err
	}

	token, err := e.nonces.Issue(ctx, room.ID)
	if err != nil {
		return NonceGrant{}, fmt.Errorf("%w: %v", ErrNonceUnavailable, err)
	}

	e.metricInc(MetricNonceIssued)
	e.emitAudit(ctx, auditEventNonceIssued, true, room.ID, e.originHash(ctx), nil, nil)

	return NonceGrant{
		Nonce:     token,
		ExpiresIn: int(e.nonces.TTL() / time.Second),
	}, nil
}

// RoomSolveMeta returns the public pre-solve view of a room: title, hint,
// policy snapshot, and whether the calling origin is currently locked out.
// Neither the answer nor the content is ever included.
//
// RoomSolveMeta may return an error when input validation, dependency calls, or security checks fail.
// RoomSolveMeta does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RoomSolveMeta(ctx context.Context, roomID int64) (SolveMeta, error) {
	if e == nil || e.guard == nil {
		return SolveMeta{}, ErrEngineNotReady
	}

	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return SolveMeta{}, err
	}
	if room, err = e.ensureAvailable(ctx, room); err != nil {
		return SolveMeta{}, err
	}

	meta := SolveMeta{
		ID:        room.ID,
		Title:     room.Title,
		Hint:      room.Hint,
		Policy:    room.Policy,
		Remaining: remainingViews(room),
		Limit:     optionalInt(room.ViewLimit),
		ExpiresAt: optionalTime(room.ExpiresAt),
	}

	until, blocked, err := e.guard.CheckBlocked(ctx, room.ID, e.originHash(ctx))
	if err != nil {
		return SolveMeta{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if blocked {
		meta.Locked = true
		sec := (&LockoutError{RetryAfter: time.Until(until)}).RetryAfterSec()
		meta.RetryAfterSec = &sec
	}

	return meta, nil
}

// ensureAvailable rejects exhausted and expired rooms. A room found past its
// expiry while still active is deactivated in place (lazy expiry); a CAS
// conflict on that write means another call already healed it, which is fine.
func (e *Engine) ensureAvailable(ctx context.Context, room Room) (Room, error) {
	now := time.Now()

	if roomExpired(room, now) {
		if room.Active {
			err := e.rooms.UpdateRoomState(ctx, room.ID, room.Version, room.ViewsUsed, false)
			if err != nil && !errors.Is(err, ErrRoomVersionConflict) {
				return Room{}, err
			}
			room.Active = false
		}
		return Room{}, ErrGone
	}
	if !room.Active {
		return Room{}, ErrGone
	}

	return room, nil
}
