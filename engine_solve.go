package secretroom

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/internos-labs/secretroom/internal/nonce"
)

// solveStateRetries bounds the CAS retry loop when concurrent solves race on
// the same room's view state.
const solveStateRetries = 3

// Solve runs one unlock attempt against a room. The nonce must have been
// issued by [Engine.NonceForRoom] and is consumed here whether or not the
// answer is correct.
//
// A wrong answer and an unknown room are both reported as [ErrNotFound];
// callers cannot distinguish them. Every attempt that reaches answer
// verification is appended to the attempt ledger, and the failure that
// crosses the lockout threshold returns a [*LockoutError] instead of the
// generic failure.
//
// Solve may return an error when input validation, dependency calls, or security checks fail.
// Solve does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Solve(ctx context.Context, roomID int64, nonceToken, answerText string) (SolveResult, error) {
	if e == nil || e.nonces == nil || e.guard == nil || e.answerHash == nil {
		return SolveResult{}, ErrEngineNotReady
	}

	start := time.Now()
	origin := e.originHash(ctx)

	// The nonce is consumed before anything else so a rejected attempt still
	// burns it. Unknown, expired, and mismatched nonces all collapse into
	// ErrNotFound.
	nonceRoomID, err := e.nonces.Consume(ctx, nonceToken)
	if err != nil {
		if errors.Is(err, nonce.ErrNotFound) {
			e.metricInc(MetricSolveNotFound)
			e.emitAudit(ctx, auditEventSolveFailure, false, roomID, origin, ErrNotFound, func() map[string]string {
				return map[string]string{"reason": "nonce"}
			})
			return SolveResult{}, ErrNotFound
		}
		return SolveResult{}, fmt.Errorf("%w: %v", ErrNonceUnavailable, err)
	}
	if nonceRoomID != roomID {
		e.metricInc(MetricSolveNotFound)
		e.emitAudit(ctx, auditEventSolveFailure, false, roomID, origin, ErrNotFound, func() map[string]string {
			return map[string]string{"reason": "nonce_room_mismatch"}
		})
		return SolveResult{}, ErrNotFound
	}

	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricSolveNotFound)
			e.emitAudit(ctx, auditEventSolveFailure, false, roomID, origin, ErrNotFound, nil)
		}
		return SolveResult{}, err
	}

	if room, err = e.ensureAvailable(ctx, room); err != nil {
		if errors.Is(err, ErrGone) {
			e.metricInc(MetricSolveGone)
			e.emitAudit(ctx, auditEventSolveGone, false, roomID, origin, ErrGone, nil)
		}
		return SolveResult{}, err
	}

	until, blocked, err := e.guard.CheckBlocked(ctx, room.ID, origin)
	if err != nil {
		return SolveResult{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if blocked {
		lockErr := &LockoutError{RetryAfter: time.Until(until)}
		e.metricInc(MetricSolveLocked)
		e.emitAudit(ctx, auditEventSolveLocked, false, room.ID, origin, lockErr, nil)
		return SolveResult{}, lockErr
	}

	correct, err := e.answerHash.Verify(answerText, room.AnswerHash)
	if err != nil {
		return SolveResult{}, err
	}

	if err := e.ledger.AppendAttempt(ctx, Attempt{
		RoomID:     room.ID,
		OriginHash: origin,
		SolverID:   solverIDFromContext(ctx),
		Correct:    correct,
		LatencyMs:  int(time.Since(start).Milliseconds()),
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return SolveResult{}, err
	}

	if !correct {
		return SolveResult{}, e.solveFailure(ctx, room.ID, origin)
	}

	result, err := e.solveSuccess(ctx, room, origin, answerText)
	if err != nil {
		return SolveResult{}, err
	}

	e.metricInc(MetricSolveSuccess)
	e.metricObserve(MetricSolveLatency, time.Since(start))
	e.emitAudit(ctx, auditEventSolveSuccess, true, room.ID, origin, nil, func() map[string]string {
		return map[string]string{"policy": string(room.Policy)}
	})

	return result, nil
}

func (e *Engine) solveFailure(ctx context.Context, roomID int64, origin string) error {
	until, locked, err := e.guard.RecordFailure(ctx, roomID, origin)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	if locked {
		lockErr := &LockoutError{RetryAfter: time.Until(until)}
		e.metricInc(MetricSolveLocked)
		e.metricInc(MetricLockoutCreated)
		e.emitAudit(ctx, auditEventLockoutCreated, false, roomID, origin, lockErr, func() map[string]string {
			return map[string]string{"until": until.UTC().Format(time.RFC3339)}
		})
		return lockErr
	}

	e.metricInc(MetricSolveFailure)
	e.emitAudit(ctx, auditEventSolveFailure, false, roomID, origin, ErrNotFound, nil)
	return ErrNotFound
}

func (e *Engine) solveSuccess(ctx context.Context, room Room, origin, answerText string) (SolveResult, error) {
	if err := e.guard.Clear(ctx, room.ID, origin); err != nil {
		// Counter cleanup is advisory: a stale counter expires with the
		// window on its own.
		log.Printf("secretroom: failure counter clear failed: %v", err)
	}

	if e.config.Answer.UpgradeOnSolve {
		e.maybeUpgradeHash(ctx, room, answerText)
	}

	room, err := e.commitPolicy(ctx, room)
	if err != nil {
		return SolveResult{}, err
	}

	content, err := e.discloseContent(ctx, room)
	if err != nil {
		return SolveResult{}, err
	}

	return SolveResult{
		OK:          true,
		Content:     content,
		PolicyState: policyState(room),
	}, nil
}

// commitPolicy applies the disclosure policy to the room's view state and
// persists it under the version CAS. On conflict the room is reloaded and
// re-checked: the loser of a ONCE race observes the winner's deactivation as
// ErrGone rather than a double disclosure.
func (e *Engine) commitPolicy(ctx context.Context, room Room) (Room, error) {
	for attempt := 0; attempt < solveStateRetries; attempt++ {
		updated := room
		applyPolicy(&updated)

		err := e.rooms.UpdateRoomState(ctx, updated.ID, room.Version, updated.ViewsUsed, updated.Active)
		if err == nil {
			updated.Version = room.Version + 1
			return updated, nil
		}
		if !errors.Is(err, ErrRoomVersionConflict) {
			return Room{}, err
		}

		e.metricInc(MetricVersionConflict)

		room, err = e.rooms.GetRoom(ctx, updated.ID)
		if err != nil {
			return Room{}, err
		}
		if room, err = e.ensureAvailable(ctx, room); err != nil {
			if errors.Is(err, ErrGone) {
				e.metricInc(MetricSolveGone)
				e.emitAudit(ctx, auditEventSolveGone, false, updated.ID, "", ErrGone, func() map[string]string {
					return map[string]string{"reason": "policy_race"}
				})
			}
			return Room{}, err
		}
	}

	return Room{}, ErrRoomVersionConflict
}

func (e *Engine) discloseContent(ctx context.Context, room Room) (Content, error) {
	switch room.ContentKind {
	case ContentImage:
		if e.storage == nil {
			return Content{}, ErrEngineNotReady
		}
		signed, err := e.storage.IssueReadURL(ctx, room.ImageRef)
		if err != nil {
			return Content{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return Content{
			Kind:      ContentImage,
			SignedURL: signed,
			Alt:       room.ImageAlt,
		}, nil
	default:
		return Content{
			Kind: ContentText,
			Text: room.ContentText,
		}, nil
	}
}

// maybeUpgradeHash rewrites the stored answer digest with the current work
// parameters when the stored one is weaker. Best effort: the solve already
// succeeded and a skipped upgrade retries on the next correct solve.
func (e *Engine) maybeUpgradeHash(ctx context.Context, room Room, answerText string) {
	needs, err := e.answerHash.NeedsUpgrade(room.AnswerHash)
	if err != nil || !needs {
		return
	}

	rehashed, err := e.answerHash.Hash(answerText)
	if err != nil {
		return
	}

	upgraded := room
	upgraded.AnswerHash = rehashed
	if err := e.rooms.UpdateRoomMeta(ctx, upgraded); err != nil {
		log.Printf("secretroom: answer hash upgrade failed: %v", err)
		return
	}

	e.metricInc(MetricAnswerHashUpgraded)
	e.emitAudit(ctx, auditEventHashUpgraded, true, room.ID, "", nil, nil)
}
