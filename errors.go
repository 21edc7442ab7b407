package secretroom

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is an exported constant or variable used by the secret room engine.
	//
	// It deliberately covers unknown rooms, invalid or expired nonces, and
	// wrong answers so that no caller can distinguish "room exists, answer
	// wrong" from "room does not exist".
	ErrNotFound = errors.New("room not found")
	// ErrGone is an exported constant or variable used by the secret room engine.
	ErrGone = errors.New("room no longer available")
	// ErrLocked is an exported constant or variable used by the secret room engine.
	ErrLocked = errors.New("too many failed attempts")
	// ErrForbidden is an exported constant or variable used by the secret room engine.
	ErrForbidden = errors.New("not authorized")
	// ErrValidation is an exported constant or variable used by the secret room engine.
	ErrValidation = errors.New("invalid request")
	// ErrRoomVersionConflict is an exported constant or variable used by the secret room engine.
	ErrRoomVersionConflict = errors.New("room version conflict")
	// ErrNonceUnavailable is an exported constant or variable used by the secret room engine.
	ErrNonceUnavailable = errors.New("nonce backend unavailable")
	// ErrLockoutUnavailable is an exported constant or variable used by the secret room engine.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
	// ErrStorageUnavailable is an exported constant or variable used by the secret room engine.
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the secret room engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockoutError reports an active brute-force block. It unwraps to [ErrLocked]
// so callers can match with errors.Is while still reading the remaining
// block duration.
type LockoutError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry after %ds", e.RetryAfterSec())
}

// Unwrap lets errors.Is(err, ErrLocked) match.
func (e *LockoutError) Unwrap() error {
	return ErrLocked
}

// RetryAfterSec returns the remaining block duration in whole seconds,
// rounded up and never below 1.
func (e *LockoutError) RetryAfterSec() int {
	if e == nil || e.RetryAfter <= 0 {
		return 1
	}
	sec := int((e.RetryAfter + time.Second - 1) / time.Second)
	if sec < 1 {
		sec = 1
	}
	return sec
}
