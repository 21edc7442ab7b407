package secretroom

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventNonceIssued    = "nonce_issued"
	auditEventNonceRejected  = "nonce_rejected"
	auditEventSolveSuccess   = "solve_success"
	auditEventSolveFailure   = "solve_failure"
	auditEventSolveLocked    = "solve_locked"
	auditEventSolveGone      = "solve_gone"
	auditEventLockoutCreated = "lockout_created"
	auditEventRoomCreated    = "room_created"
	auditEventRoomUpdated    = "room_updated"
	auditEventRoomDeleted    = "room_deleted"
	auditEventUploadGranted  = "upload_granted"
	auditEventHashUpgraded   = "answer_hash_upgraded"
)

// AuditErrorCode defines a public type used by secretroom APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrNotFound        AuditErrorCode = "room_not_found"
	auditErrGone            AuditErrorCode = "room_gone"
	auditErrLocked          AuditErrorCode = "locked"
	auditErrForbidden       AuditErrorCode = "forbidden"
	auditErrValidation      AuditErrorCode = "validation_error"
	auditErrVersionConflict AuditErrorCode = "version_conflict"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	roomID int64,
	originHash string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		RoomID:     roomID,
		OriginHash: originHash,
		SolverID:   solverIDFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrLocked):
		return auditErrLocked
	case errors.Is(err, ErrGone):
		return auditErrGone
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrRoomVersionConflict):
		return auditErrVersionConflict
	case errors.Is(err, ErrNonceUnavailable),
		errors.Is(err, ErrLockoutUnavailable),
		errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
