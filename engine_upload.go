package secretroom

import (
	"context"
	"fmt"
)

var allowedUploadMIMETypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

// IssueUpload grants the authenticated caller a time-limited upload
// reference for image content. The returned FileRef is what a subsequent
// [Engine.CreateRoom] call names in its content spec.
//
// IssueUpload may return an error when input validation, dependency calls, or security checks fail.
// IssueUpload does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssueUpload(ctx context.Context, caller CallerIdentity, fileName, mimeType string) (UploadGrant, error) {
	if e == nil || e.storage == nil {
		return UploadGrant{}, ErrEngineNotReady
	}
	if caller.UserID == "" {
		return UploadGrant{}, ErrForbidden
	}
	if fileName == "" {
		return UploadGrant{}, fmt.Errorf("%w: file name required", ErrValidation)
	}
	if _, ok := allowedUploadMIMETypes[mimeType]; !ok {
		return UploadGrant{}, fmt.Errorf("%w: unsupported content type %q", ErrValidation, mimeType)
	}

	grant, err := e.storage.IssueUploadURL(ctx, fileName, mimeType)
	if err != nil {
		return UploadGrant{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricUploadGranted)
	e.emitAudit(ctx, auditEventUploadGranted, true, 0, "", nil, func() map[string]string {
		return map[string]string{"file_ref": grant.FileRef}
	})

	return grant, nil
}
