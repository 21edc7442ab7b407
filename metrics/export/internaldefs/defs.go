package internaldefs

import (
	secretroom "github.com/internos-labs/secretroom"
)

// CounterDef defines a public type used by secretroom APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   secretroom.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by secretroom APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   secretroom.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the secret room engine.
var CounterDefs = []CounterDef{
	{ID: secretroom.MetricNonceIssued, Name: "secretroom_nonce_issued_total", Help: "Issued solve nonces."},
	{ID: secretroom.MetricNonceRejected, Name: "secretroom_nonce_rejected_total", Help: "Nonce requests rejected for unknown or unavailable rooms."},
	{ID: secretroom.MetricSolveSuccess, Name: "secretroom_solve_success_total", Help: "Correct solve attempts."},
	{ID: secretroom.MetricSolveFailure, Name: "secretroom_solve_failure_total", Help: "Wrong-answer solve attempts."},
	{ID: secretroom.MetricSolveLocked, Name: "secretroom_solve_locked_total", Help: "Solve attempts rejected by an active lockout."},
	{ID: secretroom.MetricSolveGone, Name: "secretroom_solve_gone_total", Help: "Solve attempts against exhausted or expired rooms."},
	{ID: secretroom.MetricSolveNotFound, Name: "secretroom_solve_not_found_total", Help: "Solve attempts rejected before answer verification."},
	{ID: secretroom.MetricLockoutCreated, Name: "secretroom_lockout_created_total", Help: "Durable lockouts created by threshold escalation."},
	{ID: secretroom.MetricVersionConflict, Name: "secretroom_version_conflict_total", Help: "Room state writes retried after a version conflict."},
	{ID: secretroom.MetricRoomCreated, Name: "secretroom_room_created_total", Help: "Created rooms."},
	{ID: secretroom.MetricRoomUpdated, Name: "secretroom_room_updated_total", Help: "Owner room updates."},
	{ID: secretroom.MetricRoomDeleted, Name: "secretroom_room_deleted_total", Help: "Deleted rooms."},
	{ID: secretroom.MetricUploadGranted, Name: "secretroom_upload_granted_total", Help: "Issued upload grants."},
	{ID: secretroom.MetricListingServed, Name: "secretroom_listing_served_total", Help: "Served public listing pages."},
	{ID: secretroom.MetricAnswerHashUpgraded, Name: "secretroom_answer_hash_upgraded_total", Help: "Answer hashes rewritten with stronger parameters."},
}

// HistogramDefs is an exported constant or variable used by the secret room engine.
var HistogramDefs = []HistogramDef{
	{ID: secretroom.MetricSolveLatency, Name: "secretroom_solve_latency_seconds", Help: "Solve latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the secret room engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the secret room engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
