package secretroom

import (
	"context"
	"time"
)

// Policy is the disclosure cardinality rule for a room: a secret may be
// revealed exactly once, a capped number of times, or without limit.
//
//	Docs: docs/policy.md
type Policy string

const (
	// PolicyOnce is an exported constant or variable used by the secret room engine.
	PolicyOnce Policy = "ONCE"
	// PolicyLimited is an exported constant or variable used by the secret room engine.
	PolicyLimited Policy = "LIMITED"
	// PolicyUnlimited is an exported constant or variable used by the secret room engine.
	PolicyUnlimited Policy = "UNLIMITED"
)

// ContentKind discriminates the two content variants a room can hold.
type ContentKind string

const (
	// ContentText is an exported constant or variable used by the secret room engine.
	ContentText ContentKind = "TEXT"
	// ContentImage is an exported constant or variable used by the secret room engine.
	ContentImage ContentKind = "IMAGE"
)

// Visibility controls whether a room appears in public listings.
type Visibility string

const (
	// VisibilityPublic is an exported constant or variable used by the secret room engine.
	VisibilityPublic Visibility = "PUBLIC"
	// VisibilityPrivate is an exported constant or variable used by the secret room engine.
	VisibilityPrivate Visibility = "PRIVATE"
)

// Room is the durable record behind a published secret. The engine mutates
// view state (ViewsUsed, Active) only through [RoomProvider.UpdateRoomState]
// under a per-room version CAS; everything else is owned by the room CRUD
// surface.
//
// Invariants: ViewsUsed <= ViewLimit whenever ViewLimit > 0; Active=false is
// terminal and never flips back to true.
type Room struct {
	ID         int64
	OwnerID    string
	OwnerName  string
	Title      string
	Hint       string
	AnswerHash string

	ContentKind ContentKind
	ContentText string
	ImageRef    string
	ImageAlt    string

	Visibility Visibility
	Policy     Policy
	ViewLimit  int // 0 = no cap
	ViewsUsed  int
	ExpiresAt  time.Time // zero = never expires
	Active     bool

	// Version is bumped by the provider on every state write and guards
	// concurrent policy mutation via compare-and-swap.
	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attempt is one immutable row in the solve attempt ledger. Attempts are
// appended on every solve call, correct or not, and never updated or deleted.
type Attempt struct {
	RoomID     int64
	OriginHash string
	SolverID   string // optional anonymous-solver correlation id
	Correct    bool
	LatencyMs  int
	CreatedAt  time.Time
}

// Lockout is a durable, time-bounded block on further solve attempts for a
// (room, origin) pair. Rows expire by timestamp comparison at read time; the
// engine never deletes them.
type Lockout struct {
	RoomID     int64
	OriginHash string
	Until      time.Time
}

// CallerIdentity is the optional authenticated-caller capability supplied by
// the identity collaborator. The engine never resolves identity itself; room
// CRUD methods take the identity as an explicit argument.
type CallerIdentity struct {
	UserID string
	Name   string
}

// RoomProvider is the authoritative store for rooms. Implementations must
// return [ErrNotFound] for unknown room ids and [ErrRoomVersionConflict] when
// UpdateRoomState observes a stale version.
//
//	Docs: docs/providers.md
type RoomProvider interface {
	GetRoom(ctx context.Context, id int64) (Room, error)
	CreateRoom(ctx context.Context, room Room) (int64, error)
	UpdateRoomMeta(ctx context.Context, room Room) error
	// UpdateRoomState applies a policy-directed view-state mutation. The write
	// must succeed only when the stored version equals expectedVersion, and
	// must bump the version on success.
	UpdateRoomState(ctx context.Context, id int64, expectedVersion uint64, viewsUsed int, active bool) error
	DeleteRoom(ctx context.Context, id int64) error
	ListPublicRooms(ctx context.Context, createdBefore time.Time, limit int) ([]Room, error)
}

// AttemptLedger is the append-only record of solve attempts. CountFailedSince
// backs the lockout guard's durable fallback and must not count failures
// older than the origin's most recent correct attempt; the windowed counts
// back public listing statistics.
type AttemptLedger interface {
	AppendAttempt(ctx context.Context, attempt Attempt) error
	CountFailedSince(ctx context.Context, roomID int64, originHash string, since time.Time) (int64, error)
	CountSince(ctx context.Context, roomID int64, since time.Time) (int64, error)
	CountCorrectSince(ctx context.Context, roomID int64, since time.Time) (int64, error)
}

// LockoutProvider stores durable lockout rows. FindActiveBlock must compare
// against the supplied now and ignore rows whose until has passed; CreateBlock
// may supersede an existing row for the same (room, origin) pair.
type LockoutProvider interface {
	FindActiveBlock(ctx context.Context, roomID int64, originHash string, now time.Time) (time.Time, bool, error)
	CreateBlock(ctx context.Context, roomID int64, originHash string, until time.Time) error
}

// UploadGrant is a time-limited upload reference issued by the storage
// collaborator.
type UploadGrant struct {
	UploadURL string `json:"uploadUrl"`
	FileRef   string `json:"fileRef"`
}

// StorageProvider is the object-storage collaborator. The solve path only
// calls IssueReadURL; IssueUploadURL serves the room creation surface.
type StorageProvider interface {
	IssueReadURL(ctx context.Context, fileRef string) (string, error)
	IssueUploadURL(ctx context.Context, fileName, mimeType string) (UploadGrant, error)
}

// NonceGrant is returned when a solve nonce is issued.
type NonceGrant struct {
	Nonce     string `json:"nonce"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// Content is the disclosed secret, a tagged union discriminated by Kind.
// Text carries the secret verbatim for TEXT rooms; SignedURL carries a
// time-limited read reference for IMAGE rooms.
type Content struct {
	Kind      ContentKind `json:"type"`
	Text      string      `json:"text,omitempty"`
	SignedURL string      `json:"signedUrl,omitempty"`
	Alt       string      `json:"alt,omitempty"`
}

// PolicyState is the post-solve policy snapshot returned to the solver.
type PolicyState struct {
	Policy    Policy     `json:"policy"`
	Remaining *int       `json:"remaining"`
	Limit     *int       `json:"limit"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// SolveResult is returned by [Engine.Solve] on a correct answer.
type SolveResult struct {
	OK          bool        `json:"ok"`
	Content     Content     `json:"content"`
	PolicyState PolicyState `json:"policyState"`
}

// SolveMeta is the public pre-solve view of a room. It never includes the
// answer or the content.
type SolveMeta struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Hint          string     `json:"hint"`
	Policy        Policy     `json:"policy"`
	Remaining     *int       `json:"remaining"`
	Limit         *int       `json:"limit"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	Locked        bool       `json:"locked"`
	RetryAfterSec *int       `json:"retryAfterSec,omitempty"`
}

// ContentSpec describes room content at creation time.
type ContentSpec struct {
	Kind    ContentKind
	Text    string
	FileRef string
	Alt     string
}

// CreateRoomInput carries the fields needed to publish a new room.
type CreateRoomInput struct {
	Title      string
	Hint       string
	Answer     string
	Content    ContentSpec
	Visibility Visibility
	Policy     Policy
	ViewLimit  int
	ExpiresAt  time.Time
}

// CreateRoomResult is returned by [Engine.CreateRoom].
type CreateRoomResult struct {
	ID       int64  `json:"id"`
	ShareURL string `json:"shareUrl"`
}

// UpdateRoomInput carries partial owner-side updates; nil fields are left
// unchanged.
type UpdateRoomInput struct {
	Title      *string
	Hint       *string
	Visibility *Visibility
	Policy     *Policy
	ViewLimit  *int
	ExpiresAt  *time.Time
}

// RoomMeta is the owner/public metadata view of a room.
type RoomMeta struct {
	ID          int64       `json:"id"`
	OwnerID     string      `json:"ownerId"`
	OwnerName   string      `json:"ownerName"`
	Title       string      `json:"title"`
	Hint        string      `json:"hint"`
	Visibility  Visibility  `json:"visibility"`
	Policy      Policy      `json:"policy"`
	ViewLimit   *int        `json:"viewLimit"`
	ViewsUsed   int         `json:"viewsUsed"`
	ExpiresAt   *time.Time  `json:"expiresAt"`
	Active      bool        `json:"isActive"`
	ContentKind ContentKind `json:"contentType"`
}

// PublicRoomCard is one entry in the public room listing.
type PublicRoomCard struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Hint        string      `json:"hint"`
	OwnerName   string      `json:"ownerName"`
	Attempts1h  int         `json:"attempts1h"`
	SolveRate1h float64     `json:"solveRate1h"`
	Badge       string      `json:"badge"`
	ContentKind ContentKind `json:"contentType"`
}

// PublicRoomsPage is a cursor-paginated public listing slice.
type PublicRoomsPage struct {
	Items      []PublicRoomCard `json:"items"`
	NextCursor string           `json:"nextCursor,omitempty"`
}
