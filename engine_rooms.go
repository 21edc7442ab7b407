package secretroom

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// CreateRoom publishes a new room for the authenticated caller. The answer
// is hashed before anything is stored; the plaintext never leaves this call.
//
// CreateRoom may return an error when input validation, dependency calls, or security checks fail.
// CreateRoom does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CreateRoom(ctx context.Context, caller CallerIdentity, in CreateRoomInput) (CreateRoomResult, error) {
	if e == nil || e.answerHash == nil {
		return CreateRoomResult{}, ErrEngineNotReady
	}
	if caller.UserID == "" {
		return CreateRoomResult{}, ErrForbidden
	}
	if err := validateCreateRoom(in); err != nil {
		return CreateRoomResult{}, err
	}

	hash, err := e.answerHash.Hash(in.Answer)
	if err != nil {
		return CreateRoomResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now().UTC()
	room := Room{
		OwnerID:     caller.UserID,
		OwnerName:   caller.Name,
		Title:       in.Title,
		Hint:        in.Hint,
		AnswerHash:  hash,
		ContentKind: in.Content.Kind,
		ContentText: in.Content.Text,
		ImageRef:    in.Content.FileRef,
		ImageAlt:    in.Content.Alt,
		Visibility:  in.Visibility,
		Policy:      in.Policy,
		ViewLimit:   in.ViewLimit,
		ExpiresAt:   in.ExpiresAt,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if room.Visibility == "" {
		room.Visibility = VisibilityPrivate
	}

	id, err := e.rooms.CreateRoom(ctx, room)
	if err != nil {
		return CreateRoomResult{}, err
	}

	e.metricInc(MetricRoomCreated)
	e.emitAudit(ctx, auditEventRoomCreated, true, id, "", nil, func() map[string]string {
		return map[string]string{
			"policy":     string(room.Policy),
			"visibility": string(room.Visibility),
		}
	})

	return CreateRoomResult{
		ID:       id,
		ShareURL: fmt.Sprintf("%s/s/%d", e.config.Share.BaseURL, id),
	}, nil
}

// RoomMeta returns the metadata view of a room. Owners always see their own
// rooms; everyone else sees only PUBLIC rooms, and a private room is reported
// as unknown rather than as forbidden.
func (e *Engine) RoomMeta(ctx context.Context, caller CallerIdentity, roomID int64) (RoomMeta, error) {
	if e == nil || e.rooms == nil {
		return RoomMeta{}, ErrEngineNotReady
	}

	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return RoomMeta{}, err
	}

	if room.OwnerID != caller.UserID && room.Visibility != VisibilityPublic {
		return RoomMeta{}, ErrNotFound
	}

	return roomMetaView(room), nil
}

// UpdateRoom applies a partial owner-side update; nil input fields keep the
// stored value. The answer and content are immutable after creation.
//
// UpdateRoom may return an error when input validation, dependency calls, or security checks fail.
// UpdateRoom does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UpdateRoom(ctx context.Context, caller CallerIdentity, roomID int64, in UpdateRoomInput) (RoomMeta, error) {
	if e == nil || e.rooms == nil {
		return RoomMeta{}, ErrEngineNotReady
	}

	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return RoomMeta{}, err
	}
	if room.OwnerID != caller.UserID {
		return RoomMeta{}, ErrForbidden
	}

	if in.Title != nil {
		room.Title = *in.Title
	}
	if in.Hint != nil {
		room.Hint = *in.Hint
	}
	if in.Visibility != nil {
		room.Visibility = *in.Visibility
	}
	if in.Policy != nil {
		room.Policy = *in.Policy
	}
	if in.ViewLimit != nil {
		room.ViewLimit = *in.ViewLimit
	}
	if in.ExpiresAt != nil {
		room.ExpiresAt = *in.ExpiresAt
	}
	room.UpdatedAt = time.Now().UTC()

	if err := validateRoomShape(room); err != nil {
		return RoomMeta{}, err
	}

	if err := e.rooms.UpdateRoomMeta(ctx, room); err != nil {
		return RoomMeta{}, err
	}

	e.metricInc(MetricRoomUpdated)
	e.emitAudit(ctx, auditEventRoomUpdated, true, room.ID, "", nil, nil)

	return roomMetaView(room), nil
}

// DeleteRoom removes an owner's room. Attempt and lockout rows referencing it
// are historical records and stay behind.
//
// DeleteRoom may return an error when input validation, dependency calls, or security checks fail.
// DeleteRoom does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DeleteRoom(ctx context.Context, caller CallerIdentity, roomID int64) error {
	if e == nil || e.rooms == nil {
		return ErrEngineNotReady
	}

	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != caller.UserID {
		return ErrForbidden
	}

	if err := e.rooms.DeleteRoom(ctx, roomID); err != nil {
		return err
	}

	e.metricInc(MetricRoomDeleted)
	e.emitAudit(ctx, auditEventRoomDeleted, true, roomID, "", nil, nil)
	return nil
}

// Listing sort orders.
const (
	SortNew      = "new"
	SortTrending = "trending"
	SortHard     = "hard"
)

// PublicRooms returns a page of the public room listing with per-room
// attempt statistics over the configured stats window.
//
// The "new" sort paginates by creation time with an opaque cursor. The
// "trending" and "hard" sorts rank a bounded window of the newest public
// rooms and do not paginate further.
func (e *Engine) PublicRooms(ctx context.Context, sortOrder, cursor string, limit int) (PublicRoomsPage, error) {
	if e == nil || e.rooms == nil || e.ledger == nil {
		return PublicRoomsPage{}, ErrEngineNotReady
	}

	if limit <= 0 {
		limit = e.config.Listing.DefaultPageSize
	}
	if limit > e.config.Listing.MaxPageSize {
		limit = e.config.Listing.MaxPageSize
	}

	switch sortOrder {
	case "", SortNew:
		return e.listNew(ctx, cursor, limit)
	case SortTrending, SortHard:
		return e.listRanked(ctx, sortOrder, limit)
	default:
		return PublicRoomsPage{}, fmt.Errorf("%w: unknown sort %q", ErrValidation, sortOrder)
	}
}

func (e *Engine) listNew(ctx context.Context, cursor string, limit int) (PublicRoomsPage, error) {
	createdBefore := time.Now().UTC()
	if cursor != "" {
		t, err := decodeListingCursor(cursor)
		if err != nil {
			return PublicRoomsPage{}, fmt.Errorf("%w: bad cursor", ErrValidation)
		}
		createdBefore = t
	}

	rooms, err := e.rooms.ListPublicRooms(ctx, createdBefore, limit)
	if err != nil {
		return PublicRoomsPage{}, err
	}

	page := PublicRoomsPage{Items: make([]PublicRoomCard, 0, len(rooms))}
	for _, room := range rooms {
		card, err := e.roomCard(ctx, room)
		if err != nil {
			return PublicRoomsPage{}, err
		}
		page.Items = append(page.Items, card)
	}

	if len(rooms) == limit {
		page.NextCursor = encodeListingCursor(rooms[len(rooms)-1].CreatedAt)
	}

	e.metricInc(MetricListingServed)
	return page, nil
}

// rankedWindowFactor bounds how many of the newest public rooms the ranked
// sorts consider.
const rankedWindowFactor = 4

func (e *Engine) listRanked(ctx context.Context, sortOrder string, limit int) (PublicRoomsPage, error) {
	window := e.config.Listing.MaxPageSize * rankedWindowFactor

	rooms, err := e.rooms.ListPublicRooms(ctx, time.Now().UTC(), window)
	if err != nil {
		return PublicRoomsPage{}, err
	}

	cards := make([]PublicRoomCard, 0, len(rooms))
	for _, room := range rooms {
		card, err := e.roomCard(ctx, room)
		if err != nil {
			return PublicRoomsPage{}, err
		}
		cards = append(cards, card)
	}

	switch sortOrder {
	case SortTrending:
		sort.SliceStable(cards, func(i, j int) bool {
			return float64(cards[i].Attempts1h)*cards[i].SolveRate1h >
				float64(cards[j].Attempts1h)*cards[j].SolveRate1h
		})
	case SortHard:
		sort.SliceStable(cards, func(i, j int) bool {
			return cards[i].SolveRate1h < cards[j].SolveRate1h
		})
	}

	if len(cards) > limit {
		cards = cards[:limit]
	}

	e.metricInc(MetricListingServed)
	return PublicRoomsPage{Items: cards}, nil
}

func (e *Engine) roomCard(ctx context.Context, room Room) (PublicRoomCard, error) {
	since := time.Now().Add(-e.config.Listing.StatsWindow)

	attempts, err := e.ledger.CountSince(ctx, room.ID, since)
	if err != nil {
		return PublicRoomCard{}, err
	}
	correct, err := e.ledger.CountCorrectSince(ctx, room.ID, since)
	if err != nil {
		return PublicRoomCard{}, err
	}

	var rate float64
	if attempts > 0 {
		rate = float64(correct) / float64(attempts)
	}

	return PublicRoomCard{
		ID:          room.ID,
		Title:       room.Title,
		Hint:        room.Hint,
		OwnerName:   room.OwnerName,
		Attempts1h:  int(attempts),
		SolveRate1h: rate,
		Badge:       listingBadge(attempts, rate),
		ContentKind: room.ContentKind,
	}, nil
}

func listingBadge(attempts int64, rate float64) string {
	switch {
	case attempts < 5:
		return "NEW"
	case rate < 0.1:
		return "HARD"
	case rate > 0.8:
		return "EASY"
	default:
		return "MEDIUM"
	}
}

func roomMetaView(room Room) RoomMeta {
	return RoomMeta{
		ID:          room.ID,
		OwnerID:     room.OwnerID,
		OwnerName:   room.OwnerName,
		Title:       room.Title,
		Hint:        room.Hint,
		Visibility:  room.Visibility,
		Policy:      room.Policy,
		ViewLimit:   optionalInt(room.ViewLimit),
		ViewsUsed:   room.ViewsUsed,
		ExpiresAt:   optionalTime(room.ExpiresAt),
		Active:      room.Active,
		ContentKind: room.ContentKind,
	}
}

func validateCreateRoom(in CreateRoomInput) error {
	if in.Title == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if in.Answer == "" {
		return fmt.Errorf("%w: answer required", ErrValidation)
	}

	switch in.Content.Kind {
	case ContentText:
		if in.Content.Text == "" {
			return fmt.Errorf("%w: text content required", ErrValidation)
		}
	case ContentImage:
		if in.Content.FileRef == "" {
			return fmt.Errorf("%w: image file reference required", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown content kind %q", ErrValidation, in.Content.Kind)
	}

	return validateRoomShape(Room{
		Title:      in.Title,
		Visibility: in.Visibility,
		Policy:     in.Policy,
		ViewLimit:  in.ViewLimit,
		ExpiresAt:  in.ExpiresAt,
	})
}

func validateRoomShape(room Room) error {
	switch room.Policy {
	case PolicyOnce, PolicyUnlimited:
	case PolicyLimited:
		if room.ViewLimit <= 0 {
			return fmt.Errorf("%w: limited policy requires a positive view limit", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrValidation, room.Policy)
	}

	switch room.Visibility {
	case VisibilityPublic, VisibilityPrivate, "":
	default:
		return fmt.Errorf("%w: unknown visibility %q", ErrValidation, room.Visibility)
	}

	if room.ViewLimit < 0 {
		return fmt.Errorf("%w: view limit must not be negative", ErrValidation)
	}
	if !room.ExpiresAt.IsZero() && room.ExpiresAt.Before(time.Now()) {
		return fmt.Errorf("%w: expiry must be in the future", ErrValidation)
	}

	return nil
}

func encodeListingCursor(t time.Time) string {
	raw := strconv.FormatInt(t.UTC().UnixNano(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeListingCursor(cursor string) (time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos).UTC(), nil
}
