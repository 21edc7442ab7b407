package secretroom

import "time"

// The policy engine is pure: it maps current room state to new room state
// plus a disclosure snapshot, and performs no I/O. The orchestrator owns
// persisting the result under the per-room version CAS.

// roomExpired reports whether a room with an expiry timestamp has passed it.
func roomExpired(room Room, now time.Time) bool {
	return !room.ExpiresAt.IsZero() && room.ExpiresAt.Before(now)
}

// applyPolicy mutates view state after a correct solve.
//
// ONCE rooms are terminal after the first success: views jump to the cap
// (or 1 when uncapped) and the room deactivates. LIMITED rooms count up and
// deactivate once the cap is reached. UNLIMITED rooms never change.
func applyPolicy(room *Room) {
	switch room.Policy {
	case PolicyOnce:
		if room.ViewLimit > 0 {
			room.ViewsUsed = room.ViewLimit
		} else {
			room.ViewsUsed = 1
		}
		room.Active = false
	case PolicyLimited:
		room.ViewsUsed++
		if room.ViewLimit > 0 && room.ViewsUsed >= room.ViewLimit {
			room.Active = false
		}
	case PolicyUnlimited:
		// no state change
	}
}

// remainingViews returns the reveals left for a capped LIMITED room, clamped
// at zero. Other policies have no meaningful remaining count.
func remainingViews(room Room) *int {
	if room.Policy != PolicyLimited || room.ViewLimit <= 0 {
		return nil
	}

	r := room.ViewLimit - room.ViewsUsed
	if r < 0 {
		r = 0
	}
	return &r
}

// policyState builds the snapshot returned alongside a disclosure.
func policyState(room Room) PolicyState {
	return PolicyState{
		Policy:    room.Policy,
		Remaining: remainingViews(room),
		Limit:     optionalInt(room.ViewLimit),
		ExpiresAt: optionalTime(room.ExpiresAt),
	}
}

func optionalInt(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
