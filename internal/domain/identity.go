package domain

// Identity names who is taking a quiz: an authenticated user or a guest.
// It is passed explicitly to the engine rather than read from ambient state,
// so ledger and progression code can never confuse the two.
type Identity struct {
	UserID  string
	GuestID string
}

// NewUserIdentity builds an authenticated identity.
func NewUserIdentity(userID string) Identity {
	return Identity{UserID: userID}
}

// NewGuestIdentity builds a guest identity scoped to a device/browser id.
func NewGuestIdentity(guestID string) Identity {
	return Identity{GuestID: guestID}
}

// IsGuest reports whether the identity has no authenticated user behind it.
func (i Identity) IsGuest() bool {
	return i.UserID == ""
}

// LedgerKey returns the storage key for this identity's completion ledger.
// Guest keys carry a distinct prefix so a guest's completions can never be
// read back under a future authenticated identity.
func (i Identity) LedgerKey() string {
	if i.IsGuest() {
		return "guest:" + i.GuestID
	}
	return "user:" + i.UserID
}
