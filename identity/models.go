package identity

import "time"

// MaxDisplayNameLen bounds the chosen display name.
const MaxDisplayNameLen = 32

// Identity is the domain representation of a registered principal. The
// owner key is the authenticated public identity and never changes after
// registration.
type Identity struct {
	Address     string
	OwnerKey    string
	DisplayName string
	Reputation  int64
	Banned      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RegisterParams contains identity registration data supplied by callers.
type RegisterParams struct {
	OwnerKey    string
	DisplayName string
}
