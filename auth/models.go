package auth

import "time"

// Account is the client-facing login bound to a marketplace principal.
// The principal key is minted at registration and is what the core
// record store knows the caller as; the account itself never reaches the
// core.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	PrincipalKey string
	CreatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest contains account login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
