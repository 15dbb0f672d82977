package identity

import (
	"context"
	"errors"
	"unicode/utf8"
)

var (
	// ErrInvalidDisplayName signals a display name outside (0, MaxDisplayNameLen].
	ErrInvalidDisplayName = errors.New("identity: display name must be 1..32 characters")
	// ErrMissingOwnerKey signals registration without a principal key.
	ErrMissingOwnerKey = errors.New("identity: owner key is required")
	// ErrUnauthorized signals a ban mutation attempted by a non-authority caller.
	ErrUnauthorized = errors.New("identity: caller is not the configured authority")
)

// AuthorityReader reports the configured administrative key. The config
// service satisfies it; tests inject a fixture.
type AuthorityReader interface {
	AuthorityKey(ctx context.Context) (string, error)
}

// Service handles identity registration and the ban gate consulted by
// every component that creates new obligations.
type Service struct {
	repo      Repository
	authority AuthorityReader
}

// NewService creates an identity service.
func NewService(repo Repository, authority AuthorityReader) *Service {
	return &Service{repo: repo, authority: authority}
}

// Register creates an identity for a principal. A principal may register
// exactly once; the derived address makes retries collide.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Identity, error) {
	if params.OwnerKey == "" {
		return nil, ErrMissingOwnerKey
	}
	n := utf8.RuneCountInString(params.DisplayName)
	if n == 0 || n > MaxDisplayNameLen {
		return nil, ErrInvalidDisplayName
	}

	id, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Get retrieves the identity for a principal key.
func (s *Service) Get(ctx context.Context, ownerKey string) (Identity, error) {
	return s.repo.GetByOwnerKey(ctx, ownerKey)
}

// SetBan flips the ban flag on a target identity. Only the configured
// authority may call it. Bans are forward-looking: existing listings are
// left untouched.
func (s *Service) SetBan(ctx context.Context, callerKey, targetKey string, banned bool) (Identity, error) {
	authorityKey, err := s.authority.AuthorityKey(ctx)
	if err != nil {
		return Identity{}, err
	}
	if callerKey != authorityKey {
		return Identity{}, ErrUnauthorized
	}

	return s.repo.SetBanned(ctx, targetKey, banned)
}

// IsBanned reports whether a principal is banned. An unregistered
// principal is reported via ErrNotFound.
func (s *Service) IsBanned(ctx context.Context, ownerKey string) (bool, error) {
	id, err := s.repo.GetByOwnerKey(ctx, ownerKey)
	if err != nil {
		return false, err
	}
	return id.Banned, nil
}
