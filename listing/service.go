package listing

import (
	"context"
	"errors"
	"unicode/utf8"
)

var (
	// ErrInvalidContentRef signals a content reference outside (0, MaxContentRefLen].
	ErrInvalidContentRef = errors.New("listing: content reference must be 1..96 characters")
	// ErrInvalidPrice signals a price beyond the storable range. A zero
	// price is deliberately allowed.
	ErrInvalidPrice = errors.New("listing: price exceeds storable range")
)

// Service handles listing creation and lookup.
type Service struct {
	repo Repository
}

// NewService creates a listing service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create lists a dataset for sale. The owner must hold a registered,
// non-banned identity, and a given owner cannot list the same content
// reference twice.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Listing, error) {
	if n := utf8.RuneCountInString(params.ContentRef); n == 0 || n > MaxContentRefLen {
		return nil, ErrInvalidContentRef
	}
	if params.Price > MaxPrice {
		return nil, ErrInvalidPrice
	}

	l, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Get retrieves a listing by its derived address.
func (s *Service) Get(ctx context.Context, address string) (Listing, error) {
	return s.repo.GetByAddress(ctx, address)
}

// ListByOwner returns the listings created by one principal, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerKey string, limit int) ([]Listing, error) {
	return s.repo.ListByOwner(ctx, ownerKey, limit)
}
