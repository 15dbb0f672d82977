package review

import (
	"context"
	"errors"
	"unicode/utf8"
)

var (
	// ErrInvalidRating signals a rating outside 1..5.
	ErrInvalidRating = errors.New("review: rating must be 1..5")
	// ErrInvalidBody signals a body longer than MaxBodyLen.
	ErrInvalidBody = errors.New("review: body exceeds 1024 characters")
)

// Service handles purchase-gated reviews.
type Service struct {
	repo Repository
}

// NewService creates a review service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create files a review. The reviewer must be the buyer on the listing's
// receipt, and each buyer reviews a listing at most once.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Review, error) {
	if params.Rating < 1 || params.Rating > 5 {
		return nil, ErrInvalidRating
	}
	if utf8.RuneCountInString(params.Body) > MaxBodyLen {
		return nil, ErrInvalidBody
	}

	r, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Update revises an existing review. Only the original reviewer may
// update it.
func (s *Service) Update(ctx context.Context, params UpdateParams) (*Review, error) {
	if params.Rating < 1 || params.Rating > 5 {
		return nil, ErrInvalidRating
	}
	if utf8.RuneCountInString(params.Body) > MaxBodyLen {
		return nil, ErrInvalidBody
	}

	r, err := s.repo.Update(ctx, params)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListForListing returns the reviews of one listing, newest first.
func (s *Service) ListForListing(ctx context.Context, listingAddr string) ([]Review, error) {
	return s.repo.ListForListing(ctx, listingAddr)
}
