package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"datamart/record"
)

var (
	// ErrNotFound signals the review does not exist.
	ErrNotFound = errors.New("review: not found")
	// ErrDuplicate signals the reviewer already reviewed this listing.
	ErrDuplicate = errors.New("review: already filed for this listing")
	// ErrNoPurchase signals the reviewer holds no receipt for the listing.
	ErrNoPurchase = errors.New("review: reviewer did not purchase this listing")
	// ErrForbidden signals an update by someone other than the reviewer.
	ErrForbidden = errors.New("review: not the reviewer")
)

// Repository handles data access for reviews.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Review, error)
	Update(ctx context.Context, params UpdateParams) (Review, error)
	ListForListing(ctx context.Context, listingAddr string) ([]Review, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed review repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a review, gated on the reviewer being the buyer on the
// listing's receipt.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Review, error) {
	const insertSQL = `
		INSERT INTO reviews (address, listing_addr, reviewer_key, rating, body)
		SELECT $1, rc.listing_addr, rc.buyer_key, $4, $5
		FROM receipts rc
		WHERE rc.listing_addr = $2 AND rc.buyer_key = $3
		RETURNING address, listing_addr, reviewer_key, rating, body, created_at, updated_at
	`

	addr := record.Derive(record.KindReview, params.ListingAddr, params.ReviewerKey)

	rev, err := scanReview(r.pool.QueryRow(ctx, insertSQL, addr, params.ListingAddr, params.ReviewerKey, params.Rating, params.Body))
	if err == nil {
		return rev, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Review{}, ErrDuplicate
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Review{}, ErrNoPurchase
	}
	return Review{}, fmt.Errorf("review: create: %w", err)
}

// Update revises rating and body in place, keyed on (address, reviewer).
func (r *PGRepository) Update(ctx context.Context, params UpdateParams) (Review, error) {
	const updateSQL = `
		UPDATE reviews
		SET rating = $3, body = $4, updated_at = now()
		WHERE address = $1 AND reviewer_key = $2
		RETURNING address, listing_addr, reviewer_key, rating, body, created_at, updated_at
	`

	rev, err := scanReview(r.pool.QueryRow(ctx, updateSQL, params.Address, params.ReviewerKey, params.Rating, params.Body))
	if err == nil {
		return rev, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Review{}, fmt.Errorf("review: update: %w", err)
	}

	// Distinguish a missing review from someone else's review.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reviews WHERE address = $1)`, params.Address).Scan(&exists); err != nil {
		return Review{}, fmt.Errorf("review: update check: %w", err)
	}
	if exists {
		return Review{}, ErrForbidden
	}
	return Review{}, ErrNotFound
}

// ListForListing returns the reviews of a listing, newest first.
func (r *PGRepository) ListForListing(ctx context.Context, listingAddr string) ([]Review, error) {
	const query = `
		SELECT address, listing_addr, reviewer_key, rating, body, created_at, updated_at
		FROM reviews
		WHERE listing_addr = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, listingAddr)
	if err != nil {
		return nil, fmt.Errorf("review: list: %w", err)
	}
	defer rows.Close()

	out := make([]Review, 0, 8)
	for rows.Next() {
		var rev Review
		if err := rows.Scan(&rev.Address, &rev.ListingAddr, &rev.ReviewerKey, &rev.Rating, &rev.Body, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("review: scan: %w", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review: iterate: %w", err)
	}

	return out, nil
}

func scanReview(row pgx.Row) (Review, error) {
	var rev Review
	err := row.Scan(
		&rev.Address,
		&rev.ListingAddr,
		&rev.ReviewerKey,
		&rev.Rating,
		&rev.Body,
		&rev.CreatedAt,
		&rev.UpdatedAt,
	)
	if err != nil {
		return Review{}, err
	}
	return rev, nil
}
