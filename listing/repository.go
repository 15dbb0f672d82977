package listing

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
	// ErrNotFound signals the listing does not exist.
	ErrNotFound = errors.New("listing: not found")
	// ErrDuplicate signals the owner already listed this content reference.
	ErrDuplicate = errors.New("listing: already listed by this owner")
	// ErrOwnerNotRegistered signals the owner has no identity.
	ErrOwnerNotRegistered = errors.New("listing: owner is not registered")
	// ErrOwnerBanned signals the owner is banned from creating listings.
	ErrOwnerBanned = errors.New("listing: owner is banned")
)

// Repository handles data access for listings.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Listing, error)
	GetByAddress(ctx context.Context, address string) (Listing, error)
	ListByOwner(ctx context.Context, ownerKey string, limit int) ([]Listing, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed listing repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a listing at its derived address, gated on the owner
// holding a registered, non-banned identity. The gate lives in the
// INSERT itself so a concurrent ban cannot slip a listing through.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Listing, error) {
	const insertSQL = `
		INSERT INTO listings (address, owner_key, price, content_ref)
		SELECT $1, i.owner_key, $3, $4
		FROM identities i
		WHERE i.owner_key = $2 AND NOT i.banned
		RETURNING address, owner_key, price, content_ref, status::text, created_at, retired_at
	`

	addr := record.Derive(record.KindListing, params.OwnerKey, params.ContentRef)

	l, err := scanListing(r.pool.QueryRow(ctx, insertSQL, addr, params.OwnerKey, int64(params.Price), params.ContentRef))
	if err == nil {
		return l, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Listing{}, ErrDuplicate
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Listing{}, fmt.Errorf("listing: create: %w", err)
	}

	// The guarded insert matched no identity row; find out why.
	var banned bool
	switch err := r.pool.QueryRow(ctx, `SELECT banned FROM identities WHERE owner_key = $1`, params.OwnerKey).Scan(&banned); {
	case err == nil:
		if banned {
			return Listing{}, ErrOwnerBanned
		}
		return Listing{}, fmt.Errorf("listing: create raced with identity change for %s", params.OwnerKey)
	case errors.Is(err, pgx.ErrNoRows):
		return Listing{}, ErrOwnerNotRegistered
	default:
		return Listing{}, fmt.Errorf("listing: create owner check: %w", err)
	}
}

// GetByAddress retrieves a listing by its derived address.
func (r *PGRepository) GetByAddress(ctx context.Context, address string) (Listing, error) {
	const selectSQL = `
		SELECT address, owner_key, price, content_ref, status::text, created_at, retired_at
		FROM listings
		WHERE address = $1
	`

	l, err := scanListing(r.pool.QueryRow(ctx, selectSQL, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: get by address: %w", err)
	}

	return l, nil
}

// ListByOwner returns up to limit listings owned by one principal.
func (r *PGRepository) ListByOwner(ctx context.Context, ownerKey string, limit int) ([]Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT address, owner_key, price, content_ref, status::text, created_at, retired_at
		FROM listings
		WHERE owner_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, ownerKey, limit)
	if err != nil {
		return nil, fmt.Errorf("listing: list by owner: %w", err)
	}
	defer rows.Close()

	out := make([]Listing, 0, limit)
	for rows.Next() {
		var (
			l     Listing
			price int64
		)
		if err := rows.Scan(&l.Address, &l.OwnerKey, &price, &l.ContentRef, &l.Status, &l.CreatedAt, &l.RetiredAt); err != nil {
			return nil, fmt.Errorf("listing: scan: %w", err)
		}
		l.Price = uint64(price)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing: iterate: %w", err)
	}

	return out, nil
}

func scanListing(row pgx.Row) (Listing, error) {
	var (
		l     Listing
		price int64
	)
	err := row.Scan(
		&l.Address,
		&l.OwnerKey,
		&price,
		&l.ContentRef,
		&l.Status,
		&l.CreatedAt,
		&l.RetiredAt,
	)
	if err != nil {
		return Listing{}, err
	}
	l.Price = uint64(price)
	return l, nil
}
