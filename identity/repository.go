package identity

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
	// ErrNotFound signals that the principal has no identity.
	ErrNotFound = errors.New("identity: not found")
	// ErrAlreadyRegistered signals that the principal already registered.
	ErrAlreadyRegistered = errors.New("identity: already registered")
)

// Repository handles data access for identities.
type Repository interface {
	Create(ctx context.Context, params RegisterParams) (Identity, error)
	GetByOwnerKey(ctx context.Context, ownerKey string) (Identity, error)
	SetBanned(ctx context.Context, ownerKey string, banned bool) (Identity, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed identity repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a new identity at its derived address with reputation 0.
func (r *PGRepository) Create(ctx context.Context, params RegisterParams) (Identity, error) {
	const insertSQL = `
		INSERT INTO identities (address, owner_key, display_name)
		VALUES ($1, $2, $3)
		RETURNING address, owner_key, display_name, reputation, banned, created_at, updated_at
	`

	addr := record.Derive(record.KindIdentity, params.OwnerKey)

	id, err := scanIdentity(r.pool.QueryRow(ctx, insertSQL, addr, params.OwnerKey, params.DisplayName))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Identity{}, ErrAlreadyRegistered
		}
		return Identity{}, fmt.Errorf("identity: create: %w", err)
	}

	return id, nil
}

// GetByOwnerKey retrieves an identity by its principal key.
func (r *PGRepository) GetByOwnerKey(ctx context.Context, ownerKey string) (Identity, error) {
	const selectSQL = `
		SELECT address, owner_key, display_name, reputation, banned, created_at, updated_at
		FROM identities
		WHERE owner_key = $1
	`

	id, err := scanIdentity(r.pool.QueryRow(ctx, selectSQL, ownerKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("identity: get by owner key: %w", err)
	}

	return id, nil
}

// SetBanned updates the ban flag on an identity.
func (r *PGRepository) SetBanned(ctx context.Context, ownerKey string, banned bool) (Identity, error) {
	const updateSQL = `
		UPDATE identities
		SET banned = $2, updated_at = now()
		WHERE owner_key = $1
		RETURNING address, owner_key, display_name, reputation, banned, created_at, updated_at
	`

	id, err := scanIdentity(r.pool.QueryRow(ctx, updateSQL, ownerKey, banned))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("identity: set banned: %w", err)
	}

	return id, nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var id Identity
	err := row.Scan(
		&id.Address,
		&id.OwnerKey,
		&id.DisplayName,
		&id.Reputation,
		&id.Banned,
		&id.CreatedAt,
		&id.UpdatedAt,
	)
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}
