package config

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
	// ErrAlreadyInitialized signals a second bootstrap attempt.
	ErrAlreadyInitialized = errors.New("config: already initialized")
	// ErrNotInitialized signals the configuration record does not exist yet.
	ErrNotInitialized = errors.New("config: not initialized")
)

// Repository handles data access for the global configuration record.
type Repository interface {
	Insert(ctx context.Context, params InitializeParams) (Config, error)
	Get(ctx context.Context) (Config, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed configuration repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert writes the configuration record at its fixed derived address.
// The primary-key collision on retry is what enforces create-once.
func (r *PGRepository) Insert(ctx context.Context, params InitializeParams) (Config, error) {
	const insertSQL = `
		INSERT INTO global_config (address, authority_key, treasury_key, fee_basis_points)
		VALUES ($1, $2, $3, $4)
		RETURNING address, authority_key, treasury_key, fee_basis_points, created_at
	`

	addr := record.Derive(record.KindConfig)

	var cfg Config
	err := r.pool.QueryRow(ctx, insertSQL, addr, params.AuthorityKey, params.TreasuryKey, params.FeeBasisPoints).
		Scan(&cfg.Address, &cfg.AuthorityKey, &cfg.TreasuryKey, &cfg.FeeBasisPoints, &cfg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Config{}, ErrAlreadyInitialized
		}
		return Config{}, fmt.Errorf("config: insert: %w", err)
	}

	return cfg, nil
}

// Get retrieves the configuration record.
func (r *PGRepository) Get(ctx context.Context) (Config, error) {
	const selectSQL = `
		SELECT address, authority_key, treasury_key, fee_basis_points, created_at
		FROM global_config
		WHERE address = $1
	`

	var cfg Config
	err := r.pool.QueryRow(ctx, selectSQL, record.Derive(record.KindConfig)).
		Scan(&cfg.Address, &cfg.AuthorityKey, &cfg.TreasuryKey, &cfg.FeeBasisPoints, &cfg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Config{}, ErrNotInitialized
		}
		return Config{}, fmt.Errorf("config: get: %w", err)
	}

	return cfg, nil
}
