// Package reputation adjusts identity scores. Only the configured
// authority may score; there is no peer-to-peer adjustment path.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUnauthorized signals an adjustment by a non-authority caller.
	ErrUnauthorized = errors.New("reputation: caller is not the configured authority")
	// ErrNotFound signals the target principal has no identity.
	ErrNotFound = errors.New("reputation: identity not found")
)

// AuthorityReader reports the configured administrative key.
type AuthorityReader interface {
	AuthorityKey(ctx context.Context) (string, error)
}

// Service applies bounded reputation adjustments.
type Service struct {
	pool      *pgxpool.Pool
	authority AuthorityReader
}

// NewService creates a reputation service.
func NewService(pool *pgxpool.Pool, authority AuthorityReader) *Service {
	return &Service{pool: pool, authority: authority}
}

// Adjust adds delta to the target's reputation, saturating at the int64
// bounds, and returns the new score. The current score is re-read under
// lock so concurrent adjustments serialize.
func (s *Service) Adjust(ctx context.Context, callerKey, targetKey string, delta int64) (int64, error) {
	authorityKey, err := s.authority.AuthorityKey(ctx)
	if err != nil {
		return 0, err
	}
	if callerKey != authorityKey {
		return 0, ErrUnauthorized
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("reputation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx, `SELECT reputation FROM identities WHERE owner_key = $1 FOR UPDATE`, targetKey).
		Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("reputation: read score: %w", err)
	}

	next := saturatingAdd(current, delta)

	if _, err := tx.Exec(ctx, `
		UPDATE identities SET reputation = $2, updated_at = now() WHERE owner_key = $1
	`, targetKey, next); err != nil {
		return 0, fmt.Errorf("reputation: write score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("reputation: commit: %w", err)
	}

	return next, nil
}

// saturatingAdd clamps at the representable int64 range instead of
// wrapping.
func saturatingAdd(score, delta int64) int64 {
	sum := score + delta
	switch {
	case delta > 0 && sum < score:
		return math.MaxInt64
	case delta < 0 && sum > score:
		return math.MinInt64
	}
	return sum
}
