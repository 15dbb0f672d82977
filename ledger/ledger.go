// Package ledger is the value-transfer collaborator. Balances live in a
// single table; Transfer runs inside the caller's transaction so both
// legs of a purchase commit or roll back with the rest of the mutation.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInsufficientFunds signals the debit side cannot cover the amount.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrInvalidAmount signals an amount beyond the storable range.
	ErrInvalidAmount = errors.New("ledger: amount exceeds storable range")
	// ErrSameParty signals a transfer from a principal to itself.
	ErrSameParty = errors.New("ledger: transfer endpoints must differ")
)

// maxAmount mirrors the signed 64-bit storage of the balances column.
const maxAmount = uint64(1<<63 - 1)

// Store provides balance access and transfers.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed ledger store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Deposit credits a principal outside any purchase. It exists for
// bootstrap and test funding.
func (s *Store) Deposit(ctx context.Context, principalKey string, amount uint64) (uint64, error) {
	if amount > maxAmount {
		return 0, ErrInvalidAmount
	}

	const upsertSQL = `
		INSERT INTO balances (principal_key, amount)
		VALUES ($1, $2)
		ON CONFLICT (principal_key) DO UPDATE
		SET amount = balances.amount + EXCLUDED.amount
		RETURNING amount
	`

	var balance int64
	if err := s.pool.QueryRow(ctx, upsertSQL, principalKey, int64(amount)).Scan(&balance); err != nil {
		return 0, fmt.Errorf("ledger: deposit: %w", err)
	}
	return uint64(balance), nil
}

// Balance reports a principal's current balance. Unknown principals hold
// zero.
func (s *Store) Balance(ctx context.Context, principalKey string) (uint64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT amount FROM balances WHERE principal_key = $1`, principalKey).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return uint64(balance), nil
}

// Transfer moves amount from one principal to another inside tx. The
// debit is conditional on sufficient funds; a zero-amount transfer takes
// the same path and trivially succeeds. Nothing is written when the
// surrounding transaction rolls back.
func (s *Store) Transfer(ctx context.Context, tx pgx.Tx, fromKey, toKey string, amount uint64) error {
	if fromKey == toKey {
		return ErrSameParty
	}
	if amount > maxAmount {
		return ErrInvalidAmount
	}

	// Make sure the debit row exists so a zero balance and a missing row
	// behave identically.
	if _, err := tx.Exec(ctx, `
		INSERT INTO balances (principal_key, amount) VALUES ($1, 0)
		ON CONFLICT (principal_key) DO NOTHING
	`, fromKey); err != nil {
		return fmt.Errorf("ledger: ensure debit row: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE balances
		SET amount = amount - $2
		WHERE principal_key = $1 AND amount >= $2
	`, fromKey, int64(amount))
	if err != nil {
		return fmt.Errorf("ledger: debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO balances (principal_key, amount) VALUES ($1, $2)
		ON CONFLICT (principal_key) DO UPDATE
		SET amount = balances.amount + EXCLUDED.amount
	`, toKey, int64(amount)); err != nil {
		return fmt.Errorf("ledger: credit: %w", err)
	}

	return nil
}
