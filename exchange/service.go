package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"datamart/listing"
)

var (
	// ErrListingNotFound signals the listing address resolves to nothing.
	ErrListingNotFound = errors.New("exchange: listing not found")
	// ErrListingInactive signals the listing was already sold or withdrawn.
	ErrListingInactive = errors.New("exchange: listing is inactive")
	// ErrSellerMismatch signals the expected seller is not the listing owner.
	ErrSellerMismatch = errors.New("exchange: seller does not own the listing")
	// ErrSelfPurchase signals a buyer attempting to buy their own listing.
	ErrSelfPurchase = errors.New("exchange: buyer owns the listing")
	// ErrNotConfigured signals the marketplace was never initialized.
	ErrNotConfigured = errors.New("exchange: marketplace not configured")
)

// Transferer moves value between principals inside the purchase
// transaction. The ledger store satisfies it.
type Transferer interface {
	Transfer(ctx context.Context, tx pgx.Tx, fromKey, toKey string, amount uint64) error
}

// Service executes the atomic buy transaction: fee split, both transfer
// legs, listing retirement and receipt, all in one database transaction.
type Service struct {
	pool   *pgxpool.Pool
	ledger Transferer
}

// NewService creates an exchange service.
func NewService(pool *pgxpool.Pool, ledger Transferer) *Service {
	return &Service{pool: pool, ledger: ledger}
}

// Purchase buys a listing. The listing row is locked and re-read inside
// the transaction, so a resubmitted purchase always validates against
// current state; once the first purchase commits, every retry fails with
// ErrListingInactive and moves no funds.
func (s *Service) Purchase(ctx context.Context, params PurchaseParams) (Receipt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("exchange: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		sellerKey string
		price     int64
		status    listing.Status
	)
	err = tx.QueryRow(ctx, `
		SELECT owner_key, price, status::text
		FROM listings
		WHERE address = $1
		FOR UPDATE
	`, params.ListingAddr).Scan(&sellerKey, &price, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrListingNotFound
		}
		return Receipt{}, fmt.Errorf("exchange: lock listing: %w", err)
	}

	if !status.CanRetire() {
		return Receipt{}, ErrListingInactive
	}
	if params.ExpectedSellerKey != "" && params.ExpectedSellerKey != sellerKey {
		return Receipt{}, ErrSellerMismatch
	}
	if params.BuyerKey == sellerKey {
		return Receipt{}, ErrSelfPurchase
	}

	var (
		treasuryKey    string
		feeBasisPoints uint32
	)
	err = tx.QueryRow(ctx, `SELECT treasury_key, fee_basis_points FROM global_config`).
		Scan(&treasuryKey, &feeBasisPoints)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrNotConfigured
		}
		return Receipt{}, fmt.Errorf("exchange: read config: %w", err)
	}

	sellerAmount, fee, err := SplitPrice(uint64(price), feeBasisPoints)
	if err != nil {
		return Receipt{}, err
	}

	// Two discrete legs of one atomic transaction: a failure in either
	// rolls back everything, including the retirement below.
	if err := s.ledger.Transfer(ctx, tx, params.BuyerKey, sellerKey, sellerAmount); err != nil {
		return Receipt{}, err
	}
	if err := s.ledger.Transfer(ctx, tx, params.BuyerKey, treasuryKey, fee); err != nil {
		return Receipt{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE listings
		SET status = 'retired', retired_at = now()
		WHERE address = $1
	`, params.ListingAddr); err != nil {
		return Receipt{}, fmt.Errorf("exchange: retire listing: %w", err)
	}

	receipt := Receipt{
		ListingAddr: params.ListingAddr,
		BuyerKey:    params.BuyerKey,
		SellerKey:   sellerKey,
		Price:       uint64(price),
		Fee:         fee,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO receipts (listing_addr, buyer_key, seller_key, price, fee)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, purchased_at
	`, params.ListingAddr, params.BuyerKey, sellerKey, price, int64(fee)).
		Scan(&receipt.ID, &receipt.PurchasedAt)
	if err != nil {
		return Receipt{}, fmt.Errorf("exchange: insert receipt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, fmt.Errorf("exchange: commit purchase: %w", err)
	}

	return receipt, nil
}

// ReceiptForListing returns the receipt of a sold listing, if any.
func (s *Service) ReceiptForListing(ctx context.Context, listingAddr string) (Receipt, error) {
	var (
		r     Receipt
		price int64
		fee   int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, listing_addr, buyer_key, seller_key, price, fee, purchased_at
		FROM receipts
		WHERE listing_addr = $1
	`, listingAddr).Scan(&r.ID, &r.ListingAddr, &r.BuyerKey, &r.SellerKey, &price, &fee, &r.PurchasedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrListingNotFound
		}
		return Receipt{}, fmt.Errorf("exchange: receipt lookup: %w", err)
	}
	r.Price = uint64(price)
	r.Fee = uint64(fee)
	return r, nil
}
