package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"datamart/dispute"
	"datamart/exchange"
	"datamart/listing"
	"datamart/review"
)

// Actors drive the marketplace concurrently against a live database.
// Domain rejections (duplicate listings, drained balances, already-sold
// listings) are the expected texture of contention and are swallowed;
// anything the invariants would catch surfaces through the oracles.

// Seller keeps publishing fresh listings under one owner key.
func Seller(ctx context.Context, listings *listing.Service, ownerKey string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := listings.Create(ctx, listing.CreateParams{
			OwnerKey:   ownerKey,
			ContentRef: fmt.Sprintf("ipfs://stress-%d", rand.Int63()),
			Price:      uint64(rand.Intn(100_000)),
		})
		if err != nil && !errors.Is(err, listing.ErrDuplicate) && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Buyer races other buyers for active listings, spending down a balance
// funded once at seed time so the harness can check conservation exactly.
func Buyer(ctx context.Context, pool *pgxpool.Pool, exchanges *exchange.Service, buyerKey string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var addr, owner string
		err := pool.QueryRow(ctx, `SELECT address, owner_key FROM listings WHERE status = 'active' ORDER BY random() LIMIT 1`).Scan(&addr, &owner)
		if err == nil {
			_, _ = exchanges.Purchase(ctx, exchange.PurchaseParams{
				ListingAddr:       addr,
				BuyerKey:          buyerKey,
				ExpectedSellerKey: owner,
			})
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

// Disputer files complaints against retired listings, racing other
// challengers for the one-dispute-per-challenger slot.
func Disputer(ctx context.Context, pool *pgxpool.Pool, disputes *dispute.Service, challengerKey string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var addr string
		err := pool.QueryRow(ctx, `SELECT address FROM listings WHERE status = 'retired' ORDER BY random() LIMIT 1`).Scan(&addr)
		if err == nil {
			_, _ = disputes.File(ctx, dispute.FileParams{
				ChallengerKey: challengerKey,
				ListingAddr:   addr,
				Reason:        fmt.Sprintf("stress complaint %d", rand.Int63()),
			})
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// Resolver plays the authority, closing pending disputes with random
// verdicts. Replays against already-resolved disputes must be rejected.
func Resolver(ctx context.Context, pool *pgxpool.Pool, disputes *dispute.Service, authorityKey string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var addr string
		err := pool.QueryRow(ctx, `SELECT address FROM disputes WHERE status = 'pending' ORDER BY random() LIMIT 1`).Scan(&addr)
		if err == nil {
			_, _ = disputes.Resolve(ctx, authorityKey, addr, rand.Intn(2) == 0)
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(50+rand.Intn(80)) * time.Millisecond)
	}
}

// Reviewer rates listings its key actually bought; attempts against
// unpurchased listings are gated by the receipt lookup.
func Reviewer(ctx context.Context, pool *pgxpool.Pool, reviews *review.Service, reviewerKey string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var addr string
		err := pool.QueryRow(ctx, `SELECT listing_addr FROM receipts WHERE buyer_key = $1 ORDER BY random() LIMIT 1`, reviewerKey).Scan(&addr)
		if err == nil {
			_, _ = reviews.Create(ctx, review.CreateParams{
				ReviewerKey: reviewerKey,
				ListingAddr: addr,
				Rating:      int16(1 + rand.Intn(5)),
				Body:        "solid dataset",
			})
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(60+rand.Intn(90)) * time.Millisecond)
	}
}
