package exchange

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"datamart/dispute"
	"datamart/identity"
	"datamart/ledger"
	"datamart/listing"
	"datamart/record"
)

// TestPurchaseLifecycle_Integration connects to a real PostgreSQL via
// DATABASE_URL and walks a full marketplace round trip: register
// identities, list, fund, purchase, then dispute the retired listing and
// resolve it. It verifies the fee split lands on the right balances and
// that the listing cannot be bought twice.
func TestPurchaseLifecycle_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"global_config", "identities", "listings", "balances", "receipts", "disputes"} {
		if !tableExists(ctx, t, pool, table) {
			t.Skipf("database schema missing table %s; apply migrations first", table)
		}
	}

	nonce := time.Now().UnixNano()
	sellerKey := fmt.Sprintf("itest-seller-%d", nonce)
	buyerKey := fmt.Sprintf("itest-buyer-%d", nonce)

	// The config row is a singleton at a fixed derived address; seed one
	// if the database is fresh, otherwise use whatever authority and fee
	// rate are already there.
	configAddr := record.Derive(record.KindConfig)
	tag, err := pool.Exec(ctx, `
        INSERT INTO global_config (address, authority_key, treasury_key, fee_basis_points)
        VALUES ($1, $2, $3, 250)
        ON CONFLICT (address) DO NOTHING
    `, configAddr, fmt.Sprintf("itest-authority-%d", nonce), fmt.Sprintf("itest-treasury-%d", nonce))
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}
	seededConfig := tag.RowsAffected() == 1

	var authorityKey, treasuryKey string
	var feeBasisPoints uint32
	if err := pool.QueryRow(ctx, `SELECT authority_key, treasury_key, fee_basis_points FROM global_config`).
		Scan(&authorityKey, &treasuryKey, &feeBasisPoints); err != nil {
		t.Fatalf("read config: %v", err)
	}

	identities := identity.NewService(identity.NewRepository(pool), staticKey(authorityKey))
	listings := listing.NewService(listing.NewRepository(pool))
	store := ledger.NewStore(pool)
	exchanges := NewService(pool, store)
	disputes := dispute.NewService(pool)

	if _, err := identities.Register(ctx, identity.RegisterParams{OwnerKey: sellerKey, DisplayName: "Seller"}); err != nil {
		t.Fatalf("register seller: %v", err)
	}
	if _, err := identities.Register(ctx, identity.RegisterParams{OwnerKey: buyerKey, DisplayName: "Buyer"}); err != nil {
		t.Fatalf("register buyer: %v", err)
	}

	const price = uint64(1_000_000)
	l, err := listings.Create(ctx, listing.CreateParams{
		OwnerKey:   sellerKey,
		ContentRef: fmt.Sprintf("ipfs://itest-%d", nonce),
		Price:      price,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM disputes WHERE listing_addr = $1`, l.Address)
		pool.Exec(ctx2, `DELETE FROM receipts WHERE listing_addr = $1`, l.Address)
		pool.Exec(ctx2, `DELETE FROM listings WHERE address = $1`, l.Address)
		pool.Exec(ctx2, `DELETE FROM balances WHERE principal_key IN ($1, $2)`, sellerKey, buyerKey)
		pool.Exec(ctx2, `DELETE FROM identities WHERE owner_key IN ($1, $2)`, sellerKey, buyerKey)
		if seededConfig {
			pool.Exec(ctx2, `DELETE FROM global_config WHERE address = $1`, configAddr)
		}
	})

	if _, err := store.Deposit(ctx, buyerKey, price); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}

	treasuryBefore, err := store.Balance(ctx, treasuryKey)
	if err != nil {
		t.Fatalf("read treasury balance: %v", err)
	}

	receipt, err := exchanges.Purchase(ctx, PurchaseParams{
		ListingAddr:       l.Address,
		BuyerKey:          buyerKey,
		ExpectedSellerKey: sellerKey,
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	wantSeller, wantFee, err := SplitPrice(price, feeBasisPoints)
	if err != nil {
		t.Fatalf("split price: %v", err)
	}
	if receipt.Price != price || receipt.Fee != wantFee {
		t.Fatalf("receipt split mismatch: price=%d fee=%d want fee %d", receipt.Price, receipt.Fee, wantFee)
	}

	buyerAfter, err := store.Balance(ctx, buyerKey)
	if err != nil {
		t.Fatalf("read buyer balance: %v", err)
	}
	if buyerAfter != 0 {
		t.Fatalf("expected buyer drained to 0, got %d", buyerAfter)
	}

	sellerAfter, err := store.Balance(ctx, sellerKey)
	if err != nil {
		t.Fatalf("read seller balance: %v", err)
	}
	if sellerAfter != wantSeller {
		t.Fatalf("expected seller balance %d, got %d", wantSeller, sellerAfter)
	}

	treasuryAfter, err := store.Balance(ctx, treasuryKey)
	if err != nil {
		t.Fatalf("re-read treasury balance: %v", err)
	}
	if treasuryAfter-treasuryBefore != wantFee {
		t.Fatalf("expected treasury delta %d, got %d", wantFee, treasuryAfter-treasuryBefore)
	}

	got, err := listings.Get(ctx, l.Address)
	if err != nil {
		t.Fatalf("re-read listing: %v", err)
	}
	if got.Status != listing.StatusRetired {
		t.Fatalf("expected listing retired after purchase, got %s", got.Status)
	}

	// The listing is out of circulation; a second buy must be rejected.
	if _, err := exchanges.Purchase(ctx, PurchaseParams{ListingAddr: l.Address, BuyerKey: sellerKey}); !errors.Is(err, ErrListingInactive) {
		t.Fatalf("expected ErrListingInactive on second purchase, got %v", err)
	}

	// A reason at the rune bound exceeds MaxReasonLen in bytes when the
	// text is multibyte; both the service and the schema must take it.
	reason := strings.Repeat("é", dispute.MaxReasonLen)
	filed, err := disputes.File(ctx, dispute.FileParams{
		ChallengerKey: buyerKey,
		ListingAddr:   l.Address,
		Reason:        reason,
	})
	if err != nil {
		t.Fatalf("file dispute: %v", err)
	}
	if filed.Status != dispute.StatusPending {
		t.Fatalf("expected pending dispute, got %s", filed.Status)
	}

	// Only the configured authority may resolve; the challenger cannot.
	if _, err := disputes.Resolve(ctx, buyerKey, filed.Address, true); !errors.Is(err, dispute.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-authority resolver, got %v", err)
	}

	resolved, err := disputes.Resolve(ctx, authorityKey, filed.Address, true)
	if err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if resolved.Status != dispute.StatusResolved || !resolved.Verdict || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved record: %+v", resolved)
	}

	// Resolution is terminal.
	if _, err := disputes.Resolve(ctx, authorityKey, filed.Address, false); !errors.Is(err, dispute.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved on replay, got %v", err)
	}
}

// staticKey satisfies identity.AuthorityReader with a fixed key.
type staticKey string

func (k staticKey) AuthorityKey(context.Context) (string, error) {
	return string(k), nil
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
