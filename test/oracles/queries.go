package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns invariant queries that must come back empty at any point
// during a run, no matter how the actors interleave.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_receipt_per_listing",
			SQL: `SELECT listing_addr, COUNT(*) FROM receipts
                  GROUP BY listing_addr HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_receipts_only_for_retired",
			SQL: `SELECT r.id FROM receipts r
                  JOIN listings l ON l.address = r.listing_addr
                  WHERE l.status <> 'retired'`,
		},
		{
			Name: "O3_no_negative_balances",
			SQL:  `SELECT principal_key, amount FROM balances WHERE amount < 0`,
		},
		{
			Name: "O4_fee_split_matches_config",
			SQL: `SELECT r.id FROM receipts r, global_config g
                  WHERE r.fee::numeric <> div(r.price::numeric * g.fee_basis_points, 10000)
                     OR r.fee < 0 OR r.fee > r.price`,
		},
		{
			Name: "O5_no_self_purchase",
			SQL:  `SELECT id FROM receipts WHERE buyer_key = seller_key`,
		},
		{
			Name: "O6_resolution_terminal",
			SQL: `SELECT address FROM disputes
                  WHERE (status = 'resolved') <> (resolved_at IS NOT NULL)
                     OR (status = 'resolved' AND resolver_key = '')`,
		},
		{
			Name: "O7_disputes_only_on_retired",
			SQL: `SELECT d.address FROM disputes d
                  JOIN listings l ON l.address = d.listing_addr
                  WHERE l.status <> 'retired'`,
		},
		{
			Name: "O8_retirement_timestamped",
			SQL: `SELECT address FROM listings
                  WHERE (status = 'retired') <> (retired_at IS NOT NULL)`,
		},
		{
			Name: "O9_one_dispute_per_challenger",
			SQL: `SELECT listing_addr, challenger_key, COUNT(*) FROM disputes
                  GROUP BY listing_addr, challenger_key HAVING COUNT(*) > 1`,
		},
		{
			Name: "O10_reviews_backed_by_receipts",
			SQL: `SELECT v.address FROM reviews v
                  LEFT JOIN receipts r
                    ON r.listing_addr = v.listing_addr AND r.buyer_key = v.reviewer_key
                  WHERE r.id IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
