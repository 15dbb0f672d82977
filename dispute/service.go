package dispute

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"datamart/listing"
	"datamart/record"
)

var (
	// ErrInvalidReason signals a reason outside (0, MaxReasonLen].
	ErrInvalidReason = errors.New("dispute: reason must be 1..512 characters")
	// ErrNotFound signals the dispute does not exist.
	ErrNotFound = errors.New("dispute: not found")
	// ErrDuplicate signals the challenger already disputed this listing.
	ErrDuplicate = errors.New("dispute: already filed by this challenger")
	// ErrListingNotFound signals the disputed listing does not exist.
	ErrListingNotFound = errors.New("dispute: listing not found")
	// ErrListingStillActive signals a dispute against an unsold listing.
	ErrListingStillActive = errors.New("dispute: listing is still active")
	// ErrChallengerNotRegistered signals the filer has no identity.
	ErrChallengerNotRegistered = errors.New("dispute: challenger is not registered")
	// ErrChallengerBanned signals the filer is banned from filing.
	ErrChallengerBanned = errors.New("dispute: challenger is banned")
	// ErrAlreadyResolved signals a second resolve attempt.
	ErrAlreadyResolved = errors.New("dispute: already resolved")
	// ErrUnauthorized signals a resolve attempt by a non-authority caller.
	ErrUnauthorized = errors.New("dispute: caller is not the configured authority")
)

// Service runs the dispute state machine. Each operation is one database
// transaction that re-reads current record state under lock, so a
// resubmitted transaction is validated from scratch.
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a dispute service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// File opens a dispute against an already-transacted listing. The
// listing must be retired, the challenger registered and not banned, and
// a challenger may dispute a given listing only once.
func (s *Service) File(ctx context.Context, params FileParams) (Record, error) {
	if n := utf8.RuneCountInString(params.Reason); n == 0 || n > MaxReasonLen {
		return Record{}, ErrInvalidReason
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status listing.Status
	err = tx.QueryRow(ctx, `SELECT status::text FROM listings WHERE address = $1 FOR SHARE`, params.ListingAddr).
		Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrListingNotFound
		}
		return Record{}, fmt.Errorf("dispute: read listing: %w", err)
	}
	if status != listing.StatusRetired {
		return Record{}, ErrListingStillActive
	}

	var banned bool
	err = tx.QueryRow(ctx, `SELECT banned FROM identities WHERE owner_key = $1`, params.ChallengerKey).
		Scan(&banned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrChallengerNotRegistered
		}
		return Record{}, fmt.Errorf("dispute: read challenger: %w", err)
	}
	if banned {
		return Record{}, ErrChallengerBanned
	}

	addr := record.Derive(record.KindDispute, params.ListingAddr, params.ChallengerKey)

	var rec Record
	err = tx.QueryRow(ctx, `
		INSERT INTO disputes (address, listing_addr, challenger_key, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING address, listing_addr, challenger_key, reason, status::text, verdict, resolver_key, filed_at, resolved_at
	`, addr, params.ListingAddr, params.ChallengerKey, params.Reason).
		Scan(&rec.Address, &rec.ListingAddr, &rec.ChallengerKey, &rec.Reason, &rec.Status, &rec.Verdict, &rec.ResolverKey, &rec.FiledAt, &rec.ResolvedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrDuplicate
		}
		return Record{}, fmt.Errorf("dispute: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit file: %w", err)
	}

	return rec, nil
}

// Resolve closes a pending dispute with a verdict. Only the configured
// authority may resolve, and each dispute resolves at most once. An
// upheld verdict re-retires the listing; that write is idempotent since
// the filing precondition already guarantees the listing is retired.
func (s *Service) Resolve(ctx context.Context, callerKey, disputeAddr string, verdict bool) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var authorityKey string
	if err := tx.QueryRow(ctx, `SELECT authority_key FROM global_config`).Scan(&authorityKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrUnauthorized
		}
		return Record{}, fmt.Errorf("dispute: read authority: %w", err)
	}
	if callerKey != authorityKey {
		return Record{}, ErrUnauthorized
	}

	var (
		status      Status
		listingAddr string
	)
	err = tx.QueryRow(ctx, `SELECT status::text, listing_addr FROM disputes WHERE address = $1 FOR UPDATE`, disputeAddr).
		Scan(&status, &listingAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: lock dispute: %w", err)
	}
	if !status.CanResolve() {
		return Record{}, ErrAlreadyResolved
	}

	var rec Record
	err = tx.QueryRow(ctx, `
		UPDATE disputes
		SET status = 'resolved', verdict = $2, resolver_key = $3, resolved_at = now()
		WHERE address = $1
		RETURNING address, listing_addr, challenger_key, reason, status::text, verdict, resolver_key, filed_at, resolved_at
	`, disputeAddr, verdict, callerKey).
		Scan(&rec.Address, &rec.ListingAddr, &rec.ChallengerKey, &rec.Reason, &rec.Status, &rec.Verdict, &rec.ResolverKey, &rec.FiledAt, &rec.ResolvedAt)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: resolve: %w", err)
	}

	if verdict {
		// No-op when the listing is already retired, which it is in
		// every case that passed the filing precondition.
		if _, err := tx.Exec(ctx, `
			UPDATE listings
			SET status = 'retired', retired_at = COALESCE(retired_at, now())
			WHERE address = $1 AND status = 'active'
		`, listingAddr); err != nil {
			return Record{}, fmt.Errorf("dispute: retire listing: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit resolve: %w", err)
	}

	return rec, nil
}

// Get retrieves a dispute by its derived address.
func (s *Service) Get(ctx context.Context, address string) (Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx, `
		SELECT address, listing_addr, challenger_key, reason, status::text, verdict, resolver_key, filed_at, resolved_at
		FROM disputes
		WHERE address = $1
	`, address).
		Scan(&rec.Address, &rec.ListingAddr, &rec.ChallengerKey, &rec.Reason, &rec.Status, &rec.Verdict, &rec.ResolverKey, &rec.FiledAt, &rec.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: get: %w", err)
	}
	return rec, nil
}

// ListForListing returns the disputes filed against one listing, newest
// first.
func (s *Service) ListForListing(ctx context.Context, listingAddr string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, listing_addr, challenger_key, reason, status::text, verdict, resolver_key, filed_at, resolved_at
		FROM disputes
		WHERE listing_addr = $1
		ORDER BY filed_at DESC
	`, listingAddr)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Address, &rec.ListingAddr, &rec.ChallengerKey, &rec.Reason, &rec.Status, &rec.Verdict, &rec.ResolverKey, &rec.FiledAt, &rec.ResolvedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}
