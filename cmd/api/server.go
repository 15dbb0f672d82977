package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"datamart/auth"
	"datamart/config"
	"datamart/dispute"
	"datamart/exchange"
	"datamart/identity"
	"datamart/listing"
	"datamart/review"
)

// Service interfaces consumed by the HTTP layer. Handlers depend on
// these rather than the concrete services so tests can stub them.
type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Account, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, error)
}

type configService interface {
	Initialize(ctx context.Context, params config.InitializeParams) (*config.Config, error)
	Get(ctx context.Context) (config.Config, error)
}

type identityService interface {
	Register(ctx context.Context, params identity.RegisterParams) (*identity.Identity, error)
	Get(ctx context.Context, ownerKey string) (identity.Identity, error)
	SetBan(ctx context.Context, callerKey, targetKey string, banned bool) (identity.Identity, error)
}

type listingService interface {
	Create(ctx context.Context, params listing.CreateParams) (*listing.Listing, error)
	Get(ctx context.Context, address string) (listing.Listing, error)
	ListByOwner(ctx context.Context, ownerKey string, limit int) ([]listing.Listing, error)
}

type exchangeService interface {
	Purchase(ctx context.Context, params exchange.PurchaseParams) (exchange.Receipt, error)
	ReceiptForListing(ctx context.Context, listingAddr string) (exchange.Receipt, error)
}

type disputeService interface {
	File(ctx context.Context, params dispute.FileParams) (dispute.Record, error)
	Resolve(ctx context.Context, callerKey, disputeAddr string, verdict bool) (dispute.Record, error)
	Get(ctx context.Context, address string) (dispute.Record, error)
	ListForListing(ctx context.Context, listingAddr string) ([]dispute.Record, error)
}

type reputationService interface {
	Adjust(ctx context.Context, callerKey, targetKey string, delta int64) (int64, error)
}

type reviewService interface {
	Create(ctx context.Context, params review.CreateParams) (*review.Review, error)
	Update(ctx context.Context, params review.UpdateParams) (*review.Review, error)
	ListForListing(ctx context.Context, listingAddr string) ([]review.Review, error)
}

type ledgerService interface {
	Deposit(ctx context.Context, principalKey string, amount uint64) (uint64, error)
	Balance(ctx context.Context, principalKey string) (uint64, error)
}

// Server routes marketplace transaction entry points.
type Server struct {
	log zerolog.Logger

	authService       authService
	configService     configService
	identityService   identityService
	listingService    listingService
	exchangeService   exchangeService
	disputeService    disputeService
	reputationService reputationService
	reviewService     reviewService
	ledgerService     ledgerService
}

// Routes builds the HTTP mux covering every entry point.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleAuthRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleAuthLogin)

	mux.HandleFunc("POST /api/config", s.requirePrincipal(s.handleInitializeConfig))
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	mux.HandleFunc("POST /api/identities", s.requirePrincipal(s.handleRegisterIdentity))
	mux.HandleFunc("GET /api/identities/{key}", s.handleGetIdentity)
	mux.HandleFunc("POST /api/identities/{key}/ban", s.requirePrincipal(s.handleSetBan))
	mux.HandleFunc("POST /api/identities/{key}/reputation", s.requirePrincipal(s.handleAdjustReputation))

	mux.HandleFunc("GET /api/identities/{key}/listings", s.handleListOwnerListings)

	mux.HandleFunc("POST /api/listings", s.requirePrincipal(s.handleCreateListing))
	mux.HandleFunc("GET /api/listings/{addr}", s.handleGetListing)
	mux.HandleFunc("POST /api/listings/{addr}/purchase", s.requirePrincipal(s.handlePurchase))
	mux.HandleFunc("GET /api/listings/{addr}/receipt", s.handleGetReceipt)
	mux.HandleFunc("POST /api/listings/{addr}/disputes", s.requirePrincipal(s.handleFileDispute))
	mux.HandleFunc("GET /api/listings/{addr}/disputes", s.handleListDisputes)
	mux.HandleFunc("POST /api/listings/{addr}/reviews", s.requirePrincipal(s.handleCreateReview))
	mux.HandleFunc("GET /api/listings/{addr}/reviews", s.handleListReviews)

	mux.HandleFunc("GET /api/disputes/{addr}", s.handleGetDispute)
	mux.HandleFunc("POST /api/disputes/{addr}/resolve", s.requirePrincipal(s.handleResolveDispute))

	mux.HandleFunc("PATCH /api/reviews/{addr}", s.requirePrincipal(s.handleUpdateReview))

	mux.HandleFunc("POST /api/ledger/deposit", s.requirePrincipal(s.handleDeposit))
	mux.HandleFunc("GET /api/ledger/balance", s.requirePrincipal(s.handleBalance))

	return mux
}

type principalKeyCtx struct{}

// requirePrincipal resolves the bearer token to an authenticated
// principal key before the core operation runs. The core itself only
// ever compares already-authenticated keys.
func (s *Server) requirePrincipal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		principalKey, err := s.authService.VerifyToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), principalKeyCtx{}, principalKey)
		next(w, r.WithContext(ctx))
	}
}

func principalFrom(r *http.Request) string {
	key, _ := r.Context().Value(principalKeyCtx{}).(string)
	return key
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
