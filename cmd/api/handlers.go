package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"datamart/auth"
	"datamart/config"
	"datamart/dispute"
	"datamart/exchange"
	"datamart/identity"
	"datamart/ledger"
	"datamart/listing"
	"datamart/reputation"
	"datamart/review"
)

type accountResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PrincipalKey string `json:"principal_key"`
	CreatedAt    string `json:"created_at"`
}

type loginResponse struct {
	Token        string `json:"token"`
	PrincipalKey string `json:"principal_key"`
}

type configResponse struct {
	Address        string `json:"address"`
	AuthorityKey   string `json:"authority_key"`
	TreasuryKey    string `json:"treasury_key"`
	FeeBasisPoints uint32 `json:"fee_basis_points"`
}

type identityResponse struct {
	Address     string `json:"address"`
	OwnerKey    string `json:"owner_key"`
	DisplayName string `json:"display_name"`
	Reputation  int64  `json:"reputation"`
	Banned      bool   `json:"banned"`
	CreatedAt   string `json:"created_at"`
}

type listingResponse struct {
	Address    string  `json:"address"`
	OwnerKey   string  `json:"owner_key"`
	Price      uint64  `json:"price"`
	ContentRef string  `json:"content_ref"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	RetiredAt  *string `json:"retired_at,omitempty"`
}

type receiptResponse struct {
	ID          string `json:"id"`
	ListingAddr string `json:"listing_addr"`
	BuyerKey    string `json:"buyer_key"`
	SellerKey   string `json:"seller_key"`
	Price       uint64 `json:"price"`
	Fee         uint64 `json:"fee"`
	PurchasedAt string `json:"purchased_at"`
}

type disputeResponse struct {
	Address       string  `json:"address"`
	ListingAddr   string  `json:"listing_addr"`
	ChallengerKey string  `json:"challenger_key"`
	Reason        string  `json:"reason"`
	Status        string  `json:"status"`
	Verdict       bool    `json:"verdict"`
	ResolverKey   string  `json:"resolver_key,omitempty"`
	FiledAt       string  `json:"filed_at"`
	ResolvedAt    *string `json:"resolved_at,omitempty"`
}

type reviewResponse struct {
	Address     string `json:"address"`
	ListingAddr string `json:"listing_addr"`
	ReviewerKey string `json:"reviewer_key"`
	Rating      int16  `json:"rating"`
	Body        string `json:"body"`
	CreatedAt   string `json:"created_at"`
}

type balanceResponse struct {
	PrincipalKey string `json:"principal_key"`
	Balance      uint64 `json:"balance"`
}

func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	account, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse{
		ID:           account.ID,
		Email:        account.Email,
		PrincipalKey: account.PrincipalKey,
		CreatedAt:    account.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:        result.Token,
		PrincipalKey: result.Account.PrincipalKey,
	})
}

func (s *Server) handleInitializeConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TreasuryKey    string `json:"treasury_key"`
		FeeBasisPoints uint32 `json:"fee_basis_points"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	// The bootstrapping caller becomes the authority.
	cfg, err := s.configService.Initialize(r.Context(), config.InitializeParams{
		AuthorityKey:   principalFrom(r),
		TreasuryKey:    req.TreasuryKey,
		FeeBasisPoints: req.FeeBasisPoints,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, configResponse{
		Address:        cfg.Address,
		AuthorityKey:   cfg.AuthorityKey,
		TreasuryKey:    cfg.TreasuryKey,
		FeeBasisPoints: cfg.FeeBasisPoints,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configService.Get(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, configResponse{
		Address:        cfg.Address,
		AuthorityKey:   cfg.AuthorityKey,
		TreasuryKey:    cfg.TreasuryKey,
		FeeBasisPoints: cfg.FeeBasisPoints,
	})
}

func (s *Server) handleRegisterIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.identityService.Register(r.Context(), identity.RegisterParams{
		OwnerKey:    principalFrom(r),
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, identityJSON(*id))
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := s.identityService.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identityJSON(id))
}

func (s *Server) handleSetBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Banned bool `json:"banned"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.identityService.SetBan(r.Context(), principalFrom(r), r.PathValue("key"), req.Banned)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, identityJSON(id))
}

func (s *Server) handleAdjustReputation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int64 `json:"delta"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	score, err := s.reputationService.Adjust(r.Context(), principalFrom(r), r.PathValue("key"), req.Delta)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"reputation": score})
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentRef string `json:"content_ref"`
		Price      uint64 `json:"price"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	l, err := s.listingService.Create(r.Context(), listing.CreateParams{
		OwnerKey:   principalFrom(r),
		ContentRef: req.ContentRef,
		Price:      req.Price,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, listingJSON(*l))
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.listingService.Get(r.Context(), r.PathValue("addr"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingJSON(l))
}

func (s *Server) handleListOwnerListings(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be 1..100")
			return
		}
		limit = n
	}

	listings, err := s.listingService.ListByOwner(r.Context(), r.PathValue("key"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingJSON(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpectedSellerKey string `json:"expected_seller_key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	receipt, err := s.exchangeService.Purchase(r.Context(), exchange.PurchaseParams{
		ListingAddr:       r.PathValue("addr"),
		BuyerKey:          principalFrom(r),
		ExpectedSellerKey: req.ExpectedSellerKey,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, receiptResponse{
		ID:          receipt.ID,
		ListingAddr: receipt.ListingAddr,
		BuyerKey:    receipt.BuyerKey,
		SellerKey:   receipt.SellerKey,
		Price:       receipt.Price,
		Fee:         receipt.Fee,
		PurchasedAt: receipt.PurchasedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.exchangeService.ReceiptForListing(r.Context(), r.PathValue("addr"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receiptResponse{
		ID:          receipt.ID,
		ListingAddr: receipt.ListingAddr,
		BuyerKey:    receipt.BuyerKey,
		SellerKey:   receipt.SellerKey,
		Price:       receipt.Price,
		Fee:         receipt.Fee,
		PurchasedAt: receipt.PurchasedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleFileDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rec, err := s.disputeService.File(r.Context(), dispute.FileParams{
		ChallengerKey: principalFrom(r),
		ListingAddr:   r.PathValue("addr"),
		Reason:        req.Reason,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, disputeJSON(rec))
}

func (s *Server) handleListDisputes(w http.ResponseWriter, r *http.Request) {
	recs, err := s.disputeService.ListForListing(r.Context(), r.PathValue("addr"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]disputeResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, disputeJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	rec, err := s.disputeService.Get(r.Context(), r.PathValue("addr"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disputeJSON(rec))
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Verdict bool `json:"verdict"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rec, err := s.disputeService.Resolve(r.Context(), principalFrom(r), r.PathValue("addr"), req.Verdict)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, disputeJSON(rec))
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating int16  `json:"rating"`
		Body   string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rev, err := s.reviewService.Create(r.Context(), review.CreateParams{
		ReviewerKey: principalFrom(r),
		ListingAddr: r.PathValue("addr"),
		Rating:      req.Rating,
		Body:        req.Body,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reviewJSON(*rev))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating int16  `json:"rating"`
		Body   string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rev, err := s.reviewService.Update(r.Context(), review.UpdateParams{
		ReviewerKey: principalFrom(r),
		Address:     r.PathValue("addr"),
		Rating:      req.Rating,
		Body:        req.Body,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewJSON(*rev))
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	revs, err := s.reviewService.ListForListing(r.Context(), r.PathValue("addr"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]reviewResponse, 0, len(revs))
	for _, rev := range revs {
		out = append(out, reviewJSON(rev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	key := principalFrom(r)
	balance, err := s.ledgerService.Deposit(r.Context(), key, req.Amount)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{PrincipalKey: key, Balance: balance})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	key := principalFrom(r)
	balance, err := s.ledgerService.Balance(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{PrincipalKey: key, Balance: balance})
}

// writeServiceError maps domain sentinels onto HTTP statuses. Unknown
// errors are logged and surfaced as 500 without leaking detail.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidDisplayName),
		errors.Is(err, identity.ErrMissingOwnerKey),
		errors.Is(err, listing.ErrInvalidContentRef),
		errors.Is(err, listing.ErrInvalidPrice),
		errors.Is(err, dispute.ErrInvalidReason),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, review.ErrInvalidBody),
		errors.Is(err, config.ErrInvalidFeeRate),
		errors.Is(err, config.ErrMissingKey),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameParty),
		errors.Is(err, exchange.ErrOverflow),
		errors.Is(err, exchange.ErrUnderflow),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, identity.ErrUnauthorized),
		errors.Is(err, dispute.ErrUnauthorized),
		errors.Is(err, reputation.ErrUnauthorized),
		errors.Is(err, review.ErrForbidden),
		errors.Is(err, listing.ErrOwnerBanned),
		errors.Is(err, dispute.ErrChallengerBanned):
		writeError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, identity.ErrNotFound),
		errors.Is(err, listing.ErrNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, dispute.ErrListingNotFound),
		errors.Is(err, exchange.ErrListingNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, reputation.ErrNotFound),
		errors.Is(err, config.ErrNotInitialized),
		errors.Is(err, auth.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, identity.ErrAlreadyRegistered),
		errors.Is(err, listing.ErrDuplicate),
		errors.Is(err, dispute.ErrDuplicate),
		errors.Is(err, review.ErrDuplicate),
		errors.Is(err, config.ErrAlreadyInitialized),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, exchange.ErrListingInactive),
		errors.Is(err, exchange.ErrSellerMismatch),
		errors.Is(err, exchange.ErrSelfPurchase),
		errors.Is(err, exchange.ErrNotConfigured),
		errors.Is(err, listing.ErrOwnerNotRegistered),
		errors.Is(err, dispute.ErrChallengerNotRegistered),
		errors.Is(err, review.ErrNoPurchase),
		errors.Is(err, dispute.ErrListingStillActive),
		errors.Is(err, dispute.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())

	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func identityJSON(id identity.Identity) identityResponse {
	return identityResponse{
		Address:     id.Address,
		OwnerKey:    id.OwnerKey,
		DisplayName: id.DisplayName,
		Reputation:  id.Reputation,
		Banned:      id.Banned,
		CreatedAt:   id.CreatedAt.Format(time.RFC3339),
	}
}

func listingJSON(l listing.Listing) listingResponse {
	resp := listingResponse{
		Address:    l.Address,
		OwnerKey:   l.OwnerKey,
		Price:      l.Price,
		ContentRef: l.ContentRef,
		Status:     string(l.Status),
		CreatedAt:  l.CreatedAt.Format(time.RFC3339),
	}
	if l.RetiredAt != nil {
		v := l.RetiredAt.Format(time.RFC3339)
		resp.RetiredAt = &v
	}
	return resp
}

func disputeJSON(rec dispute.Record) disputeResponse {
	resp := disputeResponse{
		Address:       rec.Address,
		ListingAddr:   rec.ListingAddr,
		ChallengerKey: rec.ChallengerKey,
		Reason:        rec.Reason,
		Status:        string(rec.Status),
		Verdict:       rec.Verdict,
		ResolverKey:   rec.ResolverKey,
		FiledAt:       rec.FiledAt.Format(time.RFC3339),
	}
	if rec.ResolvedAt != nil {
		v := rec.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &v
	}
	return resp
}

func reviewJSON(rev review.Review) reviewResponse {
	return reviewResponse{
		Address:     rev.Address,
		ListingAddr: rev.ListingAddr,
		ReviewerKey: rev.ReviewerKey,
		Rating:      rev.Rating,
		Body:        rev.Body,
		CreatedAt:   rev.CreatedAt.Format(time.RFC3339),
	}
}
