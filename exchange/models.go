package exchange

import "time"

// Receipt is the durable proof of a completed purchase.
type Receipt struct {
	ID          string
	ListingAddr string
	BuyerKey    string
	SellerKey   string
	Price       uint64
	Fee         uint64
	PurchasedAt time.Time
}

// PurchaseParams identifies the listing and the parties of a buy
// transaction. ExpectedSellerKey is optional: when set, the purchase
// fails if the listing's recorded owner disagrees, protecting the buyer
// from a listing that changed hands between quote and submission.
type PurchaseParams struct {
	ListingAddr       string
	BuyerKey          string
	ExpectedSellerKey string
}
