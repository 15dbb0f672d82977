package review

import "time"

// MaxBodyLen bounds the review text.
const MaxBodyLen = 1024

// Review is a buyer's assessment of a purchased dataset. One review per
// (listing, reviewer) pair; only the buyer on record may file it.
type Review struct {
	Address     string
	ListingAddr string
	ReviewerKey string
	Rating      int16
	Body        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateParams contains review creation data supplied by callers.
type CreateParams struct {
	ReviewerKey string
	ListingAddr string
	Rating      int16
	Body        string
}

// UpdateParams contains review update data supplied by callers.
type UpdateParams struct {
	ReviewerKey string
	Address     string
	Rating      int16
	Body        string
}
