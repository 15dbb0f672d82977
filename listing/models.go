package listing

import "time"

// MaxContentRefLen bounds the opaque content reference. 96 characters is
// enough for any current content CID.
const MaxContentRefLen = 96

// MaxPrice is the largest storable price. The price column is a signed
// 64-bit integer, so the upper half of the uint64 range is rejected at
// creation time.
const MaxPrice = uint64(1<<63 - 1)

// Status is the lifecycle state of a listing. Retirement is a one-way
// gate: there is no transition back to active.
type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// CanRetire reports whether the status may advance to retired. It is the
// only legal transition.
func (s Status) CanRetire() bool {
	return s == StatusActive
}

// Listing mirrors the listings table.
type Listing struct {
	Address    string
	OwnerKey   string
	Price      uint64
	ContentRef string
	Status     Status
	CreatedAt  time.Time
	RetiredAt  *time.Time
}

// CreateParams contains listing creation data supplied by callers.
type CreateParams struct {
	OwnerKey   string
	ContentRef string
	Price      uint64
}
