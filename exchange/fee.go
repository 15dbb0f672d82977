package exchange

import (
	"errors"
	"math"
)

var (
	// ErrOverflow signals the fee computation would wrap a 64-bit value.
	ErrOverflow = errors.New("exchange: fee computation overflows")
	// ErrUnderflow signals the fee exceeds the price. Unreachable while
	// the fee rate is capped at 10,000 basis points, but the subtraction
	// is guarded rather than trusted.
	ErrUnderflow = errors.New("exchange: fee exceeds price")
)

// SplitPrice divides a sale price into the seller's share and the
// platform fee, fee = floor(price * feeBasisPoints / 10_000). Exact
// integer semantics: the two parts always sum to the price, and any
// computation that cannot be represented fails instead of wrapping.
func SplitPrice(price uint64, feeBasisPoints uint32) (sellerAmount, fee uint64, err error) {
	bps := uint64(feeBasisPoints)
	if bps != 0 && price > math.MaxUint64/bps {
		return 0, 0, ErrOverflow
	}
	fee = price * bps / 10_000
	if fee > price {
		return 0, 0, ErrUnderflow
	}
	return price - fee, fee, nil
}
