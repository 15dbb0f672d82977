package exchange

import (
	"errors"
	"math"
	"testing"
)

func TestSplitPrice(t *testing.T) {
	cases := []struct {
		name       string
		price      uint64
		bps        uint32
		wantSeller uint64
		wantFee    uint64
	}{
		{"typical", 1_000_000, 250, 975_000, 25_000},
		{"zero fee rate", 1_000_000, 0, 1_000_000, 0},
		{"zero price", 0, 250, 0, 0},
		{"full fee", 40_000, 10_000, 0, 40_000},
		{"floor rounding", 999, 250, 975, 24},
		{"one unit", 1, 250, 1, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seller, fee, err := SplitPrice(tc.price, tc.bps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seller != tc.wantSeller || fee != tc.wantFee {
				t.Fatalf("got seller=%d fee=%d, want seller=%d fee=%d", seller, fee, tc.wantSeller, tc.wantFee)
			}
			if seller+fee != tc.price {
				t.Fatalf("conservation violated: %d + %d != %d", seller, fee, tc.price)
			}
		})
	}
}

func TestSplitPrice_Overflow(t *testing.T) {
	if _, _, err := SplitPrice(math.MaxUint64, 250); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}

	// Largest price that survives the multiplication must still split
	// exactly.
	price := uint64(math.MaxUint64 / 250)
	seller, fee, err := SplitPrice(price, 250)
	if err != nil {
		t.Fatalf("unexpected error at boundary: %v", err)
	}
	if seller+fee != price {
		t.Fatalf("conservation violated at boundary: %d + %d != %d", seller, fee, price)
	}
}

func TestSplitPrice_Conservation(t *testing.T) {
	// Fee conservation across a spread of prices and rates.
	prices := []uint64{0, 1, 9, 10, 99, 10_000, 123_456_789, 1 << 40}
	rates := []uint32{0, 1, 250, 2_500, 9_999, 10_000}

	for _, p := range prices {
		for _, r := range rates {
			seller, fee, err := SplitPrice(p, r)
			if err != nil {
				t.Fatalf("price=%d bps=%d: %v", p, r, err)
			}
			if seller+fee != p {
				t.Fatalf("price=%d bps=%d: %d + %d != %d", p, r, seller, fee, p)
			}
			if fee > p {
				t.Fatalf("price=%d bps=%d: fee %d exceeds price", p, r, fee)
			}
		}
	}
}
