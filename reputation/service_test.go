package reputation

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestSaturatingAdd(t *testing.T) {
	cases := []struct {
		name  string
		score int64
		delta int64
		want  int64
	}{
		{"plain addition", 10, 5, 15},
		{"plain subtraction", 10, -25, -15},
		{"zero delta", math.MaxInt64, 0, math.MaxInt64},
		{"clamp high", math.MaxInt64, 1, math.MaxInt64},
		{"clamp high from below", math.MaxInt64 - 3, 10, math.MaxInt64},
		{"clamp low", math.MinInt64, -1, math.MinInt64},
		{"clamp low from above", math.MinInt64 + 3, -10, math.MinInt64},
		{"full swing down", math.MaxInt64, math.MinInt64, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := saturatingAdd(tc.score, tc.delta); got != tc.want {
				t.Fatalf("saturatingAdd(%d, %d) = %d, want %d", tc.score, tc.delta, got, tc.want)
			}
		})
	}
}

func TestSaturatingAdd_NeverWraps(t *testing.T) {
	// Repeated positive adjustments pin at the ceiling.
	score := int64(math.MaxInt64 - 10)
	for i := 0; i < 5; i++ {
		score = saturatingAdd(score, 7)
	}
	if score != math.MaxInt64 {
		t.Fatalf("expected score pinned at MaxInt64, got %d", score)
	}

	// And back down: repeated negative adjustments pin at the floor.
	score = int64(math.MinInt64 + 10)
	for i := 0; i < 5; i++ {
		score = saturatingAdd(score, -7)
	}
	if score != math.MinInt64 {
		t.Fatalf("expected score pinned at MinInt64, got %d", score)
	}
}

func TestAdjust_AuthorityGate(t *testing.T) {
	// The gate rejects before any database access.
	svc := NewService(nil, staticAuthority("authority-key"))

	if _, err := svc.Adjust(context.Background(), "rando-key", "target-key", 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

type staticAuthority string

func (s staticAuthority) AuthorityKey(context.Context) (string, error) {
	return string(s), nil
}
