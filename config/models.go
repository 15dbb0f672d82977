package config

import "time"

// MaxFeeBasisPoints caps the platform fee at 100% of the sale price.
const MaxFeeBasisPoints = 10_000

// Config is the marketplace root of trust: the single administrative
// principal, the treasury that collects fees, and the fee rate. It is
// created exactly once at bootstrap.
type Config struct {
	Address        string
	AuthorityKey   string
	TreasuryKey    string
	FeeBasisPoints uint32
	CreatedAt      time.Time
}

// InitializeParams contains the bootstrap inputs.
type InitializeParams struct {
	AuthorityKey   string
	TreasuryKey    string
	FeeBasisPoints uint32
}
