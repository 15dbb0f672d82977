package dispute

import "time"

// MaxReasonLen bounds the filed reason text.
const MaxReasonLen = 512

// Status represents the lifecycle of a dispute record. The only legal
// transition is Pending to Resolved; there is no re-opening.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// CanResolve reports whether the status may advance to resolved.
func (s Status) CanResolve() bool {
	return s == StatusPending
}

// Record mirrors the disputes table. ListingAddr and ChallengerKey are
// immutable after filing; ResolvedAt stays nil while pending and Verdict
// is meaningful only once resolved.
type Record struct {
	Address       string
	ListingAddr   string
	ChallengerKey string
	Reason        string
	Status        Status
	Verdict       bool
	ResolverKey   string
	FiledAt       time.Time
	ResolvedAt    *time.Time
}

// FileParams contains dispute filing data supplied by callers.
type FileParams struct {
	ChallengerKey string
	ListingAddr   string
	Reason        string
}
