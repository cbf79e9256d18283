package disclosure

import "privscore/native/credit"

// AccessLevel orders the visibility tiers a viewing grant can carry. Each
// level strictly includes the visibility of the levels below it.
type AccessLevel uint8

const (
	LevelNone AccessLevel = iota
	LevelTierOnly
	LevelBasicHistory
	LevelFullAccess
	LevelRegulatory
)

// LevelFromUint8 maps a caller-supplied byte onto an access level, defaulting
// to LevelNone for out-of-range values.
func LevelFromUint8(value uint8) AccessLevel {
	if value >= uint8(LevelTierOnly) && value <= uint8(LevelRegulatory) {
		return AccessLevel(value)
	}
	return LevelNone
}

// Valid reports whether the level is within the supported range.
func (a AccessLevel) Valid() bool { return a <= LevelRegulatory }

// CanViewTier reports whether the level exposes the credit tier.
func (a AccessLevel) CanViewTier() bool { return a >= LevelTierOnly }

// CanViewHistory reports whether the level exposes the loan history summary.
func (a AccessLevel) CanViewHistory() bool { return a >= LevelBasicHistory }

// CanViewFull reports whether the level exposes the full credit record.
func (a AccessLevel) CanViewFull() bool { return a >= LevelFullAccess }

func (a AccessLevel) String() string {
	switch a {
	case LevelTierOnly:
		return "tier_only"
	case LevelBasicHistory:
		return "basic_history"
	case LevelFullAccess:
		return "full_access"
	case LevelRegulatory:
		return "regulatory"
	default:
		return "none"
	}
}

func minLevel(a, b AccessLevel) AccessLevel {
	if b < a {
		return b
	}
	return a
}

// Status tracks the lifecycle of a viewing grant. Revoked is absorbing.
type Status uint8

const (
	StatusActive Status = iota
	StatusRevoked
	StatusExpired
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRevoked:
		return "revoked"
	case StatusExpired:
		return "expired"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

const (
	// DefaultExpiry is applied when the owner does not pick an expiry.
	DefaultExpiry int64 = 7 * 24 * 60 * 60
	// MaxExpiry bounds how far in the future a grant may remain usable.
	MaxExpiry int64 = 365 * 24 * 60 * 60
)

// Grant is the capability document letting viewer read a bounded subset of
// the owner's credit record. One grant exists per (owner, viewer) pair;
// re-granting overwrites the prior document and resets its counters.
type Grant struct {
	Owner          [20]byte    `json:"owner"`
	Viewer         [20]byte    `json:"viewer"`
	Level          AccessLevel `json:"level"`
	Status         Status      `json:"status"`
	GrantedAt      int64       `json:"grantedAt"`
	ExpiresAt      int64       `json:"expiresAt"`
	LastAccessedAt int64       `json:"lastAccessedAt"`
	AccessCount    uint32      `json:"accessCount"`
	MaxAccesses    uint32      `json:"maxAccesses"`
	Purpose        string      `json:"purpose"`
	OneTimeUse     bool        `json:"oneTimeUse"`
	NotifyOnAccess bool        `json:"notifyOnAccess"`
}

// Clone returns a copy callers can mutate without touching the stored grant.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	clone := *g
	return &clone
}

// IsExpired reports whether the grant has aged out.
func (g *Grant) IsExpired(now int64) bool {
	return g.ExpiresAt > 0 && now > g.ExpiresAt
}

// AccessExhausted reports whether a bounded grant has used up its reads.
func (g *Grant) AccessExhausted() bool {
	return g.MaxAccesses > 0 && g.AccessCount >= g.MaxAccesses
}

// IsValid reports whether the grant can authorise a read right now.
func (g *Grant) IsValid(now int64) bool {
	return g.Status == StatusActive && !g.IsExpired(now) && !g.AccessExhausted()
}

// RemainingAccesses returns how many reads remain. The boolean is false for
// unlimited grants.
func (g *Grant) RemainingAccesses() (uint32, bool) {
	if g.MaxAccesses == 0 {
		return 0, false
	}
	if g.AccessCount >= g.MaxAccesses {
		return 0, true
	}
	return g.MaxAccesses - g.AccessCount, true
}

// TimeRemaining returns the seconds until expiry, floored at zero.
func (g *Grant) TimeRemaining(now int64) int64 {
	remaining := g.ExpiresAt - now
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExtendExpiry pushes the expiry forward, clamped to GrantedAt + MaxExpiry.
func (g *Grant) ExtendExpiry(additionalSeconds int64) {
	if additionalSeconds <= 0 {
		return
	}
	extended := g.ExpiresAt + additionalSeconds
	if extended < g.ExpiresAt {
		extended = g.GrantedAt + MaxExpiry
	}
	maxAllowed := g.GrantedAt + MaxExpiry
	if extended > maxAllowed {
		extended = maxAllowed
	}
	g.ExpiresAt = extended
}

// HistorySummary is the loan-history slice visible from LevelBasicHistory up.
type HistorySummary struct {
	LoansTaken         uint32 `json:"loansTaken"`
	TotalBorrowed      uint64 `json:"totalBorrowed"`
	TotalRepaid        uint64 `json:"totalRepaid"`
	OnTimeRepayments   uint32 `json:"onTimeRepayments"`
	LateRepayments     uint32 `json:"lateRepayments"`
	RepaymentRatioBps  uint16 `json:"repaymentRatioBps"`
	ProofsVerified     uint32 `json:"proofsVerified"`
	RegisteredAt       int64  `json:"registeredAt"`
	CommitmentExpiry   int64  `json:"commitmentExpiry"`
	CommitmentIsActive bool   `json:"commitmentIsActive"`
}

// Disclosure is the field set released by a successful read through a grant.
// Level records the effective level actually applied; pointers below it are
// nil when the level does not reach them. Commitment and nonce are released
// only at LevelRegulatory.
type Disclosure struct {
	Level       AccessLevel     `json:"level"`
	Tier        credit.Tier     `json:"tier"`
	History     *HistorySummary `json:"history,omitempty"`
	Full        *credit.Record  `json:"full,omitempty"`
	DisclosedAt int64           `json:"disclosedAt"`
}

func buildDisclosure(record *credit.Record, level AccessLevel, now int64) *Disclosure {
	d := &Disclosure{Level: level, DisclosedAt: now}
	if level.CanViewTier() {
		d.Tier = record.Tier
	}
	if level.CanViewHistory() {
		d.History = &HistorySummary{
			LoansTaken:         record.LoansTaken,
			TotalBorrowed:      record.TotalBorrowed,
			TotalRepaid:        record.TotalRepaid,
			OnTimeRepayments:   record.OnTimeRepayments,
			LateRepayments:     record.LateRepayments,
			RepaymentRatioBps:  record.RepaymentRatio(),
			ProofsVerified:     record.ProofsVerified,
			RegisteredAt:       record.RegisteredAt,
			CommitmentExpiry:   record.ExpiresAt,
			CommitmentIsActive: record.Active,
		}
	}
	if level.CanViewFull() {
		full := record.Clone()
		if level < LevelRegulatory {
			// Commitment material and the replay nonce stay private below
			// regulatory access.
			full.Commitment = [32]byte{}
			full.Nonce = 0
		}
		d.Full = full
	}
	return d
}
