package credit

// Tier buckets a private credit score into an ordered band. Each band carries
// a minimum-score floor; the score itself never appears on the ledger, only
// the commitment binding it.
type Tier uint8

const (
	TierUnknown Tier = iota
	TierPoor
	TierFair
	TierGood
	TierVeryGood
	TierExcellent
)

// DefaultExpiry is how long a freshly registered or refreshed commitment
// remains usable for borrowing.
const DefaultExpiry int64 = 30 * 24 * 60 * 60

// TierFromUint8 maps a caller-supplied byte onto a tier, defaulting to
// TierUnknown for out-of-range values.
func TierFromUint8(value uint8) Tier {
	if value >= uint8(TierPoor) && value <= uint8(TierExcellent) {
		return Tier(value)
	}
	return TierUnknown
}

// MinScore returns the lowest score admitted into the tier.
func (t Tier) MinScore() uint16 {
	switch t {
	case TierPoor:
		return 300
	case TierFair:
		return 580
	case TierGood:
		return 670
	case TierVeryGood:
		return 740
	case TierExcellent:
		return 800
	default:
		return 0
	}
}

// QualifiesForReducedCollateral reports whether the tier is strong enough for
// the credit-verified borrowing path.
func (t Tier) QualifiesForReducedCollateral() bool {
	switch t {
	case TierGood, TierVeryGood, TierExcellent:
		return true
	default:
		return false
	}
}

// Valid reports whether the tier value is within the supported range.
func (t Tier) Valid() bool {
	return t <= TierExcellent
}

func (t Tier) String() string {
	switch t {
	case TierPoor:
		return "poor"
	case TierFair:
		return "fair"
	case TierGood:
		return "good"
	case TierVeryGood:
		return "very_good"
	case TierExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// Record is the per-identity credit document. The commitment is an opaque
// hash binding the private score and a salt; the nonce strictly increases on
// every commitment update or verified borrow and is the sole replay defence.
type Record struct {
	Owner             [20]byte `json:"owner"`
	Commitment        [32]byte `json:"commitment"`
	Tier              Tier     `json:"tier"`
	Nonce             uint64   `json:"nonce"`
	RegisteredAt      int64    `json:"registeredAt"`
	UpdatedAt         int64    `json:"updatedAt"`
	ExpiresAt         int64    `json:"expiresAt"`
	ProofsVerified    uint32   `json:"proofsVerified"`
	LoansTaken        uint32   `json:"loansTaken"`
	TotalBorrowed     uint64   `json:"totalBorrowed"`
	TotalRepaid       uint64   `json:"totalRepaid"`
	OnTimeRepayments  uint32   `json:"onTimeRepayments"`
	LateRepayments    uint32   `json:"lateRepayments"`
	Active            bool     `json:"active"`
	DisclosureEnabled bool     `json:"disclosureEnabled"`
	Compressed        bool     `json:"compressed"`
	Archive           [32]byte `json:"archive"`
}

// Clone returns a copy callers can mutate without touching the stored record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// IsExpired reports whether the commitment has aged out.
func (r *Record) IsExpired(now int64) bool {
	return r.ExpiresAt > 0 && now > r.ExpiresAt
}

// CanBorrow reports whether the record gates a borrow at the supplied time.
func (r *Record) CanBorrow(now int64) bool {
	return r.Active && !r.IsExpired(now)
}

// IncrementNonce advances the replay counter. Saturating so a (practically
// unreachable) wrap can never replay nonce values.
func (r *Record) IncrementNonce() {
	if r.Nonce < ^uint64(0) {
		r.Nonce++
	}
}

// RepaymentRatio returns the on-time share of recorded repayments in basis
// points. Borrowers with no history score a perfect 10000 so untested
// borrowers are not penalised and the division is always defined.
func (r *Record) RepaymentRatio() uint16 {
	total := uint64(r.OnTimeRepayments) + uint64(r.LateRepayments)
	if total == 0 {
		return 10_000
	}
	return uint16(uint64(r.OnTimeRepayments) * 10_000 / total)
}

// UpdateCommitment replaces the commitment and tier, refreshes the expiry
// window and advances the nonce.
func (r *Record) UpdateCommitment(commitment [32]byte, tier Tier, now int64) {
	r.Commitment = commitment
	r.Tier = tier
	r.UpdatedAt = now
	r.ExpiresAt = now + DefaultExpiry
	r.IncrementNonce()
}

// RecordLoan rolls a new borrow into the lifetime counters.
func (r *Record) RecordLoan(amount uint64) {
	if r.LoansTaken < ^uint32(0) {
		r.LoansTaken++
	}
	r.TotalBorrowed = satAdd64(r.TotalBorrowed, amount)
}

// RecordRepayment rolls a closed repayment into the lifetime counters.
func (r *Record) RecordRepayment(amount uint64, onTime bool) {
	r.TotalRepaid = satAdd64(r.TotalRepaid, amount)
	if onTime {
		if r.OnTimeRepayments < ^uint32(0) {
			r.OnTimeRepayments++
		}
	} else if r.LateRepayments < ^uint32(0) {
		r.LateRepayments++
	}
}

func satAdd64(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}
