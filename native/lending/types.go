package lending

// LoanStatus tracks the lifecycle of a single loan. Active is the only
// non-terminal state; once closed a loan remains on the ledger as an audit
// record.
type LoanStatus uint8

const (
	LoanActive LoanStatus = iota
	LoanRepaid
	LoanLiquidated
	LoanDefaulted
)

// Terminal reports whether the status admits no further transitions.
func (s LoanStatus) Terminal() bool { return s != LoanActive }

// Valid reports whether the status value is within the supported range.
func (s LoanStatus) Valid() bool { return s <= LoanDefaulted }

func (s LoanStatus) String() string {
	switch s {
	case LoanActive:
		return "active"
	case LoanRepaid:
		return "repaid"
	case LoanLiquidated:
		return "liquidated"
	case LoanDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// LoanType distinguishes standard borrows from proof-verified ones.
type LoanType uint8

const (
	LoanStandard LoanType = iota
	LoanCreditVerified
)

func (t LoanType) String() string {
	if t == LoanCreditVerified {
		return "credit_verified"
	}
	return "standard"
}

// Pool captures the aggregate liquidity, utilisation and collateral policy
// for one lending market. Amounts are u64 token units with saturating
// arithmetic; ratios are basis points.
type Pool struct {
	ID                       string   `json:"id"`
	Authority                [20]byte `json:"authority"`
	Vault                    [20]byte `json:"vault"`
	BaseCollateralRatioBps   uint16   `json:"baseCollateralRatioBps"`
	CreditCollateralRatioBps uint16   `json:"creditCollateralRatioBps"`
	LiquidationThresholdBps  uint16   `json:"liquidationThresholdBps"`
	InterestRateBps          uint16   `json:"interestRateBps"`
	MinCreditScore           uint16   `json:"minCreditScore"`
	TotalDeposits            uint64   `json:"totalDeposits"`
	TotalBorrowed            uint64   `json:"totalBorrowed"`
	ActiveLoans              uint32   `json:"activeLoans"`
	TotalInterestAccrued     uint64   `json:"totalInterestAccrued"`
	LoanSequence             uint64   `json:"loanSequence"`
	CreatedAt                int64    `json:"createdAt"`
	UpdatedAt                int64    `json:"updatedAt"`
	Active                   bool     `json:"active"`
	AcceptsCreditLoans       bool     `json:"acceptsCreditLoans"`
}

// Clone returns a copy callers can mutate without touching the stored pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// AvailableLiquidity is deposits minus outstanding borrows, floored at zero.
func (p *Pool) AvailableLiquidity() uint64 {
	return satSub(p.TotalDeposits, p.TotalBorrowed)
}

// HasLiquidity reports whether amount can currently be borrowed.
func (p *Pool) HasLiquidity(amount uint64) bool {
	return p.AvailableLiquidity() >= amount
}

// UtilizationRate is totalBorrowed/totalDeposits in basis points, defined as
// zero when the pool holds no deposits.
func (p *Pool) UtilizationRate() uint16 {
	if p.TotalDeposits == 0 {
		return 0
	}
	return uint16(mulDivRatio(p.TotalBorrowed, p.TotalDeposits))
}

func mulDivRatio(numerator, denominator uint64) uint64 {
	// numerator <= denominator holds by the pool invariant, so the bps result
	// fits comfortably in u16.
	hi := numerator / denominator
	rem := numerator % denominator
	return hi*basisPoints + rem*basisPoints/denominator
}

// CollateralRatio selects the ratio applied to a new borrow. The reduced
// credit ratio applies only when the borrower is proof-verified and the pool
// accepts credit loans; this single decision point is the capital-efficiency
// advantage the proof buys.
func (p *Pool) CollateralRatio(isCreditVerified bool) uint16 {
	if isCreditVerified && p.AcceptsCreditLoans {
		return p.CreditCollateralRatioBps
	}
	return p.BaseCollateralRatioBps
}

// CollateralSavingsBps is the spread between the standard and credit ratios.
func (p *Pool) CollateralSavingsBps() uint16 {
	if p.CreditCollateralRatioBps > p.BaseCollateralRatioBps {
		return 0
	}
	return p.BaseCollateralRatioBps - p.CreditCollateralRatioBps
}

// Loan is the per-borrow state machine record. Ratio and rate are snapshotted
// at origination so later pool retunes never reprice an open loan.
type Loan struct {
	ID               [32]byte   `json:"id"`
	Borrower         [20]byte   `json:"borrower"`
	PoolID           string     `json:"poolId"`
	Sequence         uint64     `json:"sequence"`
	Principal        uint64     `json:"principal"`
	InterestAccrued  uint64     `json:"interestAccrued"`
	AmountRepaid     uint64     `json:"amountRepaid"`
	CollateralLocked uint64     `json:"collateralLocked"`
	CollateralRatio  uint16     `json:"collateralRatioBps"`
	InterestRateBps  uint16     `json:"interestRateBps"`
	Type             LoanType   `json:"type"`
	Status           LoanStatus `json:"status"`
	ProofHash        [32]byte   `json:"proofHash"`
	CreditCommitment [32]byte   `json:"creditCommitment"`
	CreatedAt        int64      `json:"createdAt"`
	LastAccrualAt    int64      `json:"lastAccrualAt"`
	ClosedAt         int64      `json:"closedAt"`
	DueDate          int64      `json:"dueDate"`
	RepaymentCount   uint16     `json:"repaymentCount"`
	RepaidOnTime     bool       `json:"repaidOnTime"`
}

// Clone returns a copy callers can mutate without touching the stored loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// TotalDebt is principal + accrued interest - repayments, floored at zero.
func (l *Loan) TotalDebt() uint64 {
	return satSub(satAdd(l.Principal, l.InterestAccrued), l.AmountRepaid)
}

// OutstandingPrincipal is the principal slice still unpaid. Repayments are
// attributed to principal first for accrual purposes.
func (l *Loan) OutstandingPrincipal() uint64 {
	repaid := l.AmountRepaid
	if repaid > l.Principal {
		repaid = l.Principal
	}
	return l.Principal - repaid
}

// AccrueInterest advances interest up to now and returns the amount added. A
// call with now at or before the last accrual point, or against a closed
// loan, is a no-op; accrual is therefore idempotent for a fixed now.
func (l *Loan) AccrueInterest(now int64) uint64 {
	if l.Status != LoanActive || now <= l.LastAccrualAt {
		return 0
	}
	interest := interestFor(l.OutstandingPrincipal(), l.InterestRateBps, now-l.LastAccrualAt)
	l.InterestAccrued = satAdd(l.InterestAccrued, interest)
	l.LastAccrualAt = now
	return interest
}

// IsOverdue reports whether an active loan has passed its due date.
func (l *Loan) IsOverdue(now int64) bool {
	return l.DueDate > 0 && now > l.DueDate && l.Status == LoanActive
}

// IsUndercollateralized reports whether the collateral value has fallen below
// the liquidation threshold applied to current debt. Debt-free loans are
// never liquidatable.
func (l *Loan) IsUndercollateralized(collateralValue uint64, liquidationThresholdBps uint16) bool {
	debt := l.TotalDebt()
	if debt == 0 {
		return false
	}
	return collateralValue < mulDivBps(debt, liquidationThresholdBps)
}

// HealthFactor is collateral/debt in basis points, saturating at the u64
// ceiling for debt-free loans.
func (l *Loan) HealthFactor(collateralValue uint64) uint64 {
	debt := l.TotalDebt()
	if debt == 0 {
		return ^uint64(0)
	}
	hi := collateralValue / debt
	rem := collateralValue % debt
	return satAdd(hi*basisPoints, rem*basisPoints/debt)
}

// CreditVerified reports whether the loan went through the proof path.
func (l *Loan) CreditVerified() bool { return l.Type == LoanCreditVerified }

// CollateralSavings is how much collateral the proof path saved relative to
// the standard ratio. Zero for standard loans.
func (l *Loan) CollateralSavings(standardRatioBps uint16) uint64 {
	if l.Type != LoanCreditVerified {
		return 0
	}
	return satSub(mulDivBps(l.Principal, standardRatioBps), l.CollateralLocked)
}
