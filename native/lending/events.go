package lending

import (
	"encoding/hex"
	"strconv"

	"privscore/core/types"
)

const (
	EventTypePoolCreated    = "lending.pool.created"
	EventTypePoolDeposit    = "lending.pool.deposit"
	EventTypePoolWithdraw   = "lending.pool.withdraw"
	EventTypeLoanOriginated = "lending.loan.originated"
	EventTypeLoanRepayment  = "lending.loan.repayment"
	EventTypeLoanLiquidated = "lending.loan.liquidated"
	EventTypeLoanDefaulted  = "lending.loan.defaulted"
)

// NewPoolCreatedEvent returns the canonical payload for pool initialization.
func NewPoolCreatedEvent(p *Pool) *types.Event {
	if p == nil {
		return &types.Event{Type: EventTypePoolCreated, Attributes: map[string]string{}}
	}
	return &types.Event{
		Type: EventTypePoolCreated,
		Attributes: map[string]string{
			"pool":               p.ID,
			"authority":          hex.EncodeToString(p.Authority[:]),
			"vault":              hex.EncodeToString(p.Vault[:]),
			"baseRatioBps":       strconv.FormatUint(uint64(p.BaseCollateralRatioBps), 10),
			"creditRatioBps":     strconv.FormatUint(uint64(p.CreditCollateralRatioBps), 10),
			"interestRateBps":    strconv.FormatUint(uint64(p.InterestRateBps), 10),
			"minCreditScore":     strconv.FormatUint(uint64(p.MinCreditScore), 10),
			"acceptsCreditLoans": strconv.FormatBool(p.AcceptsCreditLoans),
		},
	}
}

// NewDepositEvent returns the canonical payload for a liquidity deposit.
func NewDepositEvent(p *Pool, lender [20]byte, amount uint64) *types.Event {
	return newLiquidityEvent(EventTypePoolDeposit, p, lender, amount)
}

// NewWithdrawEvent returns the canonical payload for a liquidity withdrawal.
func NewWithdrawEvent(p *Pool, lender [20]byte, amount uint64) *types.Event {
	return newLiquidityEvent(EventTypePoolWithdraw, p, lender, amount)
}

func newLiquidityEvent(eventType string, p *Pool, lender [20]byte, amount uint64) *types.Event {
	if p == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"pool":          p.ID,
			"lender":        hex.EncodeToString(lender[:]),
			"amount":        strconv.FormatUint(amount, 10),
			"totalDeposits": strconv.FormatUint(p.TotalDeposits, 10),
			"available":     strconv.FormatUint(p.AvailableLiquidity(), 10),
		},
	}
}

// NewLoanOriginatedEvent returns the canonical payload for a new loan.
func NewLoanOriginatedEvent(l *Loan, p *Pool) *types.Event {
	if l == nil {
		return &types.Event{Type: EventTypeLoanOriginated, Attributes: map[string]string{}}
	}
	attrs := map[string]string{
		"loan":             hex.EncodeToString(l.ID[:]),
		"borrower":         hex.EncodeToString(l.Borrower[:]),
		"pool":             l.PoolID,
		"principal":        strconv.FormatUint(l.Principal, 10),
		"collateralLocked": strconv.FormatUint(l.CollateralLocked, 10),
		"collateralRatio":  strconv.FormatUint(uint64(l.CollateralRatio), 10),
		"type":             l.Type.String(),
	}
	if p != nil {
		attrs["utilizationBps"] = strconv.FormatUint(uint64(p.UtilizationRate()), 10)
	}
	return &types.Event{Type: EventTypeLoanOriginated, Attributes: attrs}
}

// NewLoanRepaymentEvent returns the canonical payload for a repayment. A
// closed loan carries status Repaid and its on-time flag.
func NewLoanRepaymentEvent(l *Loan, p *Pool, amount uint64) *types.Event {
	if l == nil {
		return &types.Event{Type: EventTypeLoanRepayment, Attributes: map[string]string{}}
	}
	attrs := map[string]string{
		"loan":         hex.EncodeToString(l.ID[:]),
		"borrower":     hex.EncodeToString(l.Borrower[:]),
		"pool":         l.PoolID,
		"amount":       strconv.FormatUint(amount, 10),
		"amountRepaid": strconv.FormatUint(l.AmountRepaid, 10),
		"status":       l.Status.String(),
	}
	if l.Status == LoanRepaid {
		attrs["onTime"] = strconv.FormatBool(l.RepaidOnTime)
	}
	if p != nil {
		attrs["totalInterestAccrued"] = strconv.FormatUint(p.TotalInterestAccrued, 10)
	}
	return &types.Event{Type: EventTypeLoanRepayment, Attributes: attrs}
}

// NewLoanLiquidatedEvent returns the canonical payload for a liquidation.
func NewLoanLiquidatedEvent(l *Loan, p *Pool, liquidator [20]byte, payout uint64) *types.Event {
	if l == nil {
		return &types.Event{Type: EventTypeLoanLiquidated, Attributes: map[string]string{}}
	}
	attrs := map[string]string{
		"loan":       hex.EncodeToString(l.ID[:]),
		"borrower":   hex.EncodeToString(l.Borrower[:]),
		"pool":       l.PoolID,
		"liquidator": hex.EncodeToString(liquidator[:]),
		"payout":     strconv.FormatUint(payout, 10),
		"debt":       strconv.FormatUint(l.TotalDebt(), 10),
	}
	if p != nil {
		attrs["activeLoans"] = strconv.FormatUint(uint64(p.ActiveLoans), 10)
	}
	return &types.Event{Type: EventTypeLoanLiquidated, Attributes: attrs}
}

// NewLoanDefaultedEvent returns the canonical payload for a default.
func NewLoanDefaultedEvent(l *Loan, p *Pool) *types.Event {
	if l == nil {
		return &types.Event{Type: EventTypeLoanDefaulted, Attributes: map[string]string{}}
	}
	attrs := map[string]string{
		"loan":     hex.EncodeToString(l.ID[:]),
		"borrower": hex.EncodeToString(l.Borrower[:]),
		"pool":     l.PoolID,
		"dueDate":  strconv.FormatInt(l.DueDate, 10),
	}
	if p != nil {
		attrs["activeLoans"] = strconv.FormatUint(uint64(p.ActiveLoans), 10)
	}
	return &types.Event{Type: EventTypeLoanDefaulted, Attributes: attrs}
}
