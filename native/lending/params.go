package lending

const (
	// minCollateralRatioBps forbids under-100% collateralisation by
	// construction.
	minCollateralRatioBps = 10_000
	// maxInterestRateBps caps the pool rate at 50% per year.
	maxInterestRateBps = 5_000
	// defaultLiquidationThresholdBps is the 110% floor applied to new pools.
	defaultLiquidationThresholdBps = 11_000
	// liquidationBonusBps is the 5% sweetener paid to liquidators out of
	// seized collateral.
	liquidationBonusBps = 500

	minCreditScore = 300
	maxCreditScore = 850
)

// PoolParams carries the authority-selected policy for a new pool.
type PoolParams struct {
	BaseCollateralRatioBps   uint16
	CreditCollateralRatioBps uint16
	InterestRateBps          uint16
	MinCreditScore           uint16
	AcceptsCreditLoans       bool
}

// Validate enforces the policy ranges before any pool state is written.
func (p PoolParams) Validate() error {
	if p.BaseCollateralRatioBps < minCollateralRatioBps {
		return ErrInvalidCollateralRatio
	}
	if p.CreditCollateralRatioBps < minCollateralRatioBps {
		return ErrInvalidCollateralRatio
	}
	if p.CreditCollateralRatioBps > p.BaseCollateralRatioBps {
		return ErrInvalidCollateralRatio
	}
	if p.InterestRateBps > maxInterestRateBps {
		return ErrInvalidInterestRate
	}
	if p.MinCreditScore < minCreditScore || p.MinCreditScore > maxCreditScore {
		return ErrInvalidCreditScore
	}
	return nil
}
