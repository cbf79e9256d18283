package gateway

import (
	"errors"
	"net/http"

	"privscore/custody"
	"privscore/native/common"
	"privscore/native/credit"
	"privscore/native/disclosure"
	"privscore/native/lending"
	"privscore/zkproof"
)

type errorMapping struct {
	status int
	code   string
}

// taxonomy maps module sentinels to stable wire codes. Handlers rely on
// errors.Is so wrapped errors map the same way.
var taxonomy = []struct {
	err     error
	mapping errorMapping
}{
	{credit.ErrAlreadyExists, errorMapping{http.StatusConflict, "credit_record_exists"}},
	{credit.ErrNotFound, errorMapping{http.StatusNotFound, "credit_record_not_found"}},
	{credit.ErrInvalidCommitment, errorMapping{http.StatusUnprocessableEntity, "invalid_commitment"}},
	{credit.ErrRecordInactive, errorMapping{http.StatusConflict, "credit_record_inactive"}},

	{disclosure.ErrInvalidAccessLevel, errorMapping{http.StatusUnprocessableEntity, "invalid_access_level"}},
	{disclosure.ErrInvalidExpiry, errorMapping{http.StatusUnprocessableEntity, "invalid_expiry"}},
	{disclosure.ErrExpiryTooLong, errorMapping{http.StatusUnprocessableEntity, "expiry_too_long"}},
	{disclosure.ErrRecordNotFound, errorMapping{http.StatusNotFound, "credit_record_not_found"}},
	{disclosure.ErrInvalidViewingKey, errorMapping{http.StatusNotFound, "invalid_viewing_key"}},
	{disclosure.ErrViewingKeyNotActive, errorMapping{http.StatusForbidden, "viewing_key_not_active"}},
	{disclosure.ErrViewingKeyExpired, errorMapping{http.StatusForbidden, "viewing_key_expired"}},
	{disclosure.ErrMaxAccessesReached, errorMapping{http.StatusForbidden, "max_accesses_reached"}},

	{lending.ErrInvalidAmount, errorMapping{http.StatusUnprocessableEntity, "invalid_amount"}},
	{lending.ErrPoolExists, errorMapping{http.StatusConflict, "pool_exists"}},
	{lending.ErrPoolNotFound, errorMapping{http.StatusNotFound, "pool_not_found"}},
	{lending.ErrPoolInactive, errorMapping{http.StatusConflict, "pool_inactive"}},
	{lending.ErrCreditLoansNotAccepted, errorMapping{http.StatusConflict, "credit_loans_not_accepted"}},
	{lending.ErrInsufficientLiquidity, errorMapping{http.StatusConflict, "insufficient_liquidity"}},
	{lending.ErrInvalidCollateralRatio, errorMapping{http.StatusUnprocessableEntity, "invalid_collateral_ratio"}},
	{lending.ErrInvalidInterestRate, errorMapping{http.StatusUnprocessableEntity, "invalid_interest_rate"}},
	{lending.ErrInvalidCreditScore, errorMapping{http.StatusUnprocessableEntity, "invalid_credit_score"}},
	{lending.ErrCreditRecordNotFound, errorMapping{http.StatusNotFound, "credit_record_not_found"}},
	{lending.ErrCreditRecordInactive, errorMapping{http.StatusConflict, "credit_record_inactive"}},
	{lending.ErrCreditExpired, errorMapping{http.StatusConflict, "credit_expired"}},
	{lending.ErrInsufficientCollateral, errorMapping{http.StatusConflict, "insufficient_collateral"}},
	{lending.ErrProofVerificationFailed, errorMapping{http.StatusUnprocessableEntity, "proof_verification_failed"}},
	{lending.ErrLoanNotFound, errorMapping{http.StatusNotFound, "loan_not_found"}},
	{lending.ErrLoanNotActive, errorMapping{http.StatusConflict, "loan_not_active"}},
	{lending.ErrRepaymentExceedsDebt, errorMapping{http.StatusUnprocessableEntity, "repayment_exceeds_debt"}},
	{lending.ErrLoanNotLiquidatable, errorMapping{http.StatusConflict, "loan_not_liquidatable"}},
	{lending.ErrLoanNotOverdue, errorMapping{http.StatusConflict, "loan_not_overdue"}},
	{lending.ErrUnauthorized, errorMapping{http.StatusForbidden, "unauthorized"}},

	{zkproof.ErrInvalidProof, errorMapping{http.StatusUnprocessableEntity, "invalid_proof"}},
	{zkproof.ErrInvalidPublicInputs, errorMapping{http.StatusUnprocessableEntity, "invalid_public_inputs"}},

	{custody.ErrInsufficientFunds, errorMapping{http.StatusConflict, "insufficient_funds"}},
	{custody.ErrUnauthorized, errorMapping{http.StatusForbidden, "unauthorized_transfer"}},
	{custody.ErrInvalidAmount, errorMapping{http.StatusUnprocessableEntity, "invalid_amount"}},

	{common.ErrModulePaused, errorMapping{http.StatusServiceUnavailable, "module_paused"}},
}

// mapError resolves the HTTP status and stable code for a module error.
// Unrecognized errors surface as internal failures without leaking detail.
func mapError(err error) (int, string, string) {
	for _, entry := range taxonomy {
		if errors.Is(err, entry.err) {
			return entry.mapping.status, entry.mapping.code, err.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error", "internal error"
}
