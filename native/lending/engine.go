package lending

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"privscore/core/types"
	nativecommon "privscore/native/common"
	"privscore/native/credit"
	"privscore/zkproof"
)

var (
	errNilState    = errors.New("lending engine: state not configured")
	errNilCustody  = errors.New("lending engine: custody not configured")
	errNilVerifier = errors.New("lending engine: proof verifier not configured")
	errNilOracle   = errors.New("lending engine: price oracle not configured")
	errPoolID      = errors.New("lending engine: pool identifier required")
)

var (
	// ErrInvalidAmount rejects zero amounts on every monetary operation.
	ErrInvalidAmount = errors.New("lending: amount must be positive")
	// ErrPoolExists marks a second initialization of the same pool.
	ErrPoolExists = errors.New("lending: pool already exists")
	// ErrPoolNotFound marks operations against unknown pools.
	ErrPoolNotFound = errors.New("lending: pool not found")
	// ErrPoolInactive marks operations against deactivated pools.
	ErrPoolInactive = errors.New("lending: pool inactive")
	// ErrCreditLoansNotAccepted marks proof-path borrows against pools that
	// only serve standard loans.
	ErrCreditLoansNotAccepted = errors.New("lending: pool does not accept credit loans")
	// ErrInsufficientLiquidity marks borrows and withdrawals beyond available
	// liquidity.
	ErrInsufficientLiquidity = errors.New("lending: insufficient liquidity")
	// ErrInvalidCollateralRatio rejects pool ratios below 100% or a credit
	// ratio above the base ratio.
	ErrInvalidCollateralRatio = errors.New("lending: invalid collateral ratio")
	// ErrInvalidInterestRate rejects rates above the 50% cap.
	ErrInvalidInterestRate = errors.New("lending: invalid interest rate")
	// ErrInvalidCreditScore rejects thresholds outside the 300-850 band.
	ErrInvalidCreditScore = errors.New("lending: invalid credit score")
	// ErrCreditRecordNotFound marks proof-path borrows without a registered
	// credit record.
	ErrCreditRecordNotFound = errors.New("lending: credit record not found")
	// ErrCreditRecordInactive marks proof-path borrows on deactivated records.
	ErrCreditRecordInactive = errors.New("lending: credit record inactive")
	// ErrCreditExpired marks proof-path borrows on aged-out commitments.
	ErrCreditExpired = errors.New("lending: credit commitment expired")
	// ErrInsufficientCollateral marks borrows whose pledged collateral falls
	// short of the required ratio.
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	// ErrProofVerificationFailed marks proofs the verifier rejected.
	ErrProofVerificationFailed = errors.New("lending: proof verification failed")
	// ErrLoanNotFound marks operations against unknown loans.
	ErrLoanNotFound = errors.New("lending: loan not found")
	// ErrLoanNotActive marks mutations of a loan in a terminal state.
	ErrLoanNotActive = errors.New("lending: loan not active")
	// ErrRepaymentExceedsDebt rejects repayments above the outstanding debt.
	ErrRepaymentExceedsDebt = errors.New("lending: repayment exceeds total debt")
	// ErrLoanNotLiquidatable marks liquidation attempts on healthy loans.
	ErrLoanNotLiquidatable = errors.New("lending: loan not liquidatable")
	// ErrLoanNotOverdue marks default attempts before the due date.
	ErrLoanNotOverdue = errors.New("lending: loan not overdue")
	// ErrUnauthorized marks calls by a party other than the required owner,
	// borrower or authority.
	ErrUnauthorized = errors.New("lending: unauthorized")
)

const moduleName = "lending"

// engineState is the persistence surface the engine mutates. Cross-record
// updates (loan + pool + credit record) are validated up front and written
// together at the end of each operation so readers only ever observe them in
// full.
type engineState interface {
	GetPool(id string) (*Pool, bool, error)
	PutPool(pool *Pool) error
	GetLoan(id [32]byte) (*Loan, bool, error)
	PutLoan(loan *Loan) error
	GetCreditRecord(owner [20]byte) (*credit.Record, bool, error)
	PutCreditRecord(record *credit.Record) error
}

// TokenCustody is the external transfer service moving value between
// accounts. Transfers are atomic: they fully succeed or fail the enclosing
// operation.
type TokenCustody interface {
	Transfer(from, to, authority [20]byte, amount uint64) error
	BalanceOf(account [20]byte) (uint64, error)
}

// PriceSource values the collateral held by an account.
type PriceSource interface {
	Value(account [20]byte) (uint64, error)
}

// Engine orchestrates the pool ledger and the per-loan state machine. All
// operations are serialized by the host; the engine never assumes in-process
// locking but never leaves an invariant violated between operations.
type Engine struct {
	state        engineState
	custody      TokenCustody
	verifier     zkproof.Verifier
	oracle       PriceSource
	pauses       nativecommon.PauseView
	loanDuration int64
	nowFn        func() int64
	emit         func(*types.Event)
}

// NewEngine constructs an engine wired to the custody boundary. State,
// verifier and oracle are attached through the setters below.
func NewEngine(custody TokenCustody) *Engine {
	return &Engine{
		custody: custody,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVerifier wires the external proof verification service.
func (e *Engine) SetVerifier(v zkproof.Verifier) {
	if e == nil {
		return
	}
	e.verifier = v
}

// SetOracle wires the collateral valuation source used by liquidations.
func (e *Engine) SetOracle(o PriceSource) {
	if e == nil {
		return
	}
	e.oracle = o
}

// SetPauses wires the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetLoanDuration configures the due-date window stamped onto new loans.
// Zero leaves loans without a due date.
func (e *Engine) SetLoanDuration(seconds int64) {
	if e == nil || seconds < 0 {
		return
	}
	e.loanDuration = seconds
}

// SetNowFunc overrides the wall clock used for accrual and expiry checks.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter attaches the event sink. A nil emitter drops events.
func (e *Engine) SetEmitter(emit func(*types.Event)) {
	if e == nil {
		return
	}
	e.emit = emit
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emitEvent(evt *types.Event) {
	if e == nil || e.emit == nil || evt == nil {
		return
	}
	e.emit(evt)
}

// LoanID derives the deterministic identifier for the loan opened by borrower
// against poolID at the given sequence slot.
func LoanID(poolID string, borrower [20]byte, sequence uint64) [32]byte {
	payload := make([]byte, 0, len("loan")+len(poolID)+len(borrower)+8)
	payload = append(payload, []byte("loan/")...)
	payload = append(payload, []byte(poolID)...)
	payload = append(payload, borrower[:]...)
	for shift := 56; shift >= 0; shift -= 8 {
		payload = append(payload, byte(sequence>>uint(shift)))
	}
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(payload))
	return id
}

// PoolVaultAddress derives the custody account holding a pool's liquidity.
func PoolVaultAddress(poolID string) [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("pool-vault/"+poolID))[12:])
	return addr
}

// CollateralVaultAddress derives the custody account locking a loan's
// collateral.
func CollateralVaultAddress(loanID [32]byte) [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256(append([]byte("collateral-vault/"), loanID[:]...))[12:])
	return addr
}

// CreatePool initializes a new lending market under the caller's authority.
// Parameter ranges are validated before any state is written.
func (e *Engine) CreatePool(authority [20]byte, poolID string, params PoolParams) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	poolID = strings.TrimSpace(poolID)
	if poolID == "" {
		return nil, errPoolID
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, exists, err := e.state.GetPool(poolID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrPoolExists
	}
	now := e.now()
	pool := &Pool{
		ID:                       poolID,
		Authority:                authority,
		Vault:                    PoolVaultAddress(poolID),
		BaseCollateralRatioBps:   params.BaseCollateralRatioBps,
		CreditCollateralRatioBps: params.CreditCollateralRatioBps,
		LiquidationThresholdBps:  defaultLiquidationThresholdBps,
		InterestRateBps:          params.InterestRateBps,
		MinCreditScore:           params.MinCreditScore,
		CreatedAt:                now,
		UpdatedAt:                now,
		Active:                   true,
		AcceptsCreditLoans:       params.AcceptsCreditLoans,
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitEvent(NewPoolCreatedEvent(pool))
	return pool.Clone(), nil
}

// Deposit moves liquidity from the lender into the pool vault.
func (e *Engine) Deposit(lender [20]byte, poolID string, amount uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.custody == nil {
		return nil, errNilCustody
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	pool, exists, err := e.state.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPoolNotFound
	}
	if !pool.Active {
		return nil, ErrPoolInactive
	}
	if lender == pool.Vault {
		return nil, ErrUnauthorized
	}
	if err := e.custody.Transfer(lender, pool.Vault, lender, amount); err != nil {
		return nil, err
	}
	pool.TotalDeposits = satAdd(pool.TotalDeposits, amount)
	pool.UpdatedAt = e.now()
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitEvent(NewDepositEvent(pool, lender, amount))
	return pool.Clone(), nil
}

// Withdraw releases unborrowed liquidity from the pool vault back to the
// lender.
func (e *Engine) Withdraw(lender [20]byte, poolID string, amount uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.custody == nil {
		return nil, errNilCustody
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	pool, exists, err := e.state.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPoolNotFound
	}
	if !pool.Active {
		return nil, ErrPoolInactive
	}
	if lender == pool.Vault {
		return nil, ErrUnauthorized
	}
	if !pool.HasLiquidity(amount) {
		return nil, ErrInsufficientLiquidity
	}
	if err := e.custody.Transfer(pool.Vault, lender, pool.Vault, amount); err != nil {
		return nil, err
	}
	pool.TotalDeposits = satSub(pool.TotalDeposits, amount)
	pool.UpdatedAt = e.now()
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitEvent(NewWithdrawEvent(pool, lender, amount))
	return pool.Clone(), nil
}

// BorrowStandard opens a loan at the pool's base collateral ratio. No credit
// record is consulted.
func (e *Engine) BorrowStandard(borrower [20]byte, poolID string, amount uint64) (*Loan, error) {
	return e.originate(borrower, poolID, amount, nil, nil, false)
}

// VerifyAndBorrow opens a loan at the reduced credit ratio after the external
// verifier accepts the proof against the borrower's commitment. A rejected
// proof consumes nothing: the nonce and all counters stay untouched.
func (e *Engine) VerifyAndBorrow(borrower [20]byte, poolID string, amount uint64, proof, publicInputs []byte) (*Loan, error) {
	return e.originate(borrower, poolID, amount, proof, publicInputs, true)
}

func (e *Engine) originate(borrower [20]byte, poolID string, amount uint64, proof, publicInputs []byte, creditPath bool) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.custody == nil {
		return nil, errNilCustody
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	pool, exists, err := e.state.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPoolNotFound
	}
	if !pool.Active {
		return nil, ErrPoolInactive
	}
	if borrower == pool.Vault {
		return nil, ErrUnauthorized
	}
	if creditPath && !pool.AcceptsCreditLoans {
		return nil, ErrCreditLoansNotAccepted
	}
	if !pool.HasLiquidity(amount) {
		return nil, ErrInsufficientLiquidity
	}
	now := e.now()

	var record *credit.Record
	if creditPath {
		if e.verifier == nil {
			return nil, errNilVerifier
		}
		var found bool
		record, found, err = e.state.GetCreditRecord(borrower)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrCreditRecordNotFound
		}
		if !record.Active {
			return nil, ErrCreditRecordInactive
		}
		if record.IsExpired(now) {
			return nil, ErrCreditExpired
		}
		if len(proof) == 0 {
			return nil, zkproof.ErrInvalidProof
		}
		if len(publicInputs) == 0 {
			return nil, zkproof.ErrInvalidPublicInputs
		}
		ok, err := e.verifier.Verify(proof, publicInputs, record.Commitment)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrProofVerificationFailed
		}
	}

	ratio := pool.CollateralRatio(creditPath)
	required := mulDivBps(amount, ratio)
	pledged, err := e.custody.BalanceOf(borrower)
	if err != nil {
		return nil, err
	}
	if pledged < required {
		return nil, ErrInsufficientCollateral
	}

	loanID := LoanID(poolID, borrower, pool.LoanSequence)
	collateralVault := CollateralVaultAddress(loanID)
	if err := e.custody.Transfer(borrower, collateralVault, borrower, required); err != nil {
		return nil, err
	}
	if err := e.custody.Transfer(pool.Vault, borrower, pool.Vault, amount); err != nil {
		// Unwind the collateral lock before surfacing the payout failure.
		if undoErr := e.custody.Transfer(collateralVault, borrower, collateralVault, required); undoErr != nil {
			return nil, fmt.Errorf("lending: payout failed: %v; collateral unwind failed: %w", err, undoErr)
		}
		return nil, err
	}

	loan := &Loan{
		ID:               loanID,
		Borrower:         borrower,
		PoolID:           poolID,
		Sequence:         pool.LoanSequence,
		Principal:        amount,
		CollateralLocked: required,
		CollateralRatio:  ratio,
		InterestRateBps:  pool.InterestRateBps,
		Type:             LoanStandard,
		Status:           LoanActive,
		CreatedAt:        now,
		LastAccrualAt:    now,
	}
	if e.loanDuration > 0 {
		loan.DueDate = now + e.loanDuration
	}
	if creditPath {
		loan.Type = LoanCreditVerified
		loan.CreditCommitment = record.Commitment
		copy(loan.ProofHash[:], ethcrypto.Keccak256(proof))
		record.RecordLoan(amount)
		if record.ProofsVerified < ^uint32(0) {
			record.ProofsVerified++
		}
		record.IncrementNonce()
	}

	pool.TotalBorrowed = satAdd(pool.TotalBorrowed, amount)
	if pool.ActiveLoans < ^uint32(0) {
		pool.ActiveLoans++
	}
	pool.LoanSequence++
	pool.UpdatedAt = now

	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	if creditPath {
		if err := e.state.PutCreditRecord(record); err != nil {
			return nil, err
		}
	}
	e.emitEvent(NewLoanOriginatedEvent(loan, pool))
	return loan.Clone(), nil
}

// AccrueInterest advances a loan's interest to the current time and persists
// the result. Calling it again with the same clock is a no-op.
func (e *Engine) AccrueInterest(loanID [32]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	loan, exists, err := e.state.GetLoan(loanID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrLoanNotFound
	}
	added := loan.AccrueInterest(e.now())
	if added == 0 {
		return 0, nil
	}
	if err := e.state.PutLoan(loan); err != nil {
		return 0, err
	}
	return added, nil
}

// Repay transfers amount into the pool vault and reduces the loan's debt.
// Interest is accrued first so debt is never understated. A repayment that
// clears the debt closes the loan, returns the collateral in full and rolls
// the aggregates back into the pool and credit record atomically.
func (e *Engine) Repay(borrower [20]byte, loanID [32]byte, amount uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.custody == nil {
		return nil, errNilCustody
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	loan, exists, err := e.state.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLoanNotFound
	}
	if loan.Borrower != borrower {
		return nil, ErrUnauthorized
	}
	if loan.Status != LoanActive {
		return nil, ErrLoanNotActive
	}
	pool, exists, err := e.state.GetPool(loan.PoolID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPoolNotFound
	}
	now := e.now()
	loan.AccrueInterest(now)
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > loan.TotalDebt() {
		return nil, ErrRepaymentExceedsDebt
	}
	if err := e.custody.Transfer(borrower, pool.Vault, borrower, amount); err != nil {
		return nil, err
	}
	loan.AmountRepaid = satAdd(loan.AmountRepaid, amount)
	if loan.RepaymentCount < ^uint16(0) {
		loan.RepaymentCount++
	}

	var record *credit.Record
	if loan.TotalDebt() == 0 {
		onTime := !(loan.DueDate > 0 && now > loan.DueDate)
		loan.Status = LoanRepaid
		loan.ClosedAt = now
		loan.RepaidOnTime = onTime

		collateralVault := CollateralVaultAddress(loan.ID)
		if loan.CollateralLocked > 0 {
			if err := e.custody.Transfer(collateralVault, borrower, collateralVault, loan.CollateralLocked); err != nil {
				// Unwind the repayment before surfacing the failure.
				if undoErr := e.custody.Transfer(pool.Vault, borrower, pool.Vault, amount); undoErr != nil {
					return nil, fmt.Errorf("lending: collateral return failed: %v; repayment unwind failed: %w", err, undoErr)
				}
				return nil, err
			}
		}
		pool.TotalBorrowed = satSub(pool.TotalBorrowed, loan.Principal)
		pool.ActiveLoans = satSub32(pool.ActiveLoans, 1)
		pool.TotalInterestAccrued = satAdd(pool.TotalInterestAccrued, loan.InterestAccrued)

		var found bool
		record, found, err = e.state.GetCreditRecord(borrower)
		if err != nil {
			return nil, err
		}
		if found {
			record.RecordRepayment(loan.Principal, onTime)
		} else {
			record = nil
		}
	}
	pool.UpdatedAt = now

	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	if record != nil {
		if err := e.state.PutCreditRecord(record); err != nil {
			return nil, err
		}
	}
	e.emitEvent(NewLoanRepaymentEvent(loan, pool, amount))
	return loan.Clone(), nil
}

// Liquidate closes an undercollateralized loan. The liquidator repays the
// full debt into the pool vault and receives the locked collateral plus a 5%
// bonus, capped at the collateral actually held.
func (e *Engine) Liquidate(liquidator [20]byte, loanID [32]byte) (*Loan, uint64, error) {
	if e == nil || e.state == nil {
		return nil, 0, errNilState
	}
	if e.custody == nil {
		return nil, 0, errNilCustody
	}
	if e.oracle == nil {
		return nil, 0, errNilOracle
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, 0, err
	}
	loan, exists, err := e.state.GetLoan(loanID)
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, ErrLoanNotFound
	}
	if loan.Status != LoanActive {
		return nil, 0, ErrLoanNotActive
	}
	pool, exists, err := e.state.GetPool(loan.PoolID)
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, ErrPoolNotFound
	}
	if liquidator == pool.Vault {
		return nil, 0, ErrUnauthorized
	}
	now := e.now()
	loan.AccrueInterest(now)

	collateralVault := CollateralVaultAddress(loan.ID)
	collateralValue, err := e.oracle.Value(collateralVault)
	if err != nil {
		return nil, 0, err
	}
	if !loan.IsUndercollateralized(collateralValue, pool.LiquidationThresholdBps) {
		return nil, 0, ErrLoanNotLiquidatable
	}

	debt := loan.TotalDebt()
	if err := e.custody.Transfer(liquidator, pool.Vault, liquidator, debt); err != nil {
		return nil, 0, err
	}

	bonus := mulDivBps(loan.CollateralLocked, liquidationBonusBps)
	payout := satAdd(loan.CollateralLocked, bonus)
	held, err := e.custody.BalanceOf(collateralVault)
	if err != nil {
		return nil, 0, err
	}
	if payout > held {
		payout = held
	}
	if payout > 0 {
		if err := e.custody.Transfer(collateralVault, liquidator, collateralVault, payout); err != nil {
			// Unwind the debt repayment before surfacing the failure.
			if undoErr := e.custody.Transfer(pool.Vault, liquidator, pool.Vault, debt); undoErr != nil {
				return nil, 0, fmt.Errorf("lending: collateral payout failed: %v; debt unwind failed: %w", err, undoErr)
			}
			return nil, 0, err
		}
	}

	loan.Status = LoanLiquidated
	loan.ClosedAt = now
	pool.TotalBorrowed = satSub(pool.TotalBorrowed, loan.Principal)
	pool.ActiveLoans = satSub32(pool.ActiveLoans, 1)
	pool.TotalInterestAccrued = satAdd(pool.TotalInterestAccrued, loan.InterestAccrued)
	pool.UpdatedAt = now

	if err := e.state.PutLoan(loan); err != nil {
		return nil, 0, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, 0, err
	}
	e.emitEvent(NewLoanLiquidatedEvent(loan, pool, liquidator, payout))
	return loan.Clone(), payout, nil
}

// MarkDefaulted transitions an overdue loan to Defaulted under the pool
// authority. Collateral stays locked with the loan's audit record and the
// lost principal is written off the pool's deposits.
func (e *Engine) MarkDefaulted(authority [20]byte, loanID [32]byte) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	loan, exists, err := e.state.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLoanNotFound
	}
	if loan.Status != LoanActive {
		return nil, ErrLoanNotActive
	}
	pool, exists, err := e.state.GetPool(loan.PoolID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPoolNotFound
	}
	if pool.Authority != authority {
		return nil, ErrUnauthorized
	}
	now := e.now()
	loan.AccrueInterest(now)
	if !loan.IsOverdue(now) {
		return nil, ErrLoanNotOverdue
	}
	loan.Status = LoanDefaulted
	loan.ClosedAt = now
	pool.TotalBorrowed = satSub(pool.TotalBorrowed, loan.Principal)
	// The principal never re-enters the vault; write it off deposits so
	// available liquidity keeps tracking vault funds.
	pool.TotalDeposits = satSub(pool.TotalDeposits, loan.Principal)
	pool.ActiveLoans = satSub32(pool.ActiveLoans, 1)
	pool.TotalInterestAccrued = satAdd(pool.TotalInterestAccrued, loan.InterestAccrued)
	pool.UpdatedAt = now
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitEvent(NewLoanDefaultedEvent(loan, pool))
	return loan.Clone(), nil
}

// GetPool returns the stored pool. The boolean reports presence.
func (e *Engine) GetPool(poolID string) (*Pool, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	pool, exists, err := e.state.GetPool(poolID)
	if err != nil || !exists {
		return nil, exists, err
	}
	return pool.Clone(), true, nil
}

// GetLoan returns the stored loan. The boolean reports presence.
func (e *Engine) GetLoan(loanID [32]byte) (*Loan, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	loan, exists, err := e.state.GetLoan(loanID)
	if err != nil || !exists {
		return nil, exists, err
	}
	return loan.Clone(), true, nil
}

func satSub32(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}
