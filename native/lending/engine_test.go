package lending

import (
	"bytes"
	"errors"
	"testing"

	"privscore/native/credit"
	"privscore/zkproof"
)

type mockState struct {
	pools   map[string]*Pool
	loans   map[[32]byte]*Loan
	records map[[20]byte]*credit.Record
}

func newMockState() *mockState {
	return &mockState{
		pools:   make(map[string]*Pool),
		loans:   make(map[[32]byte]*Loan),
		records: make(map[[20]byte]*credit.Record),
	}
}

func (m *mockState) GetPool(id string) (*Pool, bool, error) {
	pool, ok := m.pools[id]
	if !ok {
		return nil, false, nil
	}
	return pool.Clone(), true, nil
}

func (m *mockState) PutPool(pool *Pool) error {
	m.pools[pool.ID] = pool.Clone()
	return nil
}

func (m *mockState) GetLoan(id [32]byte) (*Loan, bool, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, false, nil
	}
	return loan.Clone(), true, nil
}

func (m *mockState) PutLoan(loan *Loan) error {
	m.loans[loan.ID] = loan.Clone()
	return nil
}

func (m *mockState) GetCreditRecord(owner [20]byte) (*credit.Record, bool, error) {
	record, ok := m.records[owner]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockState) PutCreditRecord(record *credit.Record) error {
	m.records[record.Owner] = record.Clone()
	return nil
}

type mockCustody struct {
	balances map[[20]byte]uint64
	failFrom map[[20]byte]error
}

func newMockCustody() *mockCustody {
	return &mockCustody{
		balances: make(map[[20]byte]uint64),
		failFrom: make(map[[20]byte]error),
	}
}

func (c *mockCustody) Transfer(from, to, authority [20]byte, amount uint64) error {
	if err := c.failFrom[from]; err != nil {
		return err
	}
	if authority != from {
		return errors.New("custody: unauthorized transfer")
	}
	if c.balances[from] < amount {
		return errors.New("custody: insufficient funds")
	}
	if from == to {
		return nil
	}
	c.balances[from] -= amount
	c.balances[to] += amount
	return nil
}

func (c *mockCustody) BalanceOf(account [20]byte) (uint64, error) {
	return c.balances[account], nil
}

type mockOracle struct {
	values map[[20]byte]uint64
}

func (o *mockOracle) Value(account [20]byte) (uint64, error) {
	return o.values[account], nil
}

var (
	authority  = [20]byte{0xaa}
	lender     = [20]byte{0x01}
	borrower   = [20]byte{0x02}
	liquidator = [20]byte{0x03}
	commitment = [32]byte{0xc0, 0xff, 0xee}
)

type engineFixture struct {
	engine  *Engine
	state   *mockState
	custody *mockCustody
	oracle  *mockOracle
	now     *int64
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	state := newMockState()
	cust := newMockCustody()
	ora := &mockOracle{values: make(map[[20]byte]uint64)}
	now := int64(1_000_000)

	engine := NewEngine(cust)
	engine.SetState(state)
	engine.SetVerifier(zkproof.Static{Result: true})
	engine.SetOracle(ora)
	fx := &engineFixture{engine: engine, state: state, custody: cust, oracle: ora, now: &now}
	engine.SetNowFunc(func() int64 { return *fx.now })
	return fx
}

func (fx *engineFixture) createPool(t *testing.T) *Pool {
	t.Helper()
	pool, err := fx.engine.CreatePool(authority, "main", validParams())
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return pool
}

func (fx *engineFixture) fund(account [20]byte, amount uint64) {
	fx.custody.balances[account] += amount
}

func (fx *engineFixture) registerRecord(tier credit.Tier) {
	fx.state.records[borrower] = &credit.Record{
		Owner:        borrower,
		Commitment:   commitment,
		Tier:         tier,
		Nonce:        1,
		RegisteredAt: *fx.now,
		UpdatedAt:    *fx.now,
		ExpiresAt:    *fx.now + credit.DefaultExpiry,
		Active:       true,
	}
}

func validProof() []byte { return bytes.Repeat([]byte{0xab}, zkproof.MinProofLen) }

func TestCreatePool(t *testing.T) {
	fx := newEngineFixture(t)
	pool := fx.createPool(t)
	if pool.LiquidationThresholdBps != 11000 {
		t.Fatalf("expected default threshold 11000, got %d", pool.LiquidationThresholdBps)
	}
	if !pool.Active {
		t.Fatal("new pool must be active")
	}
	if pool.Vault == ([20]byte{}) {
		t.Fatal("vault address must be derived")
	}
	if _, err := fx.engine.CreatePool(authority, "main", validParams()); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("duplicate pool: got %v", err)
	}
}

func TestCreatePoolRejectsBadParams(t *testing.T) {
	fx := newEngineFixture(t)
	params := validParams()
	params.InterestRateBps = 9000
	if _, err := fx.engine.CreatePool(authority, "main", params); !errors.Is(err, ErrInvalidInterestRate) {
		t.Fatalf("expected ErrInvalidInterestRate, got %v", err)
	}
	if _, err := fx.engine.CreatePool(authority, "  ", validParams()); err == nil {
		t.Fatal("blank pool id accepted")
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	fx := newEngineFixture(t)
	pool := fx.createPool(t)
	fx.fund(lender, 10_000)

	pool, err := fx.engine.Deposit(lender, "main", 10_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if pool.TotalDeposits != 10_000 {
		t.Fatalf("expected deposits 10000, got %d", pool.TotalDeposits)
	}
	if got := fx.custody.balances[pool.Vault]; got != 10_000 {
		t.Fatalf("vault holds %d", got)
	}

	pool, err = fx.engine.Withdraw(lender, "main", 4_000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if pool.TotalDeposits != 6_000 {
		t.Fatalf("expected deposits 6000, got %d", pool.TotalDeposits)
	}
	if _, err := fx.engine.Withdraw(lender, "main", 7_000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("over-withdraw: got %v", err)
	}
	if _, err := fx.engine.Deposit(lender, "main", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero deposit: got %v", err)
	}
	if _, err := fx.engine.Deposit(lender, "missing", 1); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("unknown pool: got %v", err)
	}
}

func TestBorrowStandard(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)

	loan, err := fx.engine.BorrowStandard(borrower, "main", 1_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if loan.CollateralLocked != 1_500 {
		t.Fatalf("expected collateral 1500 at 150%%, got %d", loan.CollateralLocked)
	}
	if loan.Type != LoanStandard || loan.Status != LoanActive {
		t.Fatalf("unexpected loan %+v", loan)
	}
	// 2000 pledged - 1500 locked + 1000 borrowed.
	if got := fx.custody.balances[borrower]; got != 1_500 {
		t.Fatalf("borrower balance %d", got)
	}
	pool := fx.state.pools["main"]
	if pool.TotalBorrowed != 1_000 || pool.ActiveLoans != 1 || pool.LoanSequence != 1 {
		t.Fatalf("pool aggregates %+v", pool)
	}
}

func TestBorrowStandardInsufficientCollateral(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 1_499)
	if _, err := fx.engine.BorrowStandard(borrower, "main", 1_000); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	if pool := fx.state.pools["main"]; pool.TotalBorrowed != 0 || pool.LoanSequence != 0 {
		t.Fatalf("failed borrow mutated pool: %+v", pool)
	}
}

func TestBorrowInsufficientLiquidity(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 500)
	if _, err := fx.engine.Deposit(lender, "main", 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 5_000)
	if _, err := fx.engine.BorrowStandard(borrower, "main", 1_000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestVerifyAndBorrow(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	fx.registerRecord(credit.TierGood)

	loan, err := fx.engine.VerifyAndBorrow(borrower, "main", 1_000, validProof(), commitment[:])
	if err != nil {
		t.Fatalf("verify and borrow: %v", err)
	}
	if loan.CollateralLocked != 1_200 {
		t.Fatalf("expected collateral 1200 at 120%%, got %d", loan.CollateralLocked)
	}
	if loan.Type != LoanCreditVerified {
		t.Fatalf("expected credit-verified loan, got %v", loan.Type)
	}
	if loan.CreditCommitment != commitment {
		t.Fatal("loan must snapshot the commitment")
	}
	if loan.ProofHash == ([32]byte{}) {
		t.Fatal("proof hash must be recorded")
	}
	record := fx.state.records[borrower]
	if record.Nonce != 2 {
		t.Fatalf("nonce must advance to 2, got %d", record.Nonce)
	}
	if record.ProofsVerified != 1 || record.LoansTaken != 1 || record.TotalBorrowed != 1_000 {
		t.Fatalf("record counters %+v", record)
	}
}

func TestVerifyAndBorrowRejectedProofLeavesNonce(t *testing.T) {
	fx := newEngineFixture(t)
	fx.engine.SetVerifier(zkproof.Static{Result: false})
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	fx.registerRecord(credit.TierGood)

	_, err := fx.engine.VerifyAndBorrow(borrower, "main", 1_000, validProof(), commitment[:])
	if !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected ErrProofVerificationFailed, got %v", err)
	}
	record := fx.state.records[borrower]
	if record.Nonce != 1 || record.ProofsVerified != 0 || record.LoansTaken != 0 {
		t.Fatalf("failed proof mutated record: %+v", record)
	}
	if got := fx.custody.balances[borrower]; got != 2_000 {
		t.Fatalf("failed proof moved funds: %d", got)
	}
}

func TestVerifyAndBorrowPreconditions(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)

	if _, err := fx.engine.VerifyAndBorrow(borrower, "main", 1_000, validProof(), commitment[:]); !errors.Is(err, ErrCreditRecordNotFound) {
		t.Fatalf("missing record: got %v", err)
	}

	fx.registerRecord(credit.TierGood)
	fx.state.records[borrower].Active = false
	if _, err := fx.engine.VerifyAndBorrow(borrower, "main", 1_000, validProof(), commitment[:]); !errors.Is(err, ErrCreditRecordInactive) {
		t.Fatalf("inactive record: got %v", err)
	}

	fx.registerRecord(credit.TierGood)
	*fx.now += credit.DefaultExpiry + 1
	if _, err := fx.engine.VerifyAndBorrow(borrower, "main", 1_000, validProof(), commitment[:]); !errors.Is(err, ErrCreditExpired) {
		t.Fatalf("expired record: got %v", err)
	}
	*fx.now -= credit.DefaultExpiry + 1

	fx.registerRecord(credit.TierGood)
	if _, err := fx.engine.VerifyAndBorrow(borrower, "main", 1_000, nil, commitment[:]); !errors.Is(err, zkproof.ErrInvalidProof) {
		t.Fatalf("empty proof: got %v", err)
	}
	if _, err := fx.engine.VerifyAndBorrow(borrower, "main", 1_000, validProof(), nil); !errors.Is(err, zkproof.ErrInvalidPublicInputs) {
		t.Fatalf("empty public inputs: got %v", err)
	}
}

func TestRepayPartialThenFull(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	fx.registerRecord(credit.TierGood)

	loan, err := fx.engine.BorrowStandard(borrower, "main", 1_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	*fx.now += secondsPerYear
	fx.fund(borrower, 100) // cover the 50 interest

	partial, err := fx.engine.Repay(borrower, loan.ID, 500)
	if err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	if partial.Status != LoanActive {
		t.Fatalf("partial repay closed the loan: %v", partial.Status)
	}
	if partial.InterestAccrued != 50 {
		t.Fatalf("expected interest 50, got %d", partial.InterestAccrued)
	}
	if partial.TotalDebt() != 550 {
		t.Fatalf("expected debt 550, got %d", partial.TotalDebt())
	}

	if _, err := fx.engine.Repay(borrower, loan.ID, 551); !errors.Is(err, ErrRepaymentExceedsDebt) {
		t.Fatalf("overpay: got %v", err)
	}

	closed, err := fx.engine.Repay(borrower, loan.ID, 550)
	if err != nil {
		t.Fatalf("full repay: %v", err)
	}
	if closed.Status != LoanRepaid {
		t.Fatalf("expected repaid, got %v", closed.Status)
	}
	if !closed.RepaidOnTime {
		t.Fatal("loan without due date repays on time")
	}
	// Collateral returned in full.
	vault := CollateralVaultAddress(loan.ID)
	if got := fx.custody.balances[vault]; got != 0 {
		t.Fatalf("collateral vault still holds %d", got)
	}
	pool := fx.state.pools["main"]
	if pool.TotalBorrowed != 0 || pool.ActiveLoans != 0 {
		t.Fatalf("pool not rolled back: %+v", pool)
	}
	if pool.TotalInterestAccrued != 50 {
		t.Fatalf("expected pool interest 50, got %d", pool.TotalInterestAccrued)
	}
	record := fx.state.records[borrower]
	if record.TotalRepaid != 1_000 || record.OnTimeRepayments != 1 || record.LateRepayments != 0 {
		t.Fatalf("record after repay: %+v", record)
	}
	// Closed loans reject further repayments.
	if _, err := fx.engine.Repay(borrower, loan.ID, 1); !errors.Is(err, ErrLoanNotActive) {
		t.Fatalf("repay closed loan: got %v", err)
	}
}

func TestRepayAuthorization(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	loan, err := fx.engine.BorrowStandard(borrower, "main", 1_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := fx.engine.Repay(liquidator, loan.ID, 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger repay: got %v", err)
	}
}

func TestLiquidate(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	loan, err := fx.engine.BorrowStandard(borrower, "main", 1_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	vault := CollateralVaultAddress(loan.ID)

	// Healthy at face value: 1500 collateral against 1000 debt.
	fx.oracle.values[vault] = 1_500
	fx.fund(liquidator, 2_000)
	if _, _, err := fx.engine.Liquidate(liquidator, loan.ID); !errors.Is(err, ErrLoanNotLiquidatable) {
		t.Fatalf("healthy loan: got %v", err)
	}

	// Collateral value collapses below the 110% threshold.
	fx.oracle.values[vault] = 1_000
	closed, payout, err := fx.engine.Liquidate(liquidator, loan.ID)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if closed.Status != LoanLiquidated {
		t.Fatalf("expected liquidated, got %v", closed.Status)
	}
	// 1500 locked + 5% bonus = 1575, capped at the 1500 actually held.
	if payout != 1_500 {
		t.Fatalf("expected payout 1500, got %d", payout)
	}
	if got := fx.custody.balances[vault]; got != 0 {
		t.Fatalf("vault residue %d", got)
	}
	// Liquidator paid 1000 debt, received 1500 collateral.
	if got := fx.custody.balances[liquidator]; got != 2_500 {
		t.Fatalf("liquidator balance %d", got)
	}
	pool := fx.state.pools["main"]
	if pool.TotalBorrowed != 0 || pool.ActiveLoans != 0 {
		t.Fatalf("pool not rolled back: %+v", pool)
	}
	if _, _, err := fx.engine.Liquidate(liquidator, loan.ID); !errors.Is(err, ErrLoanNotActive) {
		t.Fatalf("double liquidation: got %v", err)
	}
}

func TestMarkDefaulted(t *testing.T) {
	fx := newEngineFixture(t)
	fx.engine.SetLoanDuration(100)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	loan, err := fx.engine.BorrowStandard(borrower, "main", 1_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if loan.DueDate != *fx.now+100 {
		t.Fatalf("due date %d", loan.DueDate)
	}

	if _, err := fx.engine.MarkDefaulted(authority, loan.ID); !errors.Is(err, ErrLoanNotOverdue) {
		t.Fatalf("early default: got %v", err)
	}
	*fx.now += 101
	if _, err := fx.engine.MarkDefaulted(borrower, loan.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong authority: got %v", err)
	}
	defaulted, err := fx.engine.MarkDefaulted(authority, loan.ID)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if defaulted.Status != LoanDefaulted {
		t.Fatalf("expected defaulted, got %v", defaulted.Status)
	}
	// Collateral stays locked with the audit record.
	vault := CollateralVaultAddress(loan.ID)
	if got := fx.custody.balances[vault]; got != 1_500 {
		t.Fatalf("collateral should stay locked, vault holds %d", got)
	}
	pool := fx.state.pools["main"]
	if pool.ActiveLoans != 0 || pool.TotalBorrowed != 0 {
		t.Fatalf("pool not rolled back: %+v", pool)
	}
	// The stranded principal is written off deposits.
	if pool.TotalDeposits != 9_000 {
		t.Fatalf("expected deposits 9000 after write-off, got %d", pool.TotalDeposits)
	}
	if pool.AvailableLiquidity() != 9_000 {
		t.Fatalf("available liquidity %d", pool.AvailableLiquidity())
	}
}

func TestBorrowAfterDefaultKeepsLiquidityHonest(t *testing.T) {
	fx := newEngineFixture(t)
	fx.engine.SetLoanDuration(100)
	fx.createPool(t)
	fx.fund(lender, 100)
	if _, err := fx.engine.Deposit(lender, "main", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 150)
	loan, err := fx.engine.BorrowStandard(borrower, "main", 100)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	*fx.now += 101
	if _, err := fx.engine.MarkDefaulted(authority, loan.ID); err != nil {
		t.Fatalf("default: %v", err)
	}

	// The defaulted principal is gone; a second borrow must fail on
	// liquidity before any collateral moves.
	second := [20]byte{0x04}
	fx.fund(second, 150)
	if _, err := fx.engine.BorrowStandard(second, "main", 100); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("borrow after default: got %v", err)
	}
	if got := fx.custody.balances[second]; got != 150 {
		t.Fatalf("failed borrow partially applied: balance %d, want 150", got)
	}
}

func TestBorrowPayoutFailureUnwindsCollateral(t *testing.T) {
	fx := newEngineFixture(t)
	pool := fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)

	fx.custody.failFrom[pool.Vault] = errors.New("custody backend unavailable")
	if _, err := fx.engine.BorrowStandard(borrower, "main", 1_000); err == nil {
		t.Fatal("borrow must fail when the payout fails")
	}
	if got := fx.custody.balances[borrower]; got != 2_000 {
		t.Fatalf("collateral stranded: borrower holds %d, want 2000", got)
	}
	if len(fx.state.loans) != 0 {
		t.Fatal("failed borrow stored a loan")
	}
	if stored := fx.state.pools["main"]; stored.TotalBorrowed != 0 || stored.LoanSequence != 0 {
		t.Fatalf("failed borrow mutated pool: %+v", stored)
	}
}

func TestRepayCollateralFailureUnwindsRepayment(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	loan, err := fx.engine.BorrowStandard(borrower, "main", 1_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	fx.custody.failFrom[CollateralVaultAddress(loan.ID)] = errors.New("custody backend unavailable")
	if _, err := fx.engine.Repay(borrower, loan.ID, 1_000); err == nil {
		t.Fatal("repay must fail when the collateral return fails")
	}
	if got := fx.custody.balances[borrower]; got != 1_500 {
		t.Fatalf("repayment not unwound: borrower holds %d, want 1500", got)
	}
	stored := fx.state.loans[loan.ID]
	if stored.Status != LoanActive || stored.AmountRepaid != 0 {
		t.Fatalf("failed repay mutated loan: %+v", stored)
	}
}

func TestLiquidatePayoutFailureUnwindsDebt(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	loan, err := fx.engine.BorrowStandard(borrower, "main", 1_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	vault := CollateralVaultAddress(loan.ID)
	fx.oracle.values[vault] = 1_000
	fx.fund(liquidator, 2_000)

	fx.custody.failFrom[vault] = errors.New("custody backend unavailable")
	if _, _, err := fx.engine.Liquidate(liquidator, loan.ID); err == nil {
		t.Fatal("liquidation must fail when the payout fails")
	}
	if got := fx.custody.balances[liquidator]; got != 2_000 {
		t.Fatalf("debt not unwound: liquidator holds %d, want 2000", got)
	}
	if stored := fx.state.loans[loan.ID]; stored.Status != LoanActive {
		t.Fatalf("failed liquidation closed the loan: %v", stored.Status)
	}
}

func TestVaultCannotSelfDeal(t *testing.T) {
	fx := newEngineFixture(t)
	pool := fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := fx.engine.Deposit(pool.Vault, "main", 1_000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("vault deposit: got %v", err)
	}
	if got := fx.state.pools["main"].TotalDeposits; got != 10_000 {
		t.Fatalf("vault deposit inflated deposits: %d", got)
	}
	if _, err := fx.engine.Withdraw(pool.Vault, "main", 1_000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("vault withdraw: got %v", err)
	}
	if _, err := fx.engine.BorrowStandard(pool.Vault, "main", 1_000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("vault borrow: got %v", err)
	}
}

func TestAccrueInterestOperation(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createPool(t)
	fx.fund(lender, 10_000)
	if _, err := fx.engine.Deposit(lender, "main", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(borrower, 2_000)
	loan, err := fx.engine.BorrowStandard(borrower, "main", 1_000)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	*fx.now += secondsPerYear
	added, err := fx.engine.AccrueInterest(loan.ID)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if added != 50 {
		t.Fatalf("expected 50, got %d", added)
	}
	added, err = fx.engine.AccrueInterest(loan.ID)
	if err != nil {
		t.Fatalf("accrue again: %v", err)
	}
	if added != 0 {
		t.Fatalf("second accrual added %d", added)
	}
	stored := fx.state.loans[loan.ID]
	if stored.InterestAccrued != 50 {
		t.Fatalf("persisted interest %d", stored.InterestAccrued)
	}
}

func TestLoanIDDeterministic(t *testing.T) {
	a := LoanID("main", borrower, 0)
	b := LoanID("main", borrower, 0)
	if a != b {
		t.Fatal("loan id must be deterministic")
	}
	if LoanID("main", borrower, 1) == a {
		t.Fatal("sequence must change the id")
	}
	if LoanID("other", borrower, 0) == a {
		t.Fatal("pool must change the id")
	}
}
