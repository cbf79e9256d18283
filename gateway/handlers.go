package gateway

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"privscore/native/credit"
	"privscore/native/disclosure"
	"privscore/native/lending"
	"privscore/zkproof"
)

type poolView struct {
	ID                       string `json:"id"`
	Authority                string `json:"authority"`
	Vault                    string `json:"vault"`
	BaseCollateralRatioBps   uint16 `json:"baseCollateralRatioBps"`
	CreditCollateralRatioBps uint16 `json:"creditCollateralRatioBps"`
	LiquidationThresholdBps  uint16 `json:"liquidationThresholdBps"`
	InterestRateBps          uint16 `json:"interestRateBps"`
	MinCreditScore           uint16 `json:"minCreditScore"`
	TotalDeposits            uint64 `json:"totalDeposits"`
	TotalBorrowed            uint64 `json:"totalBorrowed"`
	AvailableLiquidity       uint64 `json:"availableLiquidity"`
	UtilizationBps           uint16 `json:"utilizationBps"`
	ActiveLoans              uint32 `json:"activeLoans"`
	TotalInterestAccrued     uint64 `json:"totalInterestAccrued"`
	Active                   bool   `json:"active"`
	AcceptsCreditLoans       bool   `json:"acceptsCreditLoans"`
	CreatedAt                int64  `json:"createdAt"`
	UpdatedAt                int64  `json:"updatedAt"`
}

func newPoolView(p *lending.Pool) poolView {
	return poolView{
		ID:                       p.ID,
		Authority:                hex.EncodeToString(p.Authority[:]),
		Vault:                    hex.EncodeToString(p.Vault[:]),
		BaseCollateralRatioBps:   p.BaseCollateralRatioBps,
		CreditCollateralRatioBps: p.CreditCollateralRatioBps,
		LiquidationThresholdBps:  p.LiquidationThresholdBps,
		InterestRateBps:          p.InterestRateBps,
		MinCreditScore:           p.MinCreditScore,
		TotalDeposits:            p.TotalDeposits,
		TotalBorrowed:            p.TotalBorrowed,
		AvailableLiquidity:       p.AvailableLiquidity(),
		UtilizationBps:           p.UtilizationRate(),
		ActiveLoans:              p.ActiveLoans,
		TotalInterestAccrued:     p.TotalInterestAccrued,
		Active:                   p.Active,
		AcceptsCreditLoans:       p.AcceptsCreditLoans,
		CreatedAt:                p.CreatedAt,
		UpdatedAt:                p.UpdatedAt,
	}
}

type loanView struct {
	ID                 string `json:"id"`
	Borrower           string `json:"borrower"`
	PoolID             string `json:"poolId"`
	Principal          uint64 `json:"principal"`
	InterestAccrued    uint64 `json:"interestAccrued"`
	AmountRepaid       uint64 `json:"amountRepaid"`
	TotalDebt          uint64 `json:"totalDebt"`
	CollateralLocked   uint64 `json:"collateralLocked"`
	CollateralRatioBps uint16 `json:"collateralRatioBps"`
	InterestRateBps    uint16 `json:"interestRateBps"`
	Type               string `json:"type"`
	Status             string `json:"status"`
	CreatedAt          int64  `json:"createdAt"`
	LastAccrualAt      int64  `json:"lastAccrualAt"`
	ClosedAt           int64  `json:"closedAt,omitempty"`
	DueDate            int64  `json:"dueDate,omitempty"`
	RepaidOnTime       bool   `json:"repaidOnTime,omitempty"`
}

func newLoanView(l *lending.Loan) loanView {
	return loanView{
		ID:                 hex.EncodeToString(l.ID[:]),
		Borrower:           hex.EncodeToString(l.Borrower[:]),
		PoolID:             l.PoolID,
		Principal:          l.Principal,
		InterestAccrued:    l.InterestAccrued,
		AmountRepaid:       l.AmountRepaid,
		TotalDebt:          l.TotalDebt(),
		CollateralLocked:   l.CollateralLocked,
		CollateralRatioBps: l.CollateralRatio,
		InterestRateBps:    l.InterestRateBps,
		Type:               l.Type.String(),
		Status:             l.Status.String(),
		CreatedAt:          l.CreatedAt,
		LastAccrualAt:      l.LastAccrualAt,
		ClosedAt:           l.ClosedAt,
		DueDate:            l.DueDate,
		RepaidOnTime:       l.RepaidOnTime,
	}
}

type recordView struct {
	Owner             string `json:"owner"`
	Commitment        string `json:"commitment"`
	Tier              string `json:"tier"`
	Nonce             uint64 `json:"nonce"`
	RegisteredAt      int64  `json:"registeredAt"`
	UpdatedAt         int64  `json:"updatedAt"`
	ExpiresAt         int64  `json:"expiresAt"`
	Active            bool   `json:"active"`
	DisclosureEnabled bool   `json:"disclosureEnabled"`
	LoansTaken        uint32 `json:"loansTaken"`
	TotalBorrowed     uint64 `json:"totalBorrowed"`
	TotalRepaid       uint64 `json:"totalRepaid"`
	OnTimeRepayments  uint32 `json:"onTimeRepayments"`
	LateRepayments    uint32 `json:"lateRepayments"`
	RepaymentRatioBps uint16 `json:"repaymentRatioBps"`
	ProofsVerified    uint32 `json:"proofsVerified"`
}

func newRecordView(r *credit.Record) recordView {
	return recordView{
		Owner:             hex.EncodeToString(r.Owner[:]),
		Commitment:        hex.EncodeToString(r.Commitment[:]),
		Tier:              r.Tier.String(),
		Nonce:             r.Nonce,
		RegisteredAt:      r.RegisteredAt,
		UpdatedAt:         r.UpdatedAt,
		ExpiresAt:         r.ExpiresAt,
		Active:            r.Active,
		DisclosureEnabled: r.DisclosureEnabled,
		LoansTaken:        r.LoansTaken,
		TotalBorrowed:     r.TotalBorrowed,
		TotalRepaid:       r.TotalRepaid,
		OnTimeRepayments:  r.OnTimeRepayments,
		LateRepayments:    r.LateRepayments,
		RepaymentRatioBps: r.RepaymentRatio(),
		ProofsVerified:    r.ProofsVerified,
	}
}

type grantView struct {
	Owner          string `json:"owner"`
	Viewer         string `json:"viewer"`
	Level          string `json:"level"`
	Status         string `json:"status"`
	GrantedAt      int64  `json:"grantedAt"`
	ExpiresAt      int64  `json:"expiresAt"`
	LastAccessedAt int64  `json:"lastAccessedAt,omitempty"`
	AccessCount    uint32 `json:"accessCount"`
	MaxAccesses    uint32 `json:"maxAccesses"`
	Purpose        string `json:"purpose,omitempty"`
	OneTimeUse     bool   `json:"oneTimeUse"`
	NotifyOnAccess bool   `json:"notifyOnAccess"`
}

func newGrantView(g *disclosure.Grant) grantView {
	return grantView{
		Owner:          hex.EncodeToString(g.Owner[:]),
		Viewer:         hex.EncodeToString(g.Viewer[:]),
		Level:          g.Level.String(),
		Status:         g.Status.String(),
		GrantedAt:      g.GrantedAt,
		ExpiresAt:      g.ExpiresAt,
		LastAccessedAt: g.LastAccessedAt,
		AccessCount:    g.AccessCount,
		MaxAccesses:    g.MaxAccesses,
		Purpose:        g.Purpose,
		OneTimeUse:     g.OneTimeUse,
		NotifyOnAccess: g.NotifyOnAccess,
	}
}

func (s *Server) updatePoolGauges(p *lending.Pool) {
	if p == nil {
		return
	}
	s.metrics.SetPoolLiquidity(p.ID, float64(p.AvailableLiquidity()))
	s.metrics.SetPoolUtilization(p.ID, float64(p.UtilizationRate()))
	s.metrics.SetPoolInterestAccrued(p.ID, float64(p.TotalInterestAccrued))
}

func (s *Server) handlePoolCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Authority                string `json:"authority"`
		PoolID                   string `json:"poolId"`
		BaseCollateralRatioBps   uint16 `json:"baseCollateralRatioBps"`
		CreditCollateralRatioBps uint16 `json:"creditCollateralRatioBps"`
		InterestRateBps          uint16 `json:"interestRateBps"`
		MinCreditScore           uint16 `json:"minCreditScore"`
		AcceptsCreditLoans       bool   `json:"acceptsCreditLoans"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	authority, err := parseAddress(req.Authority)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	pool, err := s.lending.CreatePool(authority, req.PoolID, lending.PoolParams{
		BaseCollateralRatioBps:   req.BaseCollateralRatioBps,
		CreditCollateralRatioBps: req.CreditCollateralRatioBps,
		InterestRateBps:          req.InterestRateBps,
		MinCreditScore:           req.MinCreditScore,
		AcceptsCreditLoans:       req.AcceptsCreditLoans,
	})
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "pool.create", err)
		return
	}
	s.updatePoolGauges(pool)
	s.writeJSON(w, http.StatusCreated, newPoolView(pool))
}

func (s *Server) handlePoolDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleLiquidity(w, r, "pool.deposit", s.lending.Deposit)
}

func (s *Server) handlePoolWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleLiquidity(w, r, "pool.withdraw", s.lending.Withdraw)
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request, op string, apply func([20]byte, string, uint64) (*lending.Pool, error)) {
	var req struct {
		Lender string `json:"lender"`
		PoolID string `json:"poolId"`
		Amount uint64 `json:"amount"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	lender, err := parseAddress(req.Lender)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	pool, err := apply(lender, req.PoolID, req.Amount)
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, op, err)
		return
	}
	s.updatePoolGauges(pool)
	s.writeJSON(w, http.StatusOK, newPoolView(pool))
}

func (s *Server) handlePoolGet(w http.ResponseWriter, r *http.Request) {
	pool, exists, err := s.lending.GetPool(chi.URLParam(r, "id"))
	if err != nil {
		s.writeModuleError(w, "pool.get", err)
		return
	}
	if !exists {
		s.writeModuleError(w, "pool.get", lending.ErrPoolNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, newPoolView(pool))
}

func (s *Server) handleCreditRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner      string `json:"owner"`
		Commitment string `json:"commitment"`
		Tier       uint8  `json:"tier"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	commitment, err := parseHash(req.Commitment)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	record, err := s.credit.Register(owner, commitment, credit.TierFromUint8(req.Tier))
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "credit.register", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newRecordView(record))
}

func (s *Server) handleCreditUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner      string `json:"owner"`
		Commitment string `json:"commitment"`
		Tier       uint8  `json:"tier"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	commitment, err := parseHash(req.Commitment)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	record, err := s.credit.Update(owner, commitment, credit.TierFromUint8(req.Tier))
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "credit.update", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newRecordView(record))
}

func (s *Server) handleCreditDeactivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner string `json:"owner"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	record, err := s.credit.Deactivate(owner)
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "credit.deactivate", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newRecordView(record))
}

func (s *Server) handleLoanBorrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Borrower string `json:"borrower"`
		PoolID   string `json:"poolId"`
		Amount   uint64 `json:"amount"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	loan, err := s.lending.BorrowStandard(borrower, req.PoolID, req.Amount)
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "loan.borrow", err)
		return
	}
	s.metrics.ObserveLoanOriginated(loan.Type.String())
	s.writeJSON(w, http.StatusCreated, newLoanView(loan))
}

func (s *Server) handleLoanVerifyBorrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Borrower     string `json:"borrower"`
		PoolID       string `json:"poolId"`
		Amount       uint64 `json:"amount"`
		Proof        string `json:"proof"`
		PublicInputs string `json:"publicInputs"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	proof, err := parseBlob(req.Proof)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	publicInputs, err := parseBlob(req.PublicInputs)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	loan, err := s.lending.VerifyAndBorrow(borrower, req.PoolID, req.Amount, proof, publicInputs)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, lending.ErrProofVerificationFailed) ||
			errors.Is(err, zkproof.ErrInvalidProof) ||
			errors.Is(err, zkproof.ErrInvalidPublicInputs) {
			s.metrics.ObserveProofRejected()
		}
		s.writeModuleError(w, "loan.verify-borrow", err)
		return
	}
	s.metrics.ObserveProofVerified()
	s.metrics.ObserveLoanOriginated(loan.Type.String())
	s.writeJSON(w, http.StatusCreated, newLoanView(loan))
}

func (s *Server) handleLoanRepay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Borrower string `json:"borrower"`
		LoanID   string `json:"loanId"`
		Amount   uint64 `json:"amount"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	loanID, err := parseHash(req.LoanID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	loan, err := s.lending.Repay(borrower, loanID, req.Amount)
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "loan.repay", err)
		return
	}
	if loan.Status == lending.LoanRepaid {
		s.metrics.ObserveLoanRepaid()
	}
	s.writeJSON(w, http.StatusOK, newLoanView(loan))
}

func (s *Server) handleLoanLiquidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Liquidator string `json:"liquidator"`
		LoanID     string `json:"loanId"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	liquidator, err := parseAddress(req.Liquidator)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	loanID, err := parseHash(req.LoanID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	loan, payout, err := s.lending.Liquidate(liquidator, loanID)
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "loan.liquidate", err)
		return
	}
	s.metrics.ObserveLoanLiquidated()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"loan":   newLoanView(loan),
		"payout": payout,
	})
}

func (s *Server) handleLoanDefault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Authority string `json:"authority"`
		LoanID    string `json:"loanId"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	authority, err := parseAddress(req.Authority)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	loanID, err := parseHash(req.LoanID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	loan, err := s.lending.MarkDefaulted(authority, loanID)
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "loan.default", err)
		return
	}
	s.metrics.ObserveLoanDefaulted()
	s.writeJSON(w, http.StatusOK, newLoanView(loan))
}

func (s *Server) handleLoanGet(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseHash(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	loan, exists, err := s.lending.GetLoan(loanID)
	if err != nil {
		s.writeModuleError(w, "loan.get", err)
		return
	}
	if !exists {
		s.writeModuleError(w, "loan.get", lending.ErrLoanNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, newLoanView(loan))
}

func (s *Server) handleDisclosureGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner          string `json:"owner"`
		Viewer         string `json:"viewer"`
		Level          uint8  `json:"level"`
		ExpiresAt      int64  `json:"expiresAt"`
		MaxAccesses    uint32 `json:"maxAccesses"`
		Purpose        string `json:"purpose"`
		OneTimeUse     bool   `json:"oneTimeUse"`
		NotifyOnAccess bool   `json:"notifyOnAccess"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	viewer, err := parseAddress(req.Viewer)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	grant, err := s.disclosure.Grant(owner, viewer, disclosure.GrantParams{
		Level:          disclosure.LevelFromUint8(req.Level),
		ExpiresAt:      req.ExpiresAt,
		MaxAccesses:    req.MaxAccesses,
		Purpose:        req.Purpose,
		OneTimeUse:     req.OneTimeUse,
		NotifyOnAccess: req.NotifyOnAccess,
	})
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "disclosure.grant", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newGrantView(grant))
}

func (s *Server) handleDisclosureRevoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner  string `json:"owner"`
		Viewer string `json:"viewer"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	viewer, err := parseAddress(req.Viewer)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	grant, err := s.disclosure.Revoke(owner, viewer)
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "disclosure.revoke", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newGrantView(grant))
}

func (s *Server) handleDisclosureAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner  string `json:"owner"`
		Viewer string `json:"viewer"`
		Level  uint8  `json:"level"`
	}
	if err := s.readBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	viewer, err := parseAddress(req.Viewer)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.mu.Lock()
	view, grant, err := s.disclosure.Access(owner, viewer, disclosure.LevelFromUint8(req.Level))
	s.mu.Unlock()
	if err != nil {
		s.writeModuleError(w, "disclosure.access", err)
		return
	}
	s.metrics.ObserveDisclosureRead(view.Level.String())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"disclosure": view,
		"grant":      newGrantView(grant),
	})
}
