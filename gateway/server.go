// Package gateway exposes the ledger modules over HTTP. Every mutating
// request is serialized behind one mutex so cross-record updates stay atomic
// with respect to each other.
package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"privscore/native/credit"
	"privscore/native/disclosure"
	"privscore/native/lending"
	"privscore/observability/metrics"
)

const maxBodyBytes = 1 << 16 // 64 KiB

// Server implements the HTTP handlers for the lending node.
type Server struct {
	mu         sync.Mutex
	credit     *credit.Ledger
	disclosure *disclosure.Ledger
	lending    *lending.Engine
	metrics    *metrics.LendingMetrics
	log        *slog.Logger
}

// NewServer constructs a server over the wired module ledgers.
func NewServer(creditLedger *credit.Ledger, disclosureLedger *disclosure.Ledger, engine *lending.Engine, log *slog.Logger) (*Server, error) {
	if creditLedger == nil || disclosureLedger == nil || engine == nil {
		return nil, errors.New("gateway: all module ledgers required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		credit:     creditLedger,
		disclosure: disclosureLedger,
		lending:    engine,
		metrics:    metrics.Lending(),
		log:        log,
	}, nil
}

// Router builds the chi router for the service endpoints. The /metrics
// handler is mounted by the host alongside this router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/healthz", s.handleHealthz)

	r.Post("/pool/create", s.handlePoolCreate)
	r.Post("/pool/deposit", s.handlePoolDeposit)
	r.Post("/pool/withdraw", s.handlePoolWithdraw)
	r.Get("/pool/{id}", s.handlePoolGet)

	r.Post("/credit/register", s.handleCreditRegister)
	r.Post("/credit/update", s.handleCreditUpdate)
	r.Post("/credit/deactivate", s.handleCreditDeactivate)

	r.Post("/loan/borrow", s.handleLoanBorrow)
	r.Post("/loan/verify-borrow", s.handleLoanVerifyBorrow)
	r.Post("/loan/repay", s.handleLoanRepay)
	r.Post("/loan/liquidate", s.handleLoanLiquidate)
	r.Post("/loan/default", s.handleLoanDefault)
	r.Get("/loan/{id}", s.handleLoanGet)

	r.Post("/disclosure/grant", s.handleDisclosureGrant)
	r.Post("/disclosure/revoke", s.handleDisclosureRevoke)
	r.Post("/disclosure/access", s.handleDisclosureAccess)

	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readBody(r *http.Request, out interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("failed to read request body")
	}
	if len(body) == 0 {
		return errors.New("request body required")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.New("invalid JSON payload")
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "failed to marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	body, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeModuleError(w http.ResponseWriter, op string, err error) {
	status, code, message := mapError(err)
	if status == http.StatusInternalServerError {
		s.log.Error("operation failed", "op", op, "err", err)
	}
	s.writeError(w, status, code, message)
}

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != len(addr) {
		return addr, errors.New("address must be 20 hex-encoded bytes")
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseHash(raw string) ([32]byte, error) {
	var hash [32]byte
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != len(hash) {
		return hash, errors.New("value must be 32 hex-encoded bytes")
	}
	copy(hash[:], decoded)
	return hash, nil
}

func parseBlob(raw string) ([]byte, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, nil
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return nil, errors.New("value must be hex encoded")
	}
	return decoded, nil
}
