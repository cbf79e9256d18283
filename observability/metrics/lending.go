package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics aggregates the counters and gauges exported by the lending
// and disclosure modules.
type LendingMetrics struct {
	loansOriginated *prometheus.CounterVec
	loansRepaid     prometheus.Counter
	loansLiquidated prometheus.Counter
	loansDefaulted  prometheus.Counter
	proofsVerified  prometheus.Counter
	proofsRejected  prometheus.Counter
	disclosureReads *prometheus.CounterVec
	poolLiquidity   *prometheus.GaugeVec
	poolUtilization *prometheus.GaugeVec
	interestAccrued *prometheus.GaugeVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide lending metrics registry.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			loansOriginated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_loans_originated_total",
				Help: "Count of loans opened by loan type.",
			}, []string{"type"}),
			loansRepaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_loans_repaid_total",
				Help: "Count of loans fully repaid and closed.",
			}),
			loansLiquidated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_loans_liquidated_total",
				Help: "Count of loans closed through liquidation.",
			}),
			loansDefaulted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_loans_defaulted_total",
				Help: "Count of overdue loans marked defaulted.",
			}),
			proofsVerified: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_proofs_verified_total",
				Help: "Count of score proofs accepted by the verifier.",
			}),
			proofsRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_proofs_rejected_total",
				Help: "Count of score proofs rejected by the verifier.",
			}),
			disclosureReads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "disclosure_reads_total",
				Help: "Count of disclosure reads served by access level.",
			}, []string{"level"}),
			poolLiquidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_pool_available_liquidity",
				Help: "Unborrowed liquidity per pool.",
			}, []string{"pool"}),
			poolUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_pool_utilization_bps",
				Help: "Borrowed share of deposits per pool in basis points.",
			}, []string{"pool"}),
			interestAccrued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_pool_interest_accrued",
				Help: "Cumulative interest realised by closed loans per pool.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			lendingRegistry.loansOriginated,
			lendingRegistry.loansRepaid,
			lendingRegistry.loansLiquidated,
			lendingRegistry.loansDefaulted,
			lendingRegistry.proofsVerified,
			lendingRegistry.proofsRejected,
			lendingRegistry.disclosureReads,
			lendingRegistry.poolLiquidity,
			lendingRegistry.poolUtilization,
			lendingRegistry.interestAccrued,
		)
	})
	return lendingRegistry
}

func (m *LendingMetrics) ObserveLoanOriginated(loanType string) {
	if m == nil {
		return
	}
	if loanType == "" {
		loanType = "unknown"
	}
	m.loansOriginated.WithLabelValues(loanType).Inc()
}

func (m *LendingMetrics) ObserveLoanRepaid() {
	if m == nil {
		return
	}
	m.loansRepaid.Inc()
}

func (m *LendingMetrics) ObserveLoanLiquidated() {
	if m == nil {
		return
	}
	m.loansLiquidated.Inc()
}

func (m *LendingMetrics) ObserveLoanDefaulted() {
	if m == nil {
		return
	}
	m.loansDefaulted.Inc()
}

func (m *LendingMetrics) ObserveProofVerified() {
	if m == nil {
		return
	}
	m.proofsVerified.Inc()
}

func (m *LendingMetrics) ObserveProofRejected() {
	if m == nil {
		return
	}
	m.proofsRejected.Inc()
}

func (m *LendingMetrics) ObserveDisclosureRead(level string) {
	if m == nil {
		return
	}
	if level == "" {
		level = "unknown"
	}
	m.disclosureReads.WithLabelValues(level).Inc()
}

func (m *LendingMetrics) SetPoolLiquidity(pool string, available float64) {
	if m == nil || pool == "" {
		return
	}
	m.poolLiquidity.WithLabelValues(pool).Set(available)
}

func (m *LendingMetrics) SetPoolUtilization(pool string, bps float64) {
	if m == nil || pool == "" {
		return
	}
	m.poolUtilization.WithLabelValues(pool).Set(bps)
}

func (m *LendingMetrics) SetPoolInterestAccrued(pool string, total float64) {
	if m == nil || pool == "" {
		return
	}
	m.interestAccrued.WithLabelValues(pool).Set(total)
}
