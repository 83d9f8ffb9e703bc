package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records commission fan-out and payout activity.
type LedgerMetrics struct {
	commissionRows  *prometheus.CounterVec
	integrityErrors prometheus.Counter
	payouts         *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	commissionRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_commission_rows_total",
		Help: "Commission rows handled by the fan-out, by level and outcome.",
	}, []string{"level", "outcome"})
	integrityErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_integrity_errors_total",
		Help: "Sponsor chain cycles and malformed settings detected.",
	})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payouts_total",
		Help: "Payout state changes, by resulting status.",
	}, []string{"status"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_gateway_request_seconds",
		Help:    "Latency of payout gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})
	reg.MustRegister(commissionRows, integrityErrors, payouts, gatewayLatency)
	return &LedgerMetrics{
		commissionRows:  commissionRows,
		integrityErrors: integrityErrors,
		payouts:         payouts,
		gatewayLatency:  gatewayLatency,
	}
}

// CommissionRow counts one level of a fan-out. outcome is created, duplicate or failed.
func (m *LedgerMetrics) CommissionRow(level int, outcome string) {
	if m == nil || m.commissionRows == nil {
		return
	}
	m.commissionRows.WithLabelValues(strconv.Itoa(level), normalizeLabel(outcome)).Inc()
}

// IntegrityError counts a detected data integrity problem.
func (m *LedgerMetrics) IntegrityError() {
	if m == nil || m.integrityErrors == nil {
		return
	}
	m.integrityErrors.Inc()
}

// PayoutStatus counts a payout reaching status.
func (m *LedgerMetrics) PayoutStatus(status string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveGateway records the latency of one gateway call.
func (m *LedgerMetrics) ObserveGateway(operation string, duration time.Duration, err error) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation), result).Observe(duration.Seconds())
}
