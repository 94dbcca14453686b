package observability

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks ledger operation activity and settlement volume.
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec

	settlements      prometheus.Counter
	settlementVolume prometheus.Counter
}

// NewMetrics builds the metric set and registers it with the supplied
// registerer. Passing nil registers against the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mintgate",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total ledger operations segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mintgate",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution for ledger operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mintgate",
			Subsystem: "settlement",
			Name:      "completed_total",
			Help:      "Count of completed settlements.",
		}),
		settlementVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mintgate",
			Subsystem: "settlement",
			Name:      "volume_units_total",
			Help:      "Smallest-unit volume moved through completed settlements.",
		}),
	}
	reg.MustRegister(m.operations, m.latency, m.settlements, m.settlementVolume)
	return m
}

// ObserveOperation records one ledger operation's outcome and latency.
func (m *Metrics) ObserveOperation(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveSettlement records one completed settlement and its volume. Volumes
// beyond float precision still count the settlement itself.
func (m *Metrics) ObserveSettlement(total *big.Int) {
	if m == nil {
		return
	}
	m.settlements.Inc()
	if total == nil {
		return
	}
	if f, _ := new(big.Float).SetInt(total).Float64(); f >= 0 {
		m.settlementVolume.Add(f)
	}
}
