package pool

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"

	"ammEngine/internal/model"
)

// Metrics records pool operation outcomes.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	swapFees   *prometheus.CounterVec
	reserves   *prometheus.GaugeVec
	shares     *prometheus.GaugeVec
}

// NewMetrics registers the pool collectors on r.
func NewMetrics(r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amm",
			Name:      "operations_total",
			Help:      "number of pool operations by kind and result",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amm",
			Name:      "operation_duration_seconds",
			Help:      "time spent loading, computing and persisting an operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		swapFees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amm",
			Name:      "swap_fees_total",
			Help:      "fees retained by swaps, in smallest units of the input asset",
		}, []string{"pool", "asset"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "amm",
			Name:      "pool_reserve",
			Help:      "current pool reserve",
		}, []string{"pool", "asset"}),
		shares: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "amm",
			Name:      "pool_total_shares",
			Help:      "outstanding pool shares",
		}, []string{"pool"}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.operations),
		r.Register(m.duration),
		r.Register(m.swapFees),
		r.Register(m.reserves),
		r.Register(m.shares),
	)
	return m, errs.Err
}

func (m *Metrics) observe(kind model.OperationKind, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(string(kind), result).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(seconds)
}

func (m *Metrics) record(p model.Pool, op model.Operation) {
	if m == nil {
		return
	}
	addr := p.Address.Hex()
	m.reserves.WithLabelValues(addr, "x").Set(float64(p.BalanceX))
	m.reserves.WithLabelValues(addr, "y").Set(float64(p.BalanceY))
	m.shares.WithLabelValues(addr).Set(float64(p.TotalShares))
	if op.Kind == model.OpSwap && op.Fee > 0 {
		m.swapFees.WithLabelValues(addr, op.AssetIn).Add(float64(op.Fee))
	}
}
