package metrics

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for operation replay.
type Metrics struct {
	opsTotal       *prometheus.CounterVec
	opDuration     *prometheus.HistogramVec
	reserves       *prometheus.GaugeVec
	totalLiquidity *prometheus.GaugeVec
	providers      *prometheus.GaugeVec
	sequence       prometheus.Gauge
	sinkRetries    prometheus.Counter
}

// NewMetrics creates and registers the metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soulsdex_ops_total",
			Help: "Operations applied, labeled by op and result kind.",
		}, []string{"op", "result"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "soulsdex_op_duration_seconds",
			Help:    "Time taken to apply a single operation.",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"op"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soulsdex_pool_reserve",
			Help: "Pool reserve in base units, labeled by pool and token.",
		}, []string{"pool", "token"}),
		totalLiquidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soulsdex_pool_total_liquidity",
			Help: "Outstanding liquidity units of a pool.",
		}, []string{"pool"}),
		providers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soulsdex_pool_providers",
			Help: "Accounts holding liquidity in a pool.",
		}, []string{"pool"}),
		sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soulsdex_sequence",
			Help: "Sequence of the last applied operation.",
		}),
		sinkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soulsdex_sink_retries_total",
			Help: "Retried sink writes.",
		}),
	}
	reg.MustRegister(m.opsTotal, m.opDuration, m.reserves, m.totalLiquidity, m.providers, m.sequence, m.sinkRetries)
	return m
}

// ObserveOp records one applied operation. result is "ok" or an error kind.
func (m *Metrics) ObserveOp(op, result string, seq uint64, took time.Duration) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op, result).Inc()
	m.opDuration.WithLabelValues(op).Observe(took.Seconds())
	m.sequence.Set(float64(seq))
}

// SetPool publishes the current reserves, liquidity and provider count of a pool.
func (m *Metrics) SetPool(pool, tokenA, tokenB string, reserveA, reserveB, total *uint256.Int, providers int) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues(pool, tokenA).Set(toFloat(reserveA))
	m.reserves.WithLabelValues(pool, tokenB).Set(toFloat(reserveB))
	m.totalLiquidity.WithLabelValues(pool).Set(toFloat(total))
	m.providers.WithLabelValues(pool).Set(float64(providers))
}

func (m *Metrics) SinkRetry() {
	if m == nil {
		return
	}
	m.sinkRetries.Inc()
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}

// OpsCounter returns the counter for one op and result.
func (m *Metrics) OpsCounter(op, result string) prometheus.Counter {
	return m.opsTotal.WithLabelValues(op, result)
}
