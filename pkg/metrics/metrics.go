package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName is the Pushgateway job the invocation metrics are grouped under
const JobName = "dexpulse"

// Metrics for monitoring
var (
	Trades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexpulse_trades_total",
		Help: "The total number of trade invocations by outcome",
	}, []string{"direction", "status"})

	TradeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dexpulse_trade_duration_seconds",
		Help:    "Time taken by a trade invocation",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	}, []string{"direction"})

	QuoteProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexpulse_quote_probes_total",
		Help: "Fee tier quote probes by result",
	}, []string{"fee_tier", "result"})

	SubmissionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexpulse_submission_attempts_total",
		Help: "Transaction submission attempts by operation and result",
	}, []string{"operation", "result"})

	GasUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dexpulse_gas_used",
		Help:    "Gas used by confirmed swaps",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 10), // Start at 21000 with 10 buckets doubling in size
	}, []string{"direction"})

	GasPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dexpulse_gas_price_gwei",
		Help: "Gas price applied to submissions in gwei",
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexpulse_errors_total",
		Help: "Total number of classified errors by kind",
	}, []string{"direction", "error_kind"})

	PriceSource = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexpulse_price_source_total",
		Help: "Base currency price lookups by the source that answered",
	}, []string{"source"})
)

// Push sends the default registry to a Pushgateway
func Push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, JobName).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %v", err)
	}
	return nil
}
