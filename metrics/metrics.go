package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	rpcmetrics "github.com/filecoin-project/go-jsonrpc/metrics"
)

// Distributions
var defaultMillisecondsDistribution = view.Distribution(
	0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, // Very short intervals for fast operations
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100, // 10 ms intervals up to 100 ms
	150, 200, 250, 300, 350, 400, 450, 500, // 50 ms intervals from 100 to 500 ms
	600, 700, 800, 900, 1000, // 100 ms intervals from 500 to 1000 ms
	2000, 3000, 4000, 5000, 8000, 10000, 20000, 30000, 60000,
)

// Gas distribution for message gas limits and used gas (ranges from thousands to billions)
var gasDistribution = view.Distribution(
	250e3, 500e3, // very small messages
	1e6, 2e6, 5e6, 10e6, 20e6, 50e6, 100e6, // typical messages
	200e6, 500e6, 1e9, 2e9, 5e9, 10e9, // large messages up to block limit
)

// Gas fee distribution for gas premium and gas fee cap (100 attoFIL to 50 nanoFIL)
var gasFeeDistribution = view.Distribution(
	100, 200, 500,
	1e3, 500e3,
	1e6, 100e6, 500e6,
	1e9, 5e9, 10e9, 50e9,
)

// Tags
var (
	Network, _       = tag.NewKey("network")
	FailureType, _   = tag.NewKey("failure_type")
	Method, _        = tag.NewKey("method")
	ExecutionLane, _ = tag.NewKey("lane")
)

// Measures
var (
	ChainNodeHeight = stats.Int64("chain/node_height", "Current Height of the node", stats.UnitDimensionless)

	MpoolMessageCount = stats.Int64("mpool/message_count", "Number of messages in the mpool", stats.UnitDimensionless)

	GasEstimationDuration = stats.Float64("gas/estimation_ms", "Duration of gas estimation calls", stats.UnitMilliseconds)
	GasEstimationFailure  = stats.Int64("gas/estimation_failure", "Counter for failed gas estimations", stats.UnitDimensionless)
	GasPremiumFallback    = stats.Int64("gas/premium_fallback", "Counter for premium estimations that fell back to the minimum premium", stats.UnitDimensionless)
	GasEstimatedPremium   = stats.Float64("gas/estimated_premium", "Estimated gas premium in attoFIL (histogram)", stats.UnitDimensionless)
	GasEstimatedFeeCap    = stats.Float64("gas/estimated_fee_cap", "Estimated gas fee cap in attoFIL (histogram)", stats.UnitDimensionless)
	GasEstimatedLimit     = stats.Int64("gas/estimated_limit", "Estimated gas limit (histogram)", stats.UnitDimensionless)

	VMExecutionWaiting = stats.Int64("vm/execution_waiting", "Counter for VM executions waiting to be assigned to a lane", stats.UnitDimensionless)
	VMExecutionRunning = stats.Int64("vm/execution_running", "Counter for running VM executions", stats.UnitDimensionless)
)

var (
	ChainNodeHeightView = &view.View{
		Measure:     ChainNodeHeight,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{Network},
	}
	MpoolMessageCountView = &view.View{
		Measure:     MpoolMessageCount,
		Aggregation: view.LastValue(),
	}

	GasEstimationDurationView = &view.View{
		Measure:     GasEstimationDuration,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{Method, Network},
	}
	GasEstimationFailureView = &view.View{
		Measure:     GasEstimationFailure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Method, FailureType, Network},
	}
	GasPremiumFallbackView = &view.View{
		Measure:     GasPremiumFallback,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Network},
	}
	GasEstimatedPremiumView = &view.View{
		Measure:     GasEstimatedPremium,
		Aggregation: gasFeeDistribution,
		TagKeys:     []tag.Key{Network},
	}
	GasEstimatedFeeCapView = &view.View{
		Measure:     GasEstimatedFeeCap,
		Aggregation: gasFeeDistribution,
		TagKeys:     []tag.Key{Network},
	}
	GasEstimatedLimitView = &view.View{
		Measure:     GasEstimatedLimit,
		Aggregation: gasDistribution,
		TagKeys:     []tag.Key{Network},
	}

	VMExecutionWaitingView = &view.View{
		Measure:     VMExecutionWaiting,
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{ExecutionLane, Network},
	}
	VMExecutionRunningView = &view.View{
		Measure:     VMExecutionRunning,
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{ExecutionLane, Network},
	}
)

var views = []*view.View{
	ChainNodeHeightView,
	MpoolMessageCountView,
	GasEstimationDurationView,
	GasEstimationFailureView,
	GasPremiumFallbackView,
	GasEstimatedPremiumView,
	GasEstimatedFeeCapView,
	GasEstimatedLimitView,
	VMExecutionWaitingView,
	VMExecutionRunningView,
}

// DefaultViews returns the views the node registers with the exporter.
func DefaultViews() []*view.View {
	return append([]*view.View(nil), views...)
}

// RegisterViews adds views to the default list without modifying this file.
func RegisterViews(v ...*view.View) {
	views = append(views, v...)
}

func init() {
	RegisterViews(rpcmetrics.DefaultViews...)
}

// SinceInMilliseconds returns the duration of time since the provide time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Milliseconds())
}

// Timer is a function stopwatch, calling it starts the timer,
// calling the returned function will record the duration.
func Timer(ctx context.Context, m *stats.Float64Measure) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		stats.Record(ctx, m.M(SinceInMilliseconds(start)))
		return time.Since(start)
	}
}

func AddNetworkTag(ctx context.Context, network string) context.Context {
	ctx, _ = tag.New(ctx, tag.Upsert(Network, network))
	return ctx
}
