package stmgr

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"golang.org/x/sync/semaphore"

	"github.com/filecoin-project/lotus-gasest/metrics"
)

// DefaultAvailableExecutionLanes is the number of available execution lanes; it is the bound of
// concurrent active executions.
const DefaultAvailableExecutionLanes = 4

var defaultLaneTag = tag.Upsert(metrics.ExecutionLane, "default")

type executionEnv struct {
	lanes *semaphore.Weighted
}

type executionToken struct {
	env *executionEnv
	ctx context.Context
}

func newExecutionEnv(available int) *executionEnv {
	if available <= 0 {
		available = DefaultAvailableExecutionLanes
	}
	return &executionEnv{lanes: semaphore.NewWeighted(int64(available))}
}

// getToken blocks until a lane is free or ctx is done.
func (e *executionEnv) getToken(ctx context.Context) (*executionToken, error) {
	metricsUp(ctx, metrics.VMExecutionWaiting)
	defer metricsDown(ctx, metrics.VMExecutionWaiting)

	if err := e.lanes.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	metricsUp(ctx, metrics.VMExecutionRunning)
	return &executionToken{env: e, ctx: ctx}, nil
}

func (token *executionToken) Done() {
	token.env.lanes.Release(1)
	metricsDown(token.ctx, metrics.VMExecutionRunning)
}

func metricsUp(ctx context.Context, metric *stats.Int64Measure) {
	metricsAdjust(ctx, metric, 1)
}

func metricsDown(ctx context.Context, metric *stats.Int64Measure) {
	metricsAdjust(ctx, metric, -1)
}

func metricsAdjust(ctx context.Context, metric *stats.Int64Measure, delta int) {
	ctx, _ = tag.New(ctx, defaultLaneTag)
	stats.Record(ctx, metric.M(int64(delta)))
}
