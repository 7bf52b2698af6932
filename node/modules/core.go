package modules

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/build/buildconstants"
	"github.com/filecoin-project/lotus-gasest/metrics"
	"github.com/filecoin-project/lotus-gasest/node/config"
	"github.com/filecoin-project/lotus-gasest/node/modules/dtypes"
	"github.com/filecoin-project/lotus-gasest/node/modules/helpers"
	"github.com/filecoin-project/lotus-gasest/node/repo"
)

var log = logging.Logger("modules")

func LockedRepo(lr repo.LockedRepo) func(lc fx.Lifecycle) repo.LockedRepo {
	return func(lc fx.Lifecycle) repo.LockedRepo {
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return lr.Close()
			},
		})

		return lr
	}
}

func Datastore(mctx helpers.MetricsCtx, lc fx.Lifecycle, r repo.LockedRepo) (dtypes.MetadataDS, error) {
	ctx := helpers.LifecycleCtx(mctx, lc)
	ds, err := r.Datastore(ctx)
	if err != nil {
		return nil, xerrors.Errorf("opening chain datastore: %w", err)
	}
	return ds, nil
}

// NetworkParams looks up the protocol constants of the configured network.
func NetworkParams(cfg config.Chain) (*buildconstants.NetworkParams, error) {
	p, err := buildconstants.ParamsForNetwork(cfg.Network)
	if err != nil {
		return nil, xerrors.Errorf("chain config: %w", err)
	}
	return p, nil
}

// NetworkMetricsCtx tags every measurement recorded under the node context
// with the network name.
func NetworkMetricsCtx(params *buildconstants.NetworkParams) helpers.MetricsCtx {
	return metrics.AddNetworkTag(context.Background(), params.NetworkName)
}
