package modules

import (
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/build/buildconstants"
	"github.com/filecoin-project/lotus-gasest/chain/messagepool"
	"github.com/filecoin-project/lotus-gasest/chain/stmgr"
	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/node/config"
	"github.com/filecoin-project/lotus-gasest/node/modules/dtypes"
	"github.com/filecoin-project/lotus-gasest/node/modules/helpers"
)

func ChainStore(mctx helpers.MetricsCtx, lc fx.Lifecycle, ds dtypes.MetadataDS, cfg config.Chain) (*store.ChainStore, error) {
	cs, err := store.NewChainStore(ds, cfg.TipSetCacheSize)
	if err != nil {
		return nil, err
	}

	if err := cs.Load(helpers.LifecycleCtx(mctx, lc)); err != nil {
		return nil, xerrors.Errorf("loading chain state: %w", err)
	}

	if head := cs.GetHeaviestTipSet(); head != nil {
		log.Infow("loaded chain", "height", head.Height(), "head", head.Key())
	}
	return cs, nil
}

// MessagePool follows the chain head and keys senders by the key addresses
// the state manager resolves.
func MessagePool(mctx helpers.MetricsCtx, lc fx.Lifecycle, cs *store.ChainStore, sm *stmgr.StateManager, cfg config.Mpool, params *buildconstants.NetworkParams) (*messagepool.MessagePool, error) {
	mpcfg := &types.MpoolConfig{
		SizeLimitHigh:     cfg.SizeLimitHigh,
		ReplaceByFeeRatio: cfg.ReplaceByFeeRatio,
	}

	mp, err := messagepool.New(helpers.LifecycleCtx(mctx, lc), cs, sm, mpcfg, params.BlockGasLimit)
	if err != nil {
		return nil, xerrors.Errorf("constructing mpool: %w", err)
	}
	return mp, nil
}
