package modules

import (
	"context"

	"go.uber.org/fx"

	"github.com/filecoin-project/go-state-types/abi"

	"github.com/filecoin-project/lotus-gasest/chain/stmgr"
	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/node/config"
)

type StateManagerParams struct {
	fx.In

	Chain    *store.ChainStore
	Invoker  stmgr.Invoker
	Resolver stmgr.KeyResolver `optional:"true"`
	ChainCfg config.Chain
	GasCfg   config.GasEstimator
}

func StateManager(p StateManagerParams) *stmgr.StateManager {
	epochs := make([]abi.ChainEpoch, 0, len(p.ChainCfg.ExpensiveForkEpochs))
	for _, e := range p.ChainCfg.ExpensiveForkEpochs {
		epochs = append(epochs, abi.ChainEpoch(e))
	}

	opts := []stmgr.Option{
		stmgr.WithExpensiveUpgrades(epochs...),
		stmgr.WithExecutionLanes(p.GasCfg.ExecutionLanes),
	}
	if p.Resolver != nil {
		opts = append(opts, stmgr.WithKeyResolver(p.Resolver))
	}

	return stmgr.NewStateManager(p.Chain, p.Invoker, opts...)
}

// NoVM is the invoker of a node built without a virtual machine. Every
// simulation fails, so gas limit estimation reports an executor error.
type NoVM struct{}

func (NoVM) Invoke(context.Context, *types.Message, []types.ChainMsg, *types.TipSet) (*types.MessageReceipt, error) {
	return nil, stmgr.ErrNoInvoker
}
