package full

import (
	"context"
	"errors"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/build/buildconstants"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/metrics"
	"github.com/filecoin-project/lotus-gasest/node/config"
	"github.com/filecoin-project/lotus-gasest/node/impl/gasutils"
)

var log = logging.Logger("node/full")

type GasModuleAPI interface {
	GasEstimateMessageGas(ctx context.Context, msg *types.Message, spec *api.MessageSendSpec, tsk types.TipSetKey) (*types.Message, error)
}

var _ GasModuleAPI = *new(api.Gas)

// GasModule provides a default implementation of GasModuleAPI.
// It can be swapped out with another implementation through Dependency
// Injection (for example with a thin RPC client).
type GasModule struct {
	fx.In

	Chain      gasutils.ChainStoreAPI
	Stmgr      gasutils.StateManagerAPI
	Mpool      gasutils.MessagePoolAPI
	Params     *buildconstants.NetworkParams
	PriceCache *gasutils.GasPriceCache
	Noise      gasutils.NoiseSource
	Cfg        config.GasEstimator
}

func (m *GasModule) GasEstimateFeeCap(
	ctx context.Context,
	msg *types.Message,
	maxqueueblks int64,
	tsk types.TipSetKey,
) (out types.BigInt, err error) {
	ctx, done := m.observe(ctx, "GasEstimateFeeCap")
	defer func() { done(err) }()

	if msg == nil {
		return types.BigInt{}, xerrors.New("no message given")
	}

	out, err = gasutils.GasEstimateFeeCap(ctx, m.Chain, m.Params, msg.GasPremium, maxqueueblks, tsk)
	if err != nil {
		return types.BigInt{}, typedError(err)
	}
	recordFee(ctx, metrics.GasEstimatedFeeCap, out)
	return out, nil
}

// GasEstimateGasPremium estimates the gas price for a message to be included
// within nblocksincl epochs. The sender and gas limit are not taken into
// account.
func (m *GasModule) GasEstimateGasPremium(
	ctx context.Context,
	nblocksincl uint64,
	_ address.Address,
	_ int64,
	tsk types.TipSetKey,
) (out types.BigInt, err error) {
	ctx, done := m.observe(ctx, "GasEstimateGasPremium")
	defer func() { done(err) }()

	out, err = gasutils.GasEstimateGasPremium(ctx, m.Chain, m.Params, m.PriceCache, m.noise(), nblocksincl, tsk)
	if err != nil {
		return types.BigInt{}, typedError(err)
	}
	recordFee(ctx, metrics.GasEstimatedPremium, out)
	return out, nil
}

// GasEstimateGasLimit simulates msgIn on top of the sender's pending
// messages. The tipset key is ignored: simulation always runs on the message
// pool's base tipset, or the heaviest one when the pool has none.
func (m *GasModule) GasEstimateGasLimit(ctx context.Context, msgIn *types.Message, _ types.TipSetKey) (out int64, err error) {
	ctx, done := m.observe(ctx, "GasEstimateGasLimit")
	defer func() { done(err) }()

	if msgIn == nil {
		return -1, xerrors.New("no message given")
	}

	out, err = gasutils.GasEstimateGasLimit(ctx, m.Chain, m.Stmgr, m.Mpool, m.Params, msgIn)
	if err != nil {
		return -1, typedError(err)
	}
	if out > 0 {
		stats.Record(ctx, metrics.GasEstimatedLimit.M(out))
	}
	return out, nil
}

// GasEstimateMessageGas fills the unset gas fields of msg in place: the limit
// first, then the premium, then the fee cap on top of the resulting premium.
// Fields already set are left untouched. The MessageSendSpec is accepted for API
// compatibility and not interpreted.
func (m *GasModule) GasEstimateMessageGas(ctx context.Context, msg *types.Message, spec *api.MessageSendSpec, tsk types.TipSetKey) (*types.Message, error) {
	if msg == nil {
		return nil, xerrors.New("no message given")
	}
	if spec != nil {
		log.Debugw("GasEstimateMessageGas", "maxFee", spec.MaxFee, "msgUuid", spec.MsgUuid, "maximizeFeeCap", spec.MaximizeFeeCap)
	}

	if msg.GasLimit == 0 {
		gasLimit, err := m.GasEstimateGasLimit(ctx, msg, tsk)
		if err != nil {
			return nil, typedError(xerrors.Errorf("estimating gas used: %w", err))
		}
		msg.GasLimit = gasLimit
	}

	if types.IsUnset(msg.GasPremium) {
		gasPremium, err := m.GasEstimateGasPremium(ctx, m.premiumBlocks(), msg.From, msg.GasLimit, tsk)
		if err != nil {
			return nil, typedError(xerrors.Errorf("estimating gas price: %w", err))
		}
		msg.GasPremium = gasPremium
	}

	if types.IsUnset(msg.GasFeeCap) {
		feeCap, err := m.GasEstimateFeeCap(ctx, msg, m.Cfg.FeeCapQueueBlocks, tsk)
		if err != nil {
			return nil, typedError(xerrors.Errorf("estimating fee cap: %w", err))
		}
		msg.GasFeeCap = feeCap
	}

	return msg, nil
}

func (m *GasModule) premiumBlocks() uint64 {
	if m.Cfg.PremiumInclusionBlocks == 0 {
		return config.DefaultPremiumInclusionBlocks
	}
	return m.Cfg.PremiumInclusionBlocks
}

func (m *GasModule) noise() gasutils.NoiseSource {
	if m.Noise == nil {
		return gasutils.DefaultNoise
	}
	return m.Noise
}

// observe tags ctx with the method and network and starts the duration timer.
// The returned func records a failure by type when given a non-nil error.
func (m *GasModule) observe(ctx context.Context, method string) (context.Context, func(error)) {
	if m.Params != nil {
		ctx = metrics.AddNetworkTag(ctx, m.Params.NetworkName)
	}
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.Method, method))
	stop := metrics.Timer(ctx, metrics.GasEstimationDuration)

	return ctx, func(err error) {
		stop()
		if err == nil {
			return
		}
		_ = stats.RecordWithTags(ctx,
			[]tag.Mutator{tag.Upsert(metrics.FailureType, failureType(err))},
			metrics.GasEstimationFailure.M(1),
		)
	}
}

// typedError returns the estimation error carried by err, if any, so that
// the RPC server can map it to its registered error code.
func typedError(err error) error {
	var (
		csu  *api.ErrChainStateUnavailable
		conv *api.ErrNumericConversion
		res  *api.ErrAddressResolution
		exe  *api.ErrExecutor
	)
	switch {
	case errors.As(err, &csu):
		return csu
	case errors.As(err, &conv):
		return conv
	case errors.As(err, &res):
		return res
	case errors.As(err, &exe):
		return exe
	default:
		return err
	}
}

func failureType(err error) string {
	var (
		csu  *api.ErrChainStateUnavailable
		conv *api.ErrNumericConversion
		res  *api.ErrAddressResolution
		exe  *api.ErrExecutor
	)
	switch {
	case errors.As(err, &csu):
		return "chain_state"
	case errors.As(err, &conv):
		return "numeric"
	case errors.As(err, &res):
		return "address"
	case errors.As(err, &exe):
		return "executor"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

func recordFee(ctx context.Context, m *stats.Float64Measure, v types.BigInt) {
	f, _ := v.Int.Float64()
	stats.Record(ctx, m.M(f))
}
