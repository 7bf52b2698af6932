package gasutils

import (
	"context"
	"errors"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/build/buildconstants"
	"github.com/filecoin-project/lotus-gasest/chain/stmgr"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/metrics"
)

var log = logging.Logger("node/gasutils")

// DefaultPriceCacheSize is enough for the 2*nblocksincl tipsets a typical
// estimation walks.
const DefaultPriceCacheSize = 50

type StateManagerAPI interface {
	CallWithGas(ctx context.Context, msg *types.Message, priorMsgs []types.ChainMsg, ts *types.TipSet) (*api.InvocResult, error)
	ResolveToDeterministicAddress(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error)
}

type ChainStoreAPI interface {
	GetHeaviestTipSet() *types.TipSet
	GetTipSetFromKey(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error)
	LoadTipSet(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error)
	MessagesForTipset(ctx context.Context, ts *types.TipSet) ([]types.ChainMsg, error)
}

type MessagePoolAPI interface {
	PendingFor(ctx context.Context, a address.Address) ([]*types.SignedMessage, *types.TipSet)
}

type GasMeta struct {
	Price big.Int
	Limit int64
}

type GasPriceCache struct {
	c *lru.TwoQueueCache[types.TipSetKey, []GasMeta]
}

func NewGasPriceCache(size int) *GasPriceCache {
	if size <= 0 {
		size = DefaultPriceCacheSize
	}
	c, err := lru.New2Q[types.TipSetKey, []GasMeta](size)
	if err != nil {
		// err only if parameter is bad
		panic(err)
	}

	return &GasPriceCache{
		c: c,
	}
}

// GetTSGasStats returns the (premium, limit) pair of every message in ts, in
// the order the chain store yields them.
func (g *GasPriceCache) GetTSGasStats(ctx context.Context, cstore ChainStoreAPI, ts *types.TipSet) ([]GasMeta, error) {
	i, has := g.c.Get(ts.Key())
	if has {
		return i, nil
	}

	var prices []GasMeta
	msgs, err := cstore.MessagesForTipset(ctx, ts)
	if err != nil {
		return nil, xerrors.Errorf("loading messages: %w", err)
	}
	for _, msg := range msgs {
		price := msg.VMMessage().GasPremium
		if price.Int == nil {
			price = big.Zero()
		}
		prices = append(prices, GasMeta{
			Price: price,
			Limit: msg.VMMessage().GasLimit,
		})
	}

	g.c.Add(ts.Key(), prices)

	return prices, nil
}

func chainStateErr(err error) error {
	var csu *api.ErrChainStateUnavailable
	if errors.As(err, &csu) {
		return csu
	}
	return &api.ErrChainStateUnavailable{Err: err}
}

// GasEstimateCallWithGas invokes msgIn after the sender's pending messages, on
// the tipset the message pool is based on (currTs if the pool has none). It
// steps back one tipset at a time while the call lands on an expensive fork.
// It returns the invocation result, the prior messages and the tipset used.
func GasEstimateCallWithGas(
	ctx context.Context,
	cstore ChainStoreAPI,
	smgr StateManagerAPI,
	mpool MessagePoolAPI,
	msgIn *types.Message,
	currTs *types.TipSet,
) (*api.InvocResult, []types.ChainMsg, *types.TipSet, error) {
	msg := *msgIn
	fromA, err := smgr.ResolveToDeterministicAddress(ctx, msgIn.From, currTs)
	if err != nil {
		return nil, []types.ChainMsg{}, nil, &api.ErrAddressResolution{Err: xerrors.Errorf("getting key address: %w", err)}
	}

	pending, ts := mpool.PendingFor(ctx, fromA)
	priorMsgs := make([]types.ChainMsg, 0, len(pending))
	for _, m := range pending {
		priorMsgs = append(priorMsgs, m)
	}

	if ts == nil {
		ts = currTs
	}

	// Try calling until we find a height with no migration.
	var res *api.InvocResult
	for {
		res, err = smgr.CallWithGas(ctx, &msg, priorMsgs, ts)
		if !errors.Is(err, stmgr.ErrExpensiveFork) {
			break
		}
		if ts.Height() == 0 {
			return nil, []types.ChainMsg{}, nil, &api.ErrExecutor{Err: xerrors.Errorf("expensive fork at genesis: %w", err)}
		}

		log.Debugw("stepping back over expensive fork", "height", ts.Height())
		ts, err = cstore.LoadTipSet(ctx, ts.Parents())
		if err != nil {
			return nil, []types.ChainMsg{}, nil, chainStateErr(xerrors.Errorf("getting parent tipset: %w", err))
		}
	}
	if err != nil {
		return nil, []types.ChainMsg{}, nil, &api.ErrExecutor{Err: xerrors.Errorf("CallWithGas failed: %w", err)}
	}

	return res, priorMsgs, ts, nil
}

// GasEstimateGasLimit simulates msgIn with the whole block gas limit and the
// lowest acceptable fees. It returns -1 if execution yields no receipt or a
// non-zero exit code, and the gas used plus a fixed overestimation otherwise.
func GasEstimateGasLimit(
	ctx context.Context,
	cstore ChainStoreAPI,
	smgr StateManagerAPI,
	mpool MessagePoolAPI,
	params *buildconstants.NetworkParams,
	msgIn *types.Message,
) (int64, error) {
	currTs := cstore.GetHeaviestTipSet()
	if currTs == nil {
		return -1, &api.ErrChainStateUnavailable{Err: xerrors.New("no heaviest tipset")}
	}

	msg := *msgIn
	msg.GasLimit = params.BlockGasLimit
	msg.GasFeeCap = big.NewInt(params.MinimumBaseFee + 1)
	msg.GasPremium = big.NewInt(1)

	res, _, _, err := GasEstimateCallWithGas(ctx, cstore, smgr, mpool, &msg, currTs)
	if err != nil {
		return -1, xerrors.Errorf("gas estimation failed: %w", err)
	}

	if res.MsgRct == nil {
		log.Debugw("GasEstimateGasLimit produced no receipt", "msg", msg.Cid())
		return -1, nil
	}

	if res.MsgRct.ExitCode != exitcode.Ok {
		log.Debugw("GasEstimateGasLimit message would fail", "ExitCode", res.MsgRct.ExitCode, "Error", res.Error)
		return -1, nil
	}

	log.Debugw("GasEstimateGasLimit CallWithGas Result", "GasUsed", res.MsgRct.GasUsed, "ExitCode", res.MsgRct.ExitCode)

	return res.MsgRct.GasUsed + params.GasLimitOverestimation, nil
}

// GasEstimateFeeCap bounds the base fee after maxqueueblks blocks of maximal
// growth, starting from the parent base fee of tsk (the head if empty), and
// adds premium.
func GasEstimateFeeCap(
	ctx context.Context,
	cstore ChainStoreAPI,
	params *buildconstants.NetworkParams,
	premium types.BigInt,
	maxqueueblks int64,
	tsk types.TipSetKey,
) (types.BigInt, error) {
	ts, err := cstore.GetTipSetFromKey(ctx, tsk)
	if err != nil {
		return types.BigInt{}, chainStateErr(xerrors.Errorf("getting tipset from key: %w", err))
	}

	if maxqueueblks < 0 {
		log.Warnw("negative max queue blocks, using 0", "maxqueueblks", maxqueueblks)
		maxqueueblks = 0
	}

	parentBaseFee := ts.ParentBaseFee()
	increaseFactor := math.Pow(1.+1./float64(params.BaseFeeMaxChangeDenom), float64(maxqueueblks))

	out, err := mulFixedPoint(parentBaseFee, increaseFactor, feeCapPrecision)
	if err != nil {
		return types.BigInt{}, xerrors.Errorf("projecting base fee over %d blocks: %w", maxqueueblks, err)
	}

	if premium.Int != nil {
		out = types.BigAdd(out, premium)
	}

	return out, nil
}

// GasEstimateGasPremium suggests a premium likely to get a message included
// within nblocksincl epochs, from the messages of the 2*nblocksincl tipsets
// below tsk (the head if empty).
func GasEstimateGasPremium(
	ctx context.Context,
	cstore ChainStoreAPI,
	params *buildconstants.NetworkParams,
	cache *GasPriceCache,
	noise NoiseSource,
	nblocksincl uint64,
	tsk types.TipSetKey,
) (types.BigInt, error) {
	if nblocksincl == 0 {
		nblocksincl = 1
	}

	var prices []GasMeta
	var blocks int

	ts, err := cstore.GetTipSetFromKey(ctx, tsk)
	if err != nil {
		return types.BigInt{}, chainStateErr(xerrors.Errorf("getting tipset from key: %w", err))
	}

	// every step moves at least one epoch down, so the walk never needs more
	// than height steps; capping also keeps walk*2 from overflowing
	walk := nblocksincl
	if h := uint64(ts.Height()); walk > h {
		walk = h
	}

	for i := uint64(0); i < walk*2; i++ {
		if ts.Height() == 0 {
			break // genesis
		}

		if err := ctx.Err(); err != nil {
			return types.BigInt{}, xerrors.Errorf("walking chain for gas premium: %w", err)
		}

		pts, err := cstore.LoadTipSet(ctx, ts.Parents())
		if err != nil {
			return types.BigInt{}, chainStateErr(xerrors.Errorf("loading parent of %s: %w", ts.Key(), err))
		}

		blocks += len(pts.Blocks())
		meta, err := cache.GetTSGasStats(ctx, cstore, pts)
		if err != nil {
			return types.BigInt{}, chainStateErr(err)
		}
		prices = append(prices, meta...)

		ts = pts
	}

	premium := sweepGasPremium(prices, blocks, params.BlockGasTarget)

	if premium.Sign() == 0 {
		var factor float64
		switch nblocksincl {
		case 1:
			factor = 2.0
		case 2:
			factor = 1.5
		default:
			factor = 1.0
		}

		premium, err = bigFromFloat(float64(params.MinGasPremium) * factor)
		if err != nil {
			return types.BigInt{}, xerrors.Errorf("fallback premium: %w", err)
		}
		stats.Record(ctx, metrics.GasPremiumFallback.M(1))
		log.Debugw("no premium signal in recent tipsets, using fallback", "nblocksincl", nblocksincl, "premium", premium)
	}

	// add some noise to normalize behaviour of message selection
	// mean 1, stddev 0.005 => 95% within +-1%
	n := 1 + noise.NormFloat64()*0.005
	premium, err = mulFixedPoint(premium, n, noisePrecision)
	if err != nil {
		return types.BigInt{}, xerrors.Errorf("applying premium noise: %w", err)
	}

	if premium.LessThan(big.NewInt(1)) {
		premium = big.NewInt(1)
	}

	return premium, nil
}

// sweepGasPremium walks samples from the highest premium down, consuming
// half of the examined blocks' gas target. The premium is taken between the
// last sample before the budget runs out and the sample that exhausts it. It
// returns zero if the samples never exhaust the budget.
func sweepGasPremium(prices []GasMeta, blocks int, blockGasTarget int64) types.BigInt {
	sort.SliceStable(prices, func(i, j int) bool {
		// sort desc by price
		return prices[i].Price.GreaterThan(prices[j].Price)
	})

	at := blockGasTarget * int64(blocks) / 2
	var prev types.BigInt
	hasPrev := false
	for _, price := range prices {
		at -= price.Limit
		if at > 0 {
			prev, hasPrev = price.Price, true
			continue
		}

		if !hasPrev {
			return types.BigAdd(price.Price, types.NewInt(1))
		}
		return types.BigAdd(types.BigDiv(types.BigAdd(prev, price.Price), types.NewInt(2)), types.NewInt(1))
	}

	return big.Zero()
}
