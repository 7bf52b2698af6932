package full

import (
	"context"
	"testing"

	dstore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/build/buildconstants"
	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/chain/types/mock"
	"github.com/filecoin-project/lotus-gasest/node/config"
	"github.com/filecoin-project/lotus-gasest/node/impl/gasutils"
)

type zeroNoise struct{}

func (zeroNoise) NormFloat64() float64 { return 0 }

// noChain fails the test as soon as an estimator touches the chain.
type noChain struct{ t *testing.T }

func (c noChain) GetHeaviestTipSet() *types.TipSet {
	c.t.Fatal("chain store used")
	return nil
}

func (c noChain) GetTipSetFromKey(context.Context, types.TipSetKey) (*types.TipSet, error) {
	c.t.Fatal("chain store used")
	return nil, nil
}

func (c noChain) LoadTipSet(context.Context, types.TipSetKey) (*types.TipSet, error) {
	c.t.Fatal("chain store used")
	return nil, nil
}

func (c noChain) MessagesForTipset(context.Context, *types.TipSet) ([]types.ChainMsg, error) {
	c.t.Fatal("chain store used")
	return nil, nil
}

type fakeStmgr struct {
	calls int
	rct   *types.MessageReceipt
	err   error
}

func (sm *fakeStmgr) CallWithGas(_ context.Context, msg *types.Message, _ []types.ChainMsg, _ *types.TipSet) (*api.InvocResult, error) {
	sm.calls++
	if sm.err != nil {
		return nil, sm.err
	}
	return &api.InvocResult{Msg: msg, MsgRct: sm.rct}, nil
}

func (sm *fakeStmgr) ResolveToDeterministicAddress(_ context.Context, addr address.Address, _ *types.TipSet) (address.Address, error) {
	return addr, nil
}

type emptyMpool struct{}

func (emptyMpool) PendingFor(context.Context, address.Address) ([]*types.SignedMessage, *types.TipSet) {
	return nil, nil
}

// newGenesisModule returns a module over a chain holding only a genesis
// tipset with a parent base fee of 100.
func newGenesisModule(t *testing.T, sm *fakeStmgr) *GasModule {
	ctx := context.Background()
	cs, err := store.NewChainStore(dssync.MutexWrap(dstore.NewMapDatastore()), 16)
	require.NoError(t, err)

	gen := mock.TipSet(mock.MkBlock(nil, 1, 1, big.NewInt(100)))
	require.NoError(t, cs.PutTipSet(ctx, gen))
	require.NoError(t, cs.SetHead(ctx, gen))

	return &GasModule{
		Chain:      cs,
		Stmgr:      sm,
		Mpool:      emptyMpool{},
		Params:     buildconstants.MustParamsForNetwork("mainnet"),
		PriceCache: gasutils.NewGasPriceCache(0),
		Noise:      zeroNoise{},
		Cfg:        config.DefaultFullNode().GasEstimator,
	}
}

func TestMessageGasAllFieldsSet(t *testing.T) {
	m := &GasModule{
		Chain:  noChain{t},
		Stmgr:  &fakeStmgr{err: xerrors.New("state manager used")},
		Mpool:  emptyMpool{},
		Params: buildconstants.MustParamsForNetwork("mainnet"),
		Cfg:    config.DefaultFullNode().GasEstimator,
	}

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	orig := *msg

	out, err := m.GasEstimateMessageGas(context.Background(), msg, &api.MessageSendSpec{MaxFee: big.NewInt(1)}, types.EmptyTSK)
	require.NoError(t, err)
	require.Same(t, msg, out)
	require.True(t, orig.Equals(out))
}

func TestMessageGasFillsUnsetFields(t *testing.T) {
	ctx := context.Background()
	sm := &fakeStmgr{rct: &types.MessageReceipt{ExitCode: exitcode.Ok, GasUsed: 1000}}
	m := newGenesisModule(t, sm)

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasLimit = 0
	msg.GasPremium = types.EmptyInt
	msg.GasFeeCap = big.Zero()

	out, err := m.GasEstimateMessageGas(ctx, msg, nil, types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, 1, sm.calls)

	// 1000 used + 200000 overestimation
	require.Equal(t, int64(201_000), out.GasLimit)
	// nothing below genesis: minimum premium for a 10 block target
	require.Equal(t, "100000", out.GasPremium.String())
	// 100 * trunc(1.125^20 * 2^8) / 2^8 + premium
	require.Equal(t, "101054", out.GasFeeCap.String())
}

func TestMessageGasFeeCapUsesPresetPremium(t *testing.T) {
	ctx := context.Background()
	sm := &fakeStmgr{err: xerrors.New("state manager used")}
	m := newGenesisModule(t, sm)

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasPremium = big.NewInt(7)
	msg.GasFeeCap = types.EmptyInt

	out, err := m.GasEstimateMessageGas(ctx, msg, nil, types.EmptyTSK)
	require.NoError(t, err)
	require.Zero(t, sm.calls)
	require.Equal(t, int64(1000000), out.GasLimit)
	require.Equal(t, "7", out.GasPremium.String())
	require.Equal(t, "1061", out.GasFeeCap.String())
}

func TestMessageGasConfiguredBlocks(t *testing.T) {
	ctx := context.Background()
	m := newGenesisModule(t, &fakeStmgr{})
	m.Cfg.PremiumInclusionBlocks = 1
	m.Cfg.FeeCapQueueBlocks = 0

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasPremium = types.EmptyInt
	msg.GasFeeCap = types.EmptyInt

	out, err := m.GasEstimateMessageGas(ctx, msg, nil, types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, "200000", out.GasPremium.String())
	require.Equal(t, "200100", out.GasFeeCap.String())
}

func TestMessageGasFailedExecutionKeepsSentinel(t *testing.T) {
	ctx := context.Background()
	m := newGenesisModule(t, &fakeStmgr{rct: &types.MessageReceipt{ExitCode: exitcode.ErrForbidden}})

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasLimit = 0

	out, err := m.GasEstimateMessageGas(ctx, msg, nil, types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, int64(-1), out.GasLimit)
}

func TestMessageGasExecutorError(t *testing.T) {
	ctx := context.Background()
	m := newGenesisModule(t, &fakeStmgr{err: xerrors.New("boom")})

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasLimit = 0

	_, err := m.GasEstimateMessageGas(ctx, msg, nil, types.EmptyTSK)
	var exe *api.ErrExecutor
	require.ErrorAs(t, err, &exe)
	require.IsType(t, &api.ErrExecutor{}, err)
	require.Equal(t, "executor", failureType(err))
}

func TestMessageGasNilMessage(t *testing.T) {
	m := &GasModule{Chain: noChain{t}}
	_, err := m.GasEstimateMessageGas(context.Background(), nil, nil, types.EmptyTSK)
	require.Error(t, err)
}

func TestFailureType(t *testing.T) {
	require.Equal(t, "chain_state", failureType(xerrors.Errorf("x: %w", &api.ErrChainStateUnavailable{})))
	require.Equal(t, "numeric", failureType(&api.ErrNumericConversion{}))
	require.Equal(t, "address", failureType(&api.ErrAddressResolution{}))
	require.Equal(t, "cancelled", failureType(xerrors.Errorf("walk: %w", context.Canceled)))
	require.Equal(t, "other", failureType(xerrors.New("x")))
}

func TestTypedErrorIsSurfaced(t *testing.T) {
	cause := xerrors.New("boom")
	err := typedError(xerrors.Errorf("estimating gas used: %w", &api.ErrExecutor{Err: cause}))
	require.IsType(t, &api.ErrExecutor{}, err)
	require.ErrorIs(t, err, cause)

	plain := xerrors.New("plain")
	require.Equal(t, plain, typedError(plain))
}
