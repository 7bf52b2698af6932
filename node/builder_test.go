package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/chain/types/mock"
	"github.com/filecoin-project/lotus-gasest/node/impl/gasutils"
	"github.com/filecoin-project/lotus-gasest/node/repo"
)

type zeroNoise struct{}

func (zeroNoise) NormFloat64() float64 { return 0 }

type invokerFunc func(ctx context.Context, msg *types.Message, prior []types.ChainMsg, ts *types.TipSet) (*types.MessageReceipt, error)

func (f invokerFunc) Invoke(ctx context.Context, msg *types.Message, prior []types.ChainMsg, ts *types.TipSet) (*types.MessageReceipt, error) {
	return f(ctx, msg, prior, ts)
}

// seededRepo returns a memory repo whose datastore holds a genesis tipset
// with a parent base fee of 100 as the chain head.
func seededRepo(t *testing.T) repo.Repo {
	ctx := context.Background()
	r := repo.NewMemory(nil)

	lr, err := r.Lock()
	require.NoError(t, err)
	ds, err := lr.Datastore(ctx)
	require.NoError(t, err)

	cs, err := store.NewChainStore(ds, 16)
	require.NoError(t, err)
	gen := mock.TipSet(mock.MkBlock(nil, 1, 1, big.NewInt(100)))
	require.NoError(t, cs.PutTipSet(ctx, gen))
	require.NoError(t, cs.SetHead(ctx, gen))

	require.NoError(t, lr.Close())
	return r
}

func startGasNode(t *testing.T, opts ...Option) api.Gas {
	ctx := context.Background()

	var gas api.Gas
	stop, err := New(ctx, append([]Option{
		Repo(seededRepo(t)),
		Override(new(gasutils.NoiseSource), func() gasutils.NoiseSource { return zeroNoise{} }),
	}, append(opts, GasNode(&gas))...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, stop(context.Background()))
	})

	require.NotNil(t, gas)
	return gas
}

func TestGasNodeRequiresConfig(t *testing.T) {
	var gas api.Gas
	_, err := New(context.Background(), GasNode(&gas))
	require.Error(t, err)
}

func TestGasNodeEstimates(t *testing.T) {
	ctx := context.Background()
	gas := startGasNode(t)

	premium, err := gas.GasEstimateGasPremium(ctx, 1, mock.KeyAddress(1), 0, types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, "200000", premium.String())

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasPremium = big.NewInt(7)
	feeCap, err := gas.GasEstimateFeeCap(ctx, msg, 0, types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, "107", feeCap.String())

	// no VM is wired by default
	_, err = gas.GasEstimateGasLimit(ctx, msg, types.EmptyTSK)
	var exe *api.ErrExecutor
	require.ErrorAs(t, err, &exe)
}

func TestGasNodeWithInvoker(t *testing.T) {
	ctx := context.Background()
	gas := startGasNode(t, WithInvoker(invokerFunc(func(_ context.Context, msg *types.Message, _ []types.ChainMsg, _ *types.TipSet) (*types.MessageReceipt, error) {
		return &types.MessageReceipt{ExitCode: exitcode.Ok, GasUsed: 1000}, nil
	})))

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasLimit = 0
	msg.GasPremium = types.EmptyInt
	msg.GasFeeCap = types.EmptyInt

	out, err := gas.GasEstimateMessageGas(ctx, msg, nil, types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, int64(201_000), out.GasLimit)
	require.Equal(t, "100000", out.GasPremium.String())
	require.Equal(t, "101054", out.GasFeeCap.String())
}

func TestGasNodePushedMessagesPrecedeSimulation(t *testing.T) {
	ctx := context.Background()

	var prior []types.ChainMsg
	gas := startGasNode(t, WithInvoker(invokerFunc(func(_ context.Context, _ *types.Message, pm []types.ChainMsg, _ *types.TipSet) (*types.MessageReceipt, error) {
		prior = pm
		return &types.MessageReceipt{ExitCode: exitcode.Ok, GasUsed: 1000}, nil
	})))

	from := mock.KeyAddress(1)
	pushed := mock.GasMessage(from, 0, 10, 1000)
	c, err := gas.MpoolPush(ctx, pushed)
	require.NoError(t, err)
	require.Equal(t, pushed.Cid(), c)

	nonce, err := gas.MpoolGetNonce(ctx, from)
	require.NoError(t, err)
	require.EqualValues(t, 1, nonce)

	_, err = gas.GasEstimateGasLimit(ctx, mock.UnsignedMessage(from, mock.Address(2), 1), types.EmptyTSK)
	require.NoError(t, err)
	require.Equal(t, []types.ChainMsg{pushed}, prior)
}
