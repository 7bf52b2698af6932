package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ucli "github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/chain/types/mock"
)

// fakeGas records the arguments of the last call and answers with fixed
// values.
type fakeGas struct {
	nblocks uint64
	maxq    int64
	premium types.BigInt
	tsk     types.TipSetKey
	spec    *api.MessageSendSpec

	limit int64
	err   error

	pushed  []*types.SignedMessage
	pending []*types.SignedMessage
}

func (f *fakeGas) GasEstimateFeeCap(_ context.Context, msg *types.Message, maxq int64, tsk types.TipSetKey) (types.BigInt, error) {
	f.premium, f.maxq, f.tsk = msg.GasPremium, maxq, tsk
	return big.Add(big.NewInt(1054), msg.GasPremium), f.err
}

func (f *fakeGas) GasEstimateGasLimit(_ context.Context, _ *types.Message, tsk types.TipSetKey) (int64, error) {
	f.tsk = tsk
	return f.limit, f.err
}

func (f *fakeGas) GasEstimateGasPremium(_ context.Context, nblocks uint64, _ address.Address, _ int64, tsk types.TipSetKey) (types.BigInt, error) {
	f.nblocks, f.tsk = nblocks, tsk
	return big.NewInt(200_000), f.err
}

func (f *fakeGas) GasEstimateMessageGas(_ context.Context, msg *types.Message, spec *api.MessageSendSpec, tsk types.TipSetKey) (*types.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.spec, f.tsk = spec, tsk
	if msg.GasLimit == 0 {
		msg.GasLimit = f.limit
	}
	if types.IsUnset(msg.GasPremium) {
		msg.GasPremium = big.NewInt(100_000)
	}
	if types.IsUnset(msg.GasFeeCap) {
		msg.GasFeeCap = big.NewInt(101_054)
	}
	return msg, nil
}

func (f *fakeGas) MpoolGetNonce(_ context.Context, addr address.Address) (uint64, error) {
	var n uint64
	for _, m := range f.pending {
		if m.Message.From == addr && m.Message.Nonce >= n {
			n = m.Message.Nonce + 1
		}
	}
	return n, f.err
}

func (f *fakeGas) MpoolPending(_ context.Context, tsk types.TipSetKey) ([]*types.SignedMessage, error) {
	f.tsk = tsk
	return f.pending, f.err
}

func (f *fakeGas) MpoolPush(_ context.Context, smsg *types.SignedMessage) (cid.Cid, error) {
	if f.err != nil {
		return cid.Undef, f.err
	}
	f.pushed = append(f.pushed, smsg)
	f.pending = append(f.pending, smsg)
	return smsg.Cid(), nil
}

var _ api.Gas = (*fakeGas)(nil)

// newAppWithGasAPI returns a CLI app with fake injected as its gas API and
// its output going to the returned buffer.
func newAppWithGasAPI(t *testing.T, fake api.Gas) (*ucli.App, *bytes.Buffer) {
	app := ucli.NewApp()
	app.Commands = ucli.Commands{GasCmd, MpoolCmd}
	app.Setup()

	app.Metadata[metadataTestGasAPI] = fake

	buf := &bytes.Buffer{}
	app.Writer = buf
	app.ErrWriter = buf

	return app, buf
}

func writeMessage(t *testing.T, msg *types.Message) string {
	b, err := json.Marshal(msg)
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "msg.json")
	require.NoError(t, os.WriteFile(p, b, 0644))
	return p
}

func TestGasPremium(t *testing.T) {
	fake := &fakeGas{}
	app, buf := newAppWithGasAPI(t, fake)

	err := app.Run([]string{"gas", "gas", "premium", "--nblocks", "3"})
	require.NoError(t, err)

	assert.Equal(t, uint64(3), fake.nblocks)
	assert.True(t, fake.tsk.IsEmpty())
	assert.Contains(t, buf.String(), "200000")
}

func TestGasPremiumDefaultBlocks(t *testing.T) {
	fake := &fakeGas{}
	app, _ := newAppWithGasAPI(t, fake)

	require.NoError(t, app.Run([]string{"gas", "gas", "premium"}))
	assert.Equal(t, uint64(10), fake.nblocks)
}

func TestGasFeeCap(t *testing.T) {
	fake := &fakeGas{}
	app, buf := newAppWithGasAPI(t, fake)

	err := app.Run([]string{"gas", "gas", "feecap", "--premium", "7attofil", "--max-queue-blocks", "0"})
	require.NoError(t, err)

	assert.Equal(t, "7", fake.premium.String())
	assert.Equal(t, int64(0), fake.maxq)
	assert.Contains(t, buf.String(), "1061")
}

func TestGasFeeCapBadPremium(t *testing.T) {
	app, _ := newAppWithGasAPI(t, &fakeGas{})

	err := app.Run([]string{"gas", "gas", "feecap", "--premium", "lots"})
	require.Error(t, err)
	require.ErrorIs(t, err, &PrintHelpErr{})
}

func TestGasTipSetFlag(t *testing.T) {
	fake := &fakeGas{}
	app, _ := newAppWithGasAPI(t, fake)

	ts := mock.TipSet(mock.MkBlock(nil, 1, 1, big.NewInt(100)))
	err := app.Run([]string{"gas", "gas", "premium", "--tipset", ts.Cids()[0].String()})
	require.NoError(t, err)
	assert.Equal(t, ts.Key(), fake.tsk)

	app, _ = newAppWithGasAPI(t, fake)
	err = app.Run([]string{"gas", "gas", "premium", "--tipset", "notacid"})
	require.Error(t, err)
}

func TestGasLimit(t *testing.T) {
	fake := &fakeGas{limit: 201_000}
	app, buf := newAppWithGasAPI(t, fake)

	p := writeMessage(t, mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0))
	require.NoError(t, app.Run([]string{"gas", "gas", "limit", p}))
	assert.Equal(t, "201000\n", buf.String())

	fake.limit = -1
	require.Error(t, app.Run([]string{"gas", "gas", "limit", p}))
}

func TestGasEstimate(t *testing.T) {
	fake := &fakeGas{limit: 201_000}
	app, buf := newAppWithGasAPI(t, fake)

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasLimit = 0
	msg.GasPremium = types.EmptyInt
	msg.GasFeeCap = big.Zero()
	p := writeMessage(t, msg)

	require.NoError(t, app.Run([]string{"gas", "gas", "estimate", "--max-fee", "0.5", p}))

	var out types.Message
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, int64(201_000), out.GasLimit)
	assert.Equal(t, "100000", out.GasPremium.String())
	assert.Equal(t, "101054", out.GasFeeCap.String())
	assert.Equal(t, msg.From, out.From)

	require.NotNil(t, fake.spec)
	assert.Equal(t, "500000000000000000", fake.spec.MaxFee.String())
}

func TestGasEstimateFromStdin(t *testing.T) {
	fake := &fakeGas{limit: 5}
	app, buf := newAppWithGasAPI(t, fake)

	msg := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)
	msg.GasLimit = 0
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	app.Reader = bytes.NewReader(b)

	require.NoError(t, app.Run([]string{"gas", "gas", "estimate", "-"}))
	assert.Nil(t, fake.spec)
	assert.Contains(t, buf.String(), `"GasLimit": 5`)
}

func TestGasEstimateError(t *testing.T) {
	fake := &fakeGas{err: &api.ErrExecutor{Err: xerrors.New("no vm")}}
	app, _ := newAppWithGasAPI(t, fake)

	p := writeMessage(t, mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0))
	err := app.Run([]string{"gas", "gas", "estimate", p})
	var exe *api.ErrExecutor
	require.ErrorAs(t, err, &exe)
}

func TestGasWrongArgs(t *testing.T) {
	app, _ := newAppWithGasAPI(t, &fakeGas{})

	require.ErrorIs(t, app.Run([]string{"gas", "gas", "estimate"}), &PrintHelpErr{})
	require.ErrorIs(t, app.Run([]string{"gas", "gas", "premium", "extra"}), &PrintHelpErr{})
}
