package types_test

import (
	"encoding/json"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/chain/types/mock"
)

func TestTipSetKeyRoundTrip(t *testing.T) {
	gen := mock.MkBlock(nil, 1, 1, big.NewInt(100))
	b1 := mock.MkBlock(mock.TipSet(gen), 1, 2, big.NewInt(100))
	b2 := mock.MkBlock(mock.TipSet(gen), 1, 3, big.NewInt(100))

	k := types.NewTipSetKey(b1.Cid(), b2.Cid())
	require.Equal(t, []cid.Cid{b1.Cid(), b2.Cid()}, k.Cids())

	k2, err := types.TipSetKeyFromBytes(k.Bytes())
	require.NoError(t, err)
	require.Equal(t, k, k2)

	js, err := json.Marshal(k)
	require.NoError(t, err)
	var k3 types.TipSetKey
	require.NoError(t, json.Unmarshal(js, &k3))
	require.Equal(t, k, k3)

	require.True(t, types.EmptyTSK.IsEmpty())
	require.Empty(t, types.EmptyTSK.Cids())

	_, err = types.TipSetKeyFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestNewTipSet(t *testing.T) {
	gen := mock.TipSet(mock.MkBlock(nil, 1, 1, big.NewInt(100)))
	b1 := mock.MkBlock(gen, 1, 2, big.NewInt(120))
	b2 := mock.MkBlock(gen, 1, 3, big.NewInt(120))

	ts, err := types.NewTipSet([]*types.BlockHeader{b2, b1})
	require.NoError(t, err)
	require.Equal(t, b1.Cid(), ts.Cids()[0], "blocks are ordered by ticket")
	require.Equal(t, gen.Key(), ts.Parents())
	require.True(t, big.NewInt(120).Equals(ts.ParentBaseFee()))
	require.EqualValues(t, 1, ts.Height())

	b3 := mock.MkBlock(gen, 1, 4, big.NewInt(7))
	_, err = types.NewTipSet([]*types.BlockHeader{b1, b3})
	require.Error(t, err, "base fee must be shared")

	_, err = types.NewTipSet(nil)
	require.Error(t, err)

	js, err := json.Marshal(ts)
	require.NoError(t, err)
	var back types.TipSet
	require.NoError(t, json.Unmarshal(js, &back))
	require.True(t, ts.Equals(&back))
}

func TestMessageCid(t *testing.T) {
	from := mock.KeyAddress(1)
	m1 := mock.UnsignedMessage(from, mock.Address(1000), 1)
	m2 := mock.UnsignedMessage(from, mock.Address(1000), 1)
	require.Equal(t, m1.Cid(), m2.Cid())

	m2.GasPremium = big.NewInt(5)
	require.NotEqual(t, m1.Cid(), m2.Cid())
	require.True(t, m1.EqualCall(m2))

	data, err := m1.Serialize()
	require.NoError(t, err)
	back, err := types.DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, m1.Cid(), back.Cid())
}

func TestGasFieldsRoundTripAsDecimalStrings(t *testing.T) {
	huge, err := types.BigFromString("123456789012345678901234567890")
	require.NoError(t, err)

	m := mock.UnsignedMessage(mock.KeyAddress(2), mock.Address(1000), 0)
	m.GasPremium = huge
	m.GasFeeCap = types.BigAdd(huge, types.NewInt(1))
	m.GasLimit = -1

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.Contains(t, string(data), `"123456789012345678901234567890"`)

	var back types.Message
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, back.GasPremium.Equals(huge))
	require.EqualValues(t, -1, back.GasLimit)
}

func TestIsUnset(t *testing.T) {
	require.True(t, types.IsUnset(types.EmptyInt))
	require.True(t, types.IsUnset(big.Zero()))
	require.False(t, types.IsUnset(big.NewInt(1)))
}
