package types_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/crypto"

	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/chain/types/mock"
)

func TestMessageCBOREncoding(t *testing.T) {
	m := &types.Message{
		To:         mock.Address(1),
		From:       mock.Address(2),
		Nonce:      3,
		Value:      big.NewInt(1),
		GasLimit:   1000,
		GasFeeCap:  big.NewInt(100),
		GasPremium: big.Zero(),
	}

	data, err := m.Serialize()
	require.NoError(t, err)
	require.Equal(t, "8a00420001420002034200011903e8420064400040", hex.EncodeToString(data))

	back, err := types.DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, m.Cid(), back.Cid())
	require.Nil(t, back.Params)
}

func TestMessageCidIsDagCborBlake2b(t *testing.T) {
	m := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(1000), 0)

	c := m.Cid()
	pref := c.Prefix()
	require.EqualValues(t, cid.DagCBOR, pref.Codec)
	require.EqualValues(t, multihash.BLAKE2B_MIN+31, pref.MhType)
	require.EqualValues(t, 32, pref.MhLength)

	data, err := m.Serialize()
	require.NoError(t, err)
	expect, err := pref.Sum(data)
	require.NoError(t, err)
	require.Equal(t, expect, c)
}

func TestDecodeMessageRejectsVersion(t *testing.T) {
	m := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(1000), 0)
	m.Version = 1

	data, err := m.Serialize()
	require.NoError(t, err)
	_, err = types.DecodeMessage(data)
	require.Error(t, err)
}

func TestNegativeGasLimitRoundTrip(t *testing.T) {
	m := mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(1000), 0)
	m.GasLimit = -1
	m.Params = []byte{1, 2, 3}

	data, err := m.Serialize()
	require.NoError(t, err)
	back, err := types.DecodeMessage(data)
	require.NoError(t, err)
	require.EqualValues(t, -1, back.GasLimit)
	require.Equal(t, []byte{1, 2, 3}, back.Params)
}

func TestSignedMessageCBOR(t *testing.T) {
	sm := mock.GasMessage(mock.KeyAddress(3), 7, 1234, 5000)

	data, err := sm.Serialize()
	require.NoError(t, err)
	back, err := types.DecodeSignedMessage(data)
	require.NoError(t, err)
	require.Equal(t, sm.Cid(), back.Cid())
	require.Equal(t, crypto.SigTypeSecp256k1, back.Signature.Type)
	require.True(t, back.Message.GasPremium.Equals(big.NewInt(1234)))
	require.Equal(t, sm.Size(), len(data))

	bls := &types.SignedMessage{Message: sm.Message, Signature: crypto.Signature{Type: crypto.SigTypeBLS}}
	require.Equal(t, sm.Message.Cid(), bls.Cid())
	require.NotEqual(t, sm.Message.Cid(), sm.Cid())
}

func TestBlockHeaderCBOR(t *testing.T) {
	gen := mock.MkBlock(nil, 1, 1, big.NewInt(100))
	child := mock.MkBlock(mock.TipSet(gen), 1, 2, big.NewInt(150))

	for _, b := range []*types.BlockHeader{gen, child} {
		data, err := b.Serialize()
		require.NoError(t, err)

		back, err := types.DecodeBlock(data)
		require.NoError(t, err)
		require.Equal(t, b.Cid(), back.Cid())
		require.Equal(t, b.Parents, back.Parents)
		require.Equal(t, b.Height, back.Height)
		require.True(t, b.ParentBaseFee.Equals(back.ParentBaseFee))
		require.Equal(t, b.Ticket.VRFProof, back.Ticket.VRFProof)
	}

	noTicket := *child
	noTicket.Ticket = nil
	data, err := noTicket.Serialize()
	require.NoError(t, err)
	back, err := types.DecodeBlock(data)
	require.NoError(t, err)
	require.Nil(t, back.Ticket)
	require.Equal(t, noTicket.Cid(), back.Cid())
}

func TestDecodeTruncated(t *testing.T) {
	data, err := mock.MkBlock(nil, 1, 1, big.NewInt(100)).Serialize()
	require.NoError(t, err)

	var bh types.BlockHeader
	require.Error(t, bh.UnmarshalCBOR(bytes.NewReader(data[:len(data)-2])))
}
