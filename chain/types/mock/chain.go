package mock

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/crypto"

	"github.com/filecoin-project/lotus-gasest/chain/types"
)

const blockDelaySecs = 30

var stateRoot = func() cid.Cid {
	c, err := cid.Decode("bafyreicmaj5hhoy5mgqvamfhgexxyergw7hdeshizghodwkjg6qmpoco7i")
	if err != nil {
		panic(err)
	}
	return c
}()

func Address(i uint64) address.Address {
	a, err := address.NewIDAddress(i)
	if err != nil {
		panic(err)
	}
	return a
}

// KeyAddress returns a deterministic secp256k1-style key address.
func KeyAddress(seed byte) address.Address {
	pubkey := make([]byte, 65)
	for i := range pubkey {
		pubkey[i] = seed + byte(i)
	}
	a, err := address.NewSecp256k1Address(pubkey)
	if err != nil {
		panic(err)
	}
	return a
}

// MkBlock builds a block on top of parents (nil for genesis) carrying the
// given parent base fee.
func MkBlock(parents *types.TipSet, weightInc uint64, ticketNonce uint64, baseFee abi.TokenAmount) *types.BlockHeader {
	addr := Address(123561)

	var pcids []cid.Cid
	var height abi.ChainEpoch
	weight := types.NewInt(weightInc)
	var timestamp uint64
	if parents != nil {
		pcids = parents.Cids()
		height = parents.Height() + 1
		timestamp = parents.MinTimestamp() + blockDelaySecs
		weight = types.BigAdd(parents.Blocks()[0].ParentWeight, weight)
	}

	return &types.BlockHeader{
		Miner: addr,
		Ticket: &types.Ticket{
			VRFProof: []byte(fmt.Sprintf("====%d=====", ticketNonce)),
		},
		Parents:         pcids,
		ParentWeight:    weight,
		Messages:        stateRoot,
		Height:          height,
		Timestamp:       timestamp,
		ParentStateRoot: stateRoot,
		ParentBaseFee:   baseFee,
	}
}

func TipSet(blks ...*types.BlockHeader) *types.TipSet {
	ts, err := types.NewTipSet(blks)
	if err != nil {
		panic(err)
	}
	return ts
}

func UnsignedMessage(from, to address.Address, nonce uint64) *types.Message {
	return &types.Message{
		To:         to,
		From:       from,
		Value:      types.NewInt(1),
		Nonce:      nonce,
		GasLimit:   1000000,
		GasFeeCap:  types.NewInt(100),
		GasPremium: types.NewInt(1),
	}
}

// GasMessage builds a signed message carrying the given premium and limit.
func GasMessage(from address.Address, nonce uint64, premium int64, limit int64) *types.SignedMessage {
	msg := UnsignedMessage(from, Address(1001), nonce)
	msg.GasPremium = big.NewInt(premium)
	msg.GasFeeCap = big.NewInt(premium + 100)
	msg.GasLimit = limit
	return &types.SignedMessage{
		Message: *msg,
		Signature: crypto.Signature{
			Type: crypto.SigTypeSecp256k1,
			Data: []byte(fmt.Sprintf("sig-%s-%d", from, nonce)),
		},
	}
}
