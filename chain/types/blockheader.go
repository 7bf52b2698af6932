package types

import (
	"bytes"

	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
)

type Ticket struct {
	VRFProof []byte
}

func (t *Ticket) Less(o *Ticket) bool {
	return bytes.Compare(t.VRFProof, o.VRFProof) < 0
}

type BlockHeader struct {
	Miner address.Address

	Ticket *Ticket

	Parents []cid.Cid

	ParentWeight BigInt

	Height abi.ChainEpoch

	ParentStateRoot cid.Cid

	// Messages is the root of this block's message set.
	Messages cid.Cid

	Timestamp uint64

	// ParentBaseFee is the base fee at which messages in this block execute.
	// All blocks in a tipset share it.
	ParentBaseFee abi.TokenAmount
}

func (blk *BlockHeader) Cid() cid.Cid {
	return mustCidOf(blk)
}

func (blk *BlockHeader) Serialize() ([]byte, error) {
	return serializeCBOR(blk)
}

func DecodeBlock(b []byte) (*BlockHeader, error) {
	var blk BlockHeader
	if err := blk.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return nil, err
	}

	return &blk, nil
}

func (blk *BlockHeader) LastTicket() *Ticket {
	return blk.Ticket
}

// IsValidShape checks fields every stored header must carry.
func (blk *BlockHeader) IsValidShape() error {
	if blk.Miner == address.Undef {
		return xerrors.New("block header has no miner")
	}
	if blk.ParentBaseFee.Int == nil {
		return xerrors.New("block header has nil parent base fee")
	}
	if blk.ParentBaseFee.Sign() < 0 {
		return xerrors.New("block header has negative parent base fee")
	}
	if blk.Height > 0 && len(blk.Parents) == 0 {
		return xerrors.Errorf("non-genesis block at height %d has no parents", blk.Height)
	}
	return nil
}
