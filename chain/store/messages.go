package store

import (
	"bytes"
	"context"

	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/chain/types"
)

// BlockMessages holds the messages a block includes, unsigned (BLS) ones
// first, in block order.
type BlockMessages struct {
	BlsMessages   []*types.Message
	SecpkMessages []*types.SignedMessage
}

func (bm *BlockMessages) chainMsgs() []types.ChainMsg {
	out := make([]types.ChainMsg, 0, len(bm.BlsMessages)+len(bm.SecpkMessages))
	for _, m := range bm.BlsMessages {
		out = append(out, m)
	}
	for _, sm := range bm.SecpkMessages {
		out = append(out, sm)
	}
	return out
}

// PutBlockMessages stores the message set of the block with the given cid.
func (cs *ChainStore) PutBlockMessages(ctx context.Context, blk cid.Cid, bm *BlockMessages) error {
	buf := new(bytes.Buffer)
	if err := bm.MarshalCBOR(buf); err != nil {
		return xerrors.Errorf("serializing block messages: %w", err)
	}
	if err := cs.ds.Put(ctx, blockMsgsKey(blk), buf.Bytes()); err != nil {
		return xerrors.Errorf("putting messages of block %s: %w", blk, err)
	}
	return nil
}

func (cs *ChainStore) MessagesForBlock(ctx context.Context, b *types.BlockHeader) ([]*types.Message, []*types.SignedMessage, error) {
	data, err := cs.ds.Get(ctx, blockMsgsKey(b.Cid()))
	if err != nil {
		return nil, nil, xerrors.Errorf("loading messages of block %s: %w", b.Cid(), err)
	}

	var bm BlockMessages
	if err := bm.UnmarshalCBOR(bytes.NewReader(data)); err != nil {
		return nil, nil, xerrors.Errorf("decoding messages of block %s: %w", b.Cid(), err)
	}

	return bm.BlsMessages, bm.SecpkMessages, nil
}

// MessagesForTipset returns the messages of all blocks of ts in block order.
// A message included by more than one block is returned once, at its first
// occurrence.
func (cs *ChainStore) MessagesForTipset(ctx context.Context, ts *types.TipSet) ([]types.ChainMsg, error) {
	seen := make(map[cid.Cid]struct{})

	var out []types.ChainMsg
	for _, b := range ts.Blocks() {
		bms, sms, err := cs.MessagesForBlock(ctx, b)
		if err != nil {
			return nil, xerrors.Errorf("failed to get messages for block: %w", err)
		}

		bm := BlockMessages{BlsMessages: bms, SecpkMessages: sms}
		for _, cm := range bm.chainMsgs() {
			c := cm.Cid()
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}

			out = append(out, cm)
		}
	}

	return out, nil
}
