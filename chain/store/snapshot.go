package store

import (
	"bufio"
	"context"
	"io"

	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/chain/types"
)

// ExportHeader opens a chain export stream; Roots is the exported head.
type ExportHeader struct {
	Roots   []cid.Cid
	Version uint64
}

// ExportEntry is one block of a chain export together with its messages.
type ExportEntry struct {
	Block    *types.BlockHeader
	Messages *BlockMessages
}

const exportVersion = 1

// Export writes ts and all of its ancestors as a stream of CBOR values: an
// ExportHeader followed by one ExportEntry per block.
func (cs *ChainStore) Export(ctx context.Context, ts *types.TipSet, w io.Writer) error {
	if ts == nil {
		ts = cs.GetHeaviestTipSet()
	}
	if ts == nil {
		return xerrors.Errorf("nothing to export: no head")
	}

	if err := (&ExportHeader{Roots: ts.Cids(), Version: exportVersion}).MarshalCBOR(w); err != nil {
		return xerrors.Errorf("failed to write export header: %w", err)
	}

	seen := cid.NewSet()
	blocksToWalk := ts.Cids()

	for len(blocksToWalk) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		next := blocksToWalk[0]
		blocksToWalk = blocksToWalk[1:]
		if !seen.Visit(next) {
			continue
		}

		b, err := cs.GetBlock(ctx, next)
		if err != nil {
			return xerrors.Errorf("getting block %s: %w", next, err)
		}

		bms, sms, err := cs.MessagesForBlock(ctx, b)
		if err != nil {
			return xerrors.Errorf("walk chain failed: %w", err)
		}

		ent := &ExportEntry{
			Block:    b,
			Messages: &BlockMessages{BlsMessages: bms, SecpkMessages: sms},
		}
		if err := ent.MarshalCBOR(w); err != nil {
			return xerrors.Errorf("failed to write block %s: %w", next, err)
		}

		blocksToWalk = append(blocksToWalk, b.Parents...)
	}

	return nil
}

// Import reads a stream produced by Export and returns its root tipset. The
// head is left untouched.
func (cs *ChainStore) Import(ctx context.Context, r io.Reader) (*types.TipSet, error) {
	br := bufio.NewReader(r)

	var hdr ExportHeader
	if err := hdr.UnmarshalCBOR(br); err != nil {
		return nil, xerrors.Errorf("reading export header: %w", err)
	}
	if hdr.Version != exportVersion {
		return nil, xerrors.Errorf("unsupported export version %d", hdr.Version)
	}
	if len(hdr.Roots) == 0 {
		return nil, xerrors.Errorf("export has no roots")
	}

	var imported int
	for {
		var ent ExportEntry
		err := ent.UnmarshalCBOR(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("reading entry %d: %w", imported, err)
		}
		if ent.Block == nil {
			return nil, xerrors.Errorf("entry %d has no block", imported)
		}

		if err := cs.PersistBlockHeaders(ctx, ent.Block); err != nil {
			return nil, err
		}

		bm := ent.Messages
		if bm == nil {
			bm = &BlockMessages{}
		}
		if err := cs.PutBlockMessages(ctx, ent.Block.Cid(), bm); err != nil {
			return nil, err
		}
		imported++
	}

	log.Infow("imported chain", "blocks", imported, "roots", hdr.Roots)

	root, err := cs.LoadTipSet(ctx, types.NewTipSetKey(hdr.Roots...))
	if err != nil {
		return nil, xerrors.Errorf("failed to load root tipset from chainfile: %w", err)
	}

	return root, nil
}
