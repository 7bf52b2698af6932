package store

import (
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/chain/types"
)

// blockMessageLimit bounds each message list of a decoded block.
const blockMessageLimit = 10000

var lengthBufBlockMessages = []byte{130}

func (t *BlockMessages) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}

	cw := cbg.NewCborWriter(w)

	if _, err := cw.Write(lengthBufBlockMessages); err != nil {
		return err
	}

	// t.BlsMessages ([]*types.Message) (slice)
	if len(t.BlsMessages) > blockMessageLimit {
		return xerrors.Errorf("Slice value in field t.BlsMessages was too long")
	}

	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(t.BlsMessages))); err != nil {
		return err
	}
	for _, v := range t.BlsMessages {
		if err := v.MarshalCBOR(cw); err != nil {
			return err
		}
	}

	// t.SecpkMessages ([]*types.SignedMessage) (slice)
	if len(t.SecpkMessages) > blockMessageLimit {
		return xerrors.Errorf("Slice value in field t.SecpkMessages was too long")
	}

	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(t.SecpkMessages))); err != nil {
		return err
	}
	for _, v := range t.SecpkMessages {
		if err := v.MarshalCBOR(cw); err != nil {
			return err
		}
	}
	return nil
}

func (t *BlockMessages) UnmarshalCBOR(r io.Reader) (err error) {
	*t = BlockMessages{}

	cr := cbg.NewCborReader(r)

	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	defer func() {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
	}()

	if maj != cbg.MajArray {
		return fmt.Errorf("cbor input should be of type array")
	}

	if extra != 2 {
		return fmt.Errorf("cbor input had wrong number of fields")
	}

	// t.BlsMessages ([]*types.Message) (slice)
	n, err := readArrayLen(cr, blockMessageLimit)
	if err != nil {
		return xerrors.Errorf("t.BlsMessages: %w", err)
	}
	if n > 0 {
		t.BlsMessages = make([]*types.Message, n)
	}
	for i := range t.BlsMessages {
		t.BlsMessages[i] = new(types.Message)
		if err := t.BlsMessages[i].UnmarshalCBOR(cr); err != nil {
			return xerrors.Errorf("unmarshaling t.BlsMessages[%d]: %w", i, err)
		}
	}

	// t.SecpkMessages ([]*types.SignedMessage) (slice)
	n, err = readArrayLen(cr, blockMessageLimit)
	if err != nil {
		return xerrors.Errorf("t.SecpkMessages: %w", err)
	}
	if n > 0 {
		t.SecpkMessages = make([]*types.SignedMessage, n)
	}
	for i := range t.SecpkMessages {
		t.SecpkMessages[i] = new(types.SignedMessage)
		if err := t.SecpkMessages[i].UnmarshalCBOR(cr); err != nil {
			return xerrors.Errorf("unmarshaling t.SecpkMessages[%d]: %w", i, err)
		}
	}

	return nil
}

var lengthBufExportHeader = []byte{130}

func (t *ExportHeader) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}

	cw := cbg.NewCborWriter(w)

	if _, err := cw.Write(lengthBufExportHeader); err != nil {
		return err
	}

	// t.Roots ([]cid.Cid) (slice)
	if len(t.Roots) > cbg.MaxLength {
		return xerrors.Errorf("Slice value in field t.Roots was too long")
	}

	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(t.Roots))); err != nil {
		return err
	}
	for _, v := range t.Roots {
		if err := cbg.WriteCid(cw, v); err != nil {
			return xerrors.Errorf("failed to write cid field v: %w", err)
		}
	}

	// t.Version (uint64) (uint64)
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, t.Version); err != nil {
		return err
	}
	return nil
}

func (t *ExportHeader) UnmarshalCBOR(r io.Reader) (err error) {
	*t = ExportHeader{}

	cr := cbg.NewCborReader(r)

	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	defer func() {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
	}()

	if maj != cbg.MajArray {
		return fmt.Errorf("cbor input should be of type array")
	}

	if extra != 2 {
		return fmt.Errorf("cbor input had wrong number of fields")
	}

	n, err := readArrayLen(cr, cbg.MaxLength)
	if err != nil {
		return xerrors.Errorf("t.Roots: %w", err)
	}
	if n > 0 {
		t.Roots = make([]cid.Cid, n)
	}
	for i := range t.Roots {
		if t.Roots[i], err = cbg.ReadCid(cr); err != nil {
			return xerrors.Errorf("failed to read cid field t.Roots[%d]: %w", i, err)
		}
	}

	maj, extra, err = cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajUnsignedInt {
		return fmt.Errorf("wrong type for uint64 field")
	}
	t.Version = extra

	return nil
}

var lengthBufExportEntry = []byte{130}

func (t *ExportEntry) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}

	cw := cbg.NewCborWriter(w)

	if _, err := cw.Write(lengthBufExportEntry); err != nil {
		return err
	}

	// t.Block (types.BlockHeader) (struct)
	if err := t.Block.MarshalCBOR(cw); err != nil {
		return err
	}

	// t.Messages (store.BlockMessages) (struct)
	if err := t.Messages.MarshalCBOR(cw); err != nil {
		return err
	}
	return nil
}

func (t *ExportEntry) UnmarshalCBOR(r io.Reader) (err error) {
	*t = ExportEntry{}

	cr := cbg.NewCborReader(r)

	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	defer func() {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
	}()

	if maj != cbg.MajArray {
		return fmt.Errorf("cbor input should be of type array")
	}

	if extra != 2 {
		return fmt.Errorf("cbor input had wrong number of fields")
	}

	// t.Block (types.BlockHeader) (struct)
	{
		b, err := cr.ReadByte()
		if err != nil {
			return err
		}
		if b != cbg.CborNull[0] {
			if err := cr.UnreadByte(); err != nil {
				return err
			}
			t.Block = new(types.BlockHeader)
			if err := t.Block.UnmarshalCBOR(cr); err != nil {
				return xerrors.Errorf("unmarshaling t.Block pointer: %w", err)
			}
		}
	}

	// t.Messages (store.BlockMessages) (struct)
	{
		b, err := cr.ReadByte()
		if err != nil {
			return err
		}
		if b != cbg.CborNull[0] {
			if err := cr.UnreadByte(); err != nil {
				return err
			}
			t.Messages = new(BlockMessages)
			if err := t.Messages.UnmarshalCBOR(cr); err != nil {
				return xerrors.Errorf("unmarshaling t.Messages pointer: %w", err)
			}
		}
	}

	return nil
}

func readArrayLen(cr *cbg.CborReader, limit uint64) (uint64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	if extra > limit {
		return 0, fmt.Errorf("array too large (%d)", extra)
	}
	if maj != cbg.MajArray {
		return 0, fmt.Errorf("expected cbor array")
	}
	return extra, nil
}
