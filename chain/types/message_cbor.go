package types

import (
	"fmt"
	"io"

	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-state-types/abi"
)

// CBOR serde for the chain message types. The field order is the canonical
// Filecoin tuple encoding, so message CIDs match the ones computed by nodes.

var lengthBufMessage = []byte{138}

func (t *Message) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}

	cw := cbg.NewCborWriter(w)

	if _, err := cw.Write(lengthBufMessage); err != nil {
		return err
	}

	// t.Version (uint64) (uint64)
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, t.Version); err != nil {
		return err
	}

	// t.To (address.Address) (struct)
	if err := t.To.MarshalCBOR(cw); err != nil {
		return err
	}

	// t.From (address.Address) (struct)
	if err := t.From.MarshalCBOR(cw); err != nil {
		return err
	}

	// t.Nonce (uint64) (uint64)
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, t.Nonce); err != nil {
		return err
	}

	// t.Value (big.Int) (struct)
	if err := t.Value.MarshalCBOR(cw); err != nil {
		return err
	}

	// t.GasLimit (int64) (int64)
	if err := writeInt64(cw, t.GasLimit); err != nil {
		return err
	}

	// t.GasFeeCap (big.Int) (struct)
	if err := t.GasFeeCap.MarshalCBOR(cw); err != nil {
		return err
	}

	// t.GasPremium (big.Int) (struct)
	if err := t.GasPremium.MarshalCBOR(cw); err != nil {
		return err
	}

	// t.Method (abi.MethodNum) (uint64)
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(t.Method)); err != nil {
		return err
	}

	// t.Params ([]uint8) (slice)
	if len(t.Params) > cbg.ByteArrayMaxLen {
		return xerrors.Errorf("Byte array in field t.Params was too long")
	}

	if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(len(t.Params))); err != nil {
		return err
	}

	if _, err := cw.Write(t.Params); err != nil {
		return err
	}

	return nil
}

func (t *Message) UnmarshalCBOR(r io.Reader) (err error) {
	*t = Message{}

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

	if extra != 10 {
		return fmt.Errorf("cbor input had wrong number of fields")
	}

	if t.Version, err = readUint64(cr); err != nil {
		return xerrors.Errorf("t.Version: %w", err)
	}
	if err := t.To.UnmarshalCBOR(cr); err != nil {
		return xerrors.Errorf("unmarshaling t.To: %w", err)
	}
	if err := t.From.UnmarshalCBOR(cr); err != nil {
		return xerrors.Errorf("unmarshaling t.From: %w", err)
	}
	if t.Nonce, err = readUint64(cr); err != nil {
		return xerrors.Errorf("t.Nonce: %w", err)
	}
	if err := t.Value.UnmarshalCBOR(cr); err != nil {
		return xerrors.Errorf("unmarshaling t.Value: %w", err)
	}
	if t.GasLimit, err = readInt64(cr); err != nil {
		return xerrors.Errorf("t.GasLimit: %w", err)
	}
	if err := t.GasFeeCap.UnmarshalCBOR(cr); err != nil {
		return xerrors.Errorf("unmarshaling t.GasFeeCap: %w", err)
	}
	if err := t.GasPremium.UnmarshalCBOR(cr); err != nil {
		return xerrors.Errorf("unmarshaling t.GasPremium: %w", err)
	}

	method, err := readUint64(cr)
	if err != nil {
		return xerrors.Errorf("t.Method: %w", err)
	}
	t.Method = abi.MethodNum(method)

	if t.Params, err = readBytes(cr); err != nil {
		return xerrors.Errorf("t.Params: %w", err)
	}

	return nil
}

var lengthBufSignedMessage = []byte{130}

func (t *SignedMessage) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}

	cw := cbg.NewCborWriter(w)

	if _, err := cw.Write(lengthBufSignedMessage); err != nil {
		return err
	}

	// t.Message (types.Message) (struct)
	if err := t.Message.MarshalCBOR(cw); err != nil {
		return err
	}

	// t.Signature (crypto.Signature) (struct)
	if err := t.Signature.MarshalCBOR(cw); err != nil {
		return err
	}
	return nil
}

func (t *SignedMessage) UnmarshalCBOR(r io.Reader) (err error) {
	*t = SignedMessage{}

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

	if err := t.Message.UnmarshalCBOR(cr); err != nil {
		return xerrors.Errorf("unmarshaling t.Message: %w", err)
	}
	if err := t.Signature.UnmarshalCBOR(cr); err != nil {
		return xerrors.Errorf("unmarshaling t.Signature: %w", err)
	}

	return nil
}

func writeInt64(cw *cbg.CborWriter, v int64) error {
	if v >= 0 {
		return cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(v))
	}
	return cw.WriteMajorTypeHeader(cbg.MajNegativeInt, uint64(-v-1))
}

func readInt64(cr *cbg.CborReader) (int64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	extraI := int64(extra)
	switch maj {
	case cbg.MajUnsignedInt:
		if extraI < 0 {
			return 0, fmt.Errorf("int64 positive overflow")
		}
		return extraI, nil
	case cbg.MajNegativeInt:
		if extraI < 0 {
			return 0, fmt.Errorf("int64 negative overflow")
		}
		return -1 - extraI, nil
	default:
		return 0, fmt.Errorf("wrong type for int64 field: %d", maj)
	}
}

func readUint64(cr *cbg.CborReader) (uint64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	if maj != cbg.MajUnsignedInt {
		return 0, fmt.Errorf("wrong type for uint64 field")
	}
	return extra, nil
}

// readBytes reads a byte string; an empty one decodes as nil.
func readBytes(cr *cbg.CborReader) ([]byte, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return nil, err
	}
	if extra > cbg.ByteArrayMaxLen {
		return nil, fmt.Errorf("byte array too large (%d)", extra)
	}
	if maj != cbg.MajByteString {
		return nil, fmt.Errorf("expected byte array")
	}
	if extra == 0 {
		return nil, nil
	}

	buf := make([]byte, extra)
	if _, err := io.ReadFull(cr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
