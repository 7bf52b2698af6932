package types

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"strings"

	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"
)

var EmptyTSK = TipSetKey{}

// A TipSetKey is an immutable collection of CIDs forming a unique key for a tipset.
// The CIDs are assumed to be distinct and in canonical order. Two keys with the same
// CIDs in a different order are not considered equal.
// TipSetKey is a lightweight value type, and may be compared for equality with ==.
type TipSetKey struct {
	// Length-prefixed concatenation of the CID bytes, so that the key is
	// usable as a map key. The empty key has value "".
	value string
}

// NewTipSetKey builds a new key from a slice of CIDs.
// The CIDs are assumed to be ordered correctly.
func NewTipSetKey(cids ...cid.Cid) TipSetKey {
	return TipSetKey{string(encodeKey(cids))}
}

// TipSetKeyFromBytes wraps an encoded key, validating correct decoding.
func TipSetKeyFromBytes(encoded []byte) (TipSetKey, error) {
	_, err := decodeKey(encoded)
	if err != nil {
		return EmptyTSK, err
	}
	return TipSetKey{string(encoded)}, nil
}

// Cids returns a slice of the CIDs comprising this key.
func (k TipSetKey) Cids() []cid.Cid {
	cids, err := decodeKey([]byte(k.value))
	if err != nil {
		panic("invalid tipset key: " + err.Error())
	}
	return cids
}

func (k TipSetKey) String() string {
	b := strings.Builder{}
	b.WriteString("{")
	cids := k.Cids()
	for i, c := range cids {
		b.WriteString(c.String())
		if i < len(cids)-1 {
			b.WriteString(",")
		}
	}
	b.WriteString("}")
	return b.String()
}

func (k TipSetKey) Bytes() []byte {
	return []byte(k.value)
}

func (k TipSetKey) IsEmpty() bool {
	return len(k.value) == 0
}

func (k TipSetKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Cids())
}

func (k *TipSetKey) UnmarshalJSON(b []byte) error {
	var cids []cid.Cid
	if err := json.Unmarshal(b, &cids); err != nil {
		return err
	}
	k.value = string(encodeKey(cids))
	return nil
}

func encodeKey(cids []cid.Cid) []byte {
	if len(cids) == 0 {
		return []byte{}
	}
	var buf bytes.Buffer
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(cids)))
	buf.Write(scratch[:])
	for _, c := range cids {
		b := c.Bytes()
		binary.LittleEndian.PutUint32(scratch[:], uint32(len(b)))
		buf.Write(scratch[:])
		buf.Write(b)
	}
	return buf.Bytes()
}

func decodeKey(encoded []byte) ([]cid.Cid, error) {
	if len(encoded) == 0 {
		return []cid.Cid{}, nil
	}

	buffer := bytes.NewReader(encoded)
	var length uint32
	if err := binary.Read(buffer, binary.LittleEndian, &length); err != nil {
		return nil, err
	}

	cids := make([]cid.Cid, 0, length)
	for idx := uint32(0); idx < length; idx++ {
		var l uint32
		if err := binary.Read(buffer, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		buf := make([]byte, l)
		if _, err := buffer.Read(buf); err != nil {
			return nil, err
		}
		blockCid, err := cid.Cast(buf)
		if err != nil {
			return nil, err
		}
		cids = append(cids, blockCid)
	}
	if buffer.Len() != 0 {
		return nil, xerrors.Errorf("%d trailing bytes in tipset key", buffer.Len())
	}
	return cids, nil
}
