package types

import (
	"bytes"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-multihash"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Objects are addressed by a blake2b-256 CID of their DAG-CBOR encoding.
var cidBuilder = cid.V1Builder{Codec: uint64(multicodec.DagCbor), MhType: multihash.BLAKE2B_MIN + 31}

func serializeCBOR(v cbg.CBORMarshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := v.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mustCidOf(v cbg.CBORMarshaler) cid.Cid {
	data, err := serializeCBOR(v)
	if err != nil {
		panic(err)
	}
	c, err := cidBuilder.Sum(data)
	if err != nil {
		panic(err)
	}
	return c
}
