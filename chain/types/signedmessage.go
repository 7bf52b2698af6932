package types

import (
	"bytes"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-state-types/crypto"
)

type SignedMessage struct {
	Message   Message
	Signature crypto.Signature
}

// Cid of a BLS message is the cid of the unsigned message; BLS signatures are
// aggregated at the block level.
func (sm *SignedMessage) Cid() cid.Cid {
	if sm.Signature.Type == crypto.SigTypeBLS {
		return sm.Message.Cid()
	}

	return mustCidOf(sm)
}

func (sm *SignedMessage) VMMessage() *Message {
	return &sm.Message
}

func (sm *SignedMessage) Serialize() ([]byte, error) {
	return serializeCBOR(sm)
}

func DecodeSignedMessage(data []byte) (*SignedMessage, error) {
	var msg SignedMessage
	if err := msg.UnmarshalCBOR(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &msg, nil
}

func (sm *SignedMessage) Size() int {
	serdata, err := sm.Serialize()
	if err != nil {
		log.Errorf("serializing message failed: %s", err)
		return 0
	}

	return len(serdata)
}

var _ ChainMsg = &SignedMessage{}
