package full

import "github.com/filecoin-project/lotus-gasest/api"

// NodeAPI is the API served by a gas estimation node.
type NodeAPI struct {
	GasModule
	MpoolModule
}

var _ api.Gas = &NodeAPI{}
