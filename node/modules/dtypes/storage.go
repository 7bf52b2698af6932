package dtypes

import (
	"github.com/ipfs/go-datastore"
)

// MetadataDS stores chain headers, block messages and the head pointer.
// By default it's the repo's leveldb datastore.
type MetadataDS datastore.Batching
