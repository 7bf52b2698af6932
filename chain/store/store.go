package store

import (
	"context"
	"encoding/json"
	"sync"

	arc "github.com/hashicorp/golang-lru/arc/v2"
	"github.com/ipfs/go-cid"
	dstore "github.com/ipfs/go-datastore"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/metrics"
)

var log = logging.Logger("chainstore")

var (
	chainHeadKey    = dstore.NewKey("head")
	blockPrefix     = dstore.NewKey("blocks")
	blockMsgsPrefix = dstore.NewKey("blockmsgs")
)

const DefaultTipSetCacheSize = 8192

// ReorgNotifee represents a callback that gets called upon reorgs.
type ReorgNotifee func(rev, app []*types.TipSet) error

// ChainStore is the main point of access to chain data.
//
// Block headers and per-block message sets are kept in the datastore as CBOR,
// the head tipset key as a JSON list of cids. Loaded tipsets are kept in an
// ARC cache.
type ChainStore struct {
	ds dstore.Batching

	heaviestLk sync.RWMutex
	heaviest   *types.TipSet

	notifeesLk sync.Mutex
	notifees   []ReorgNotifee

	tsCache *arc.ARCCache[types.TipSetKey, *types.TipSet]
}

func NewChainStore(ds dstore.Batching, tsCacheSize int) (*ChainStore, error) {
	if tsCacheSize <= 0 {
		tsCacheSize = DefaultTipSetCacheSize
	}
	tsc, err := arc.NewARC[types.TipSetKey, *types.TipSet](tsCacheSize)
	if err != nil {
		return nil, xerrors.Errorf("creating tipset cache: %w", err)
	}

	return &ChainStore{
		ds:      ds,
		tsCache: tsc,
	}, nil
}

// Load restores the head from the datastore, if one was written before.
func (cs *ChainStore) Load(ctx context.Context) error {
	head, err := cs.ds.Get(ctx, chainHeadKey)
	if err == dstore.ErrNotFound {
		log.Warn("no previous chain state found")
		return nil
	}
	if err != nil {
		return xerrors.Errorf("failed to load chain state from datastore: %w", err)
	}

	var tscids []cid.Cid
	if err := json.Unmarshal(head, &tscids); err != nil {
		return xerrors.Errorf("failed to unmarshal stored chain head: %w", err)
	}

	ts, err := cs.LoadTipSet(ctx, types.NewTipSetKey(tscids...))
	if err != nil {
		return xerrors.Errorf("loading tipset: %w", err)
	}

	cs.heaviestLk.Lock()
	cs.heaviest = ts
	cs.heaviestLk.Unlock()

	return nil
}

func (cs *ChainStore) writeHead(ctx context.Context, ts *types.TipSet) error {
	data, err := json.Marshal(ts.Cids())
	if err != nil {
		return xerrors.Errorf("failed to marshal tipset: %w", err)
	}

	if err := cs.ds.Put(ctx, chainHeadKey, data); err != nil {
		return xerrors.Errorf("failed to write chain head to datastore: %w", err)
	}

	return nil
}

func (cs *ChainStore) SubscribeHeadChanges(f ReorgNotifee) {
	cs.notifeesLk.Lock()
	defer cs.notifeesLk.Unlock()
	cs.notifees = append(cs.notifees, f)
}

// PutTipSet persists the headers of a tipset. It does not move the head.
func (cs *ChainStore) PutTipSet(ctx context.Context, ts *types.TipSet) error {
	return cs.PersistBlockHeaders(ctx, ts.Blocks()...)
}

func (cs *ChainStore) PersistBlockHeaders(ctx context.Context, b ...*types.BlockHeader) error {
	batch, err := cs.ds.Batch(ctx)
	if err != nil {
		return xerrors.Errorf("creating batch: %w", err)
	}

	for _, bh := range b {
		data, err := bh.Serialize()
		if err != nil {
			return xerrors.Errorf("serializing block %s: %w", bh.Cid(), err)
		}
		if err := batch.Put(ctx, blockKey(bh.Cid()), data); err != nil {
			return xerrors.Errorf("putting block %s: %w", bh.Cid(), err)
		}
	}

	return batch.Commit(ctx)
}

// SetHead sets the chainstore's current 'best' head node and notifies
// subscribers with the tipsets that were reverted (highest first) and applied
// (lowest first).
func (cs *ChainStore) SetHead(ctx context.Context, ts *types.TipSet) error {
	cs.heaviestLk.Lock()
	old := cs.heaviest
	if err := cs.writeHead(ctx, ts); err != nil {
		cs.heaviestLk.Unlock()
		return err
	}
	cs.heaviest = ts
	cs.heaviestLk.Unlock()

	log.Infow("new head", "tipset", ts.Cids(), "height", ts.Height())
	stats.Record(ctx, metrics.ChainNodeHeight.M(int64(ts.Height())))

	var rev, app []*types.TipSet
	if old == nil {
		app = []*types.TipSet{ts}
	} else {
		var err error
		rev, app, err = cs.ReorgOps(ctx, old, ts)
		if err != nil {
			log.Warnw("computing reorg path failed, notifying head only", "error", err)
			rev, app = []*types.TipSet{old}, []*types.TipSet{ts}
		}
	}

	// apply is delivered lowest first
	for i, j := 0, len(app)-1; i < j; i, j = i+1, j-1 {
		app[i], app[j] = app[j], app[i]
	}

	cs.notifeesLk.Lock()
	notifees := append([]ReorgNotifee(nil), cs.notifees...)
	cs.notifeesLk.Unlock()

	for _, hcf := range notifees {
		if err := hcf(rev, app); err != nil {
			log.Errorw("head change func errored", "error", err)
		}
	}

	return nil
}

// GetBlock fetches a BlockHeader with the supplied CID. It returns
// datastore.ErrNotFound if the block is not stored.
func (cs *ChainStore) GetBlock(ctx context.Context, c cid.Cid) (*types.BlockHeader, error) {
	data, err := cs.ds.Get(ctx, blockKey(c))
	if err != nil {
		return nil, err
	}

	bh, err := types.DecodeBlock(data)
	if err != nil {
		return nil, xerrors.Errorf("decoding block %s: %w", c, err)
	}

	if bh.Cid() != c {
		return nil, xerrors.Errorf("block %s decoded with mismatching cid %s", c, bh.Cid())
	}

	return bh, nil
}

func (cs *ChainStore) LoadTipSet(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error) {
	if ts, ok := cs.tsCache.Get(tsk); ok {
		return ts, nil
	}

	if tsk.IsEmpty() {
		return nil, xerrors.Errorf("cannot load empty tipset key")
	}

	var blks []*types.BlockHeader
	for _, c := range tsk.Cids() {
		b, err := cs.GetBlock(ctx, c)
		if err != nil {
			return nil, xerrors.Errorf("get block %s: %w", c, err)
		}

		blks = append(blks, b)
	}

	ts, err := types.NewTipSet(blks)
	if err != nil {
		return nil, err
	}

	cs.tsCache.Add(tsk, ts)

	return ts, nil
}

// ReorgOps returns the tipsets to revert from a and to apply towards b, both
// ordered from the tip downwards.
func (cs *ChainStore) ReorgOps(ctx context.Context, a, b *types.TipSet) ([]*types.TipSet, []*types.TipSet, error) {
	left := a
	right := b

	var leftChain, rightChain []*types.TipSet
	for !left.Equals(right) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if left.Height() > right.Height() {
			leftChain = append(leftChain, left)
			par, err := cs.LoadTipSet(ctx, left.Parents())
			if err != nil {
				return nil, nil, err
			}

			left = par
		} else {
			rightChain = append(rightChain, right)
			par, err := cs.LoadTipSet(ctx, right.Parents())
			if err != nil {
				log.Infof("failed to fetch right.Parents: %s", err)
				return nil, nil, err
			}

			right = par
		}
	}

	return leftChain, rightChain, nil
}

// GetHeaviestTipSet returns the current heaviest tipset known (i.e. our head).
func (cs *ChainStore) GetHeaviestTipSet() *types.TipSet {
	cs.heaviestLk.RLock()
	defer cs.heaviestLk.RUnlock()
	return cs.heaviest
}

// GetTipSetFromKey loads the tipset for tsk; an empty key means the head.
func (cs *ChainStore) GetTipSetFromKey(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error) {
	if tsk.IsEmpty() {
		ts := cs.GetHeaviestTipSet()
		if ts == nil {
			return nil, xerrors.Errorf("no heaviest tipset")
		}
		return ts, nil
	}
	return cs.LoadTipSet(ctx, tsk)
}

func blockKey(c cid.Cid) dstore.Key {
	return blockPrefix.ChildString(c.String())
}

func blockMsgsKey(c cid.Cid) dstore.Key {
	return blockMsgsPrefix.ChildString(c.String())
}
