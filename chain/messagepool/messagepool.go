package messagepool

import (
	"context"
	"errors"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"

	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/metrics"
)

var log = logging.Logger("messagepool")

const RbfDenom = 256

var rbfDenomBig = types.NewInt(RbfDenom)

// keyCacheSize bounds the number of ID to key address mappings kept.
const keyCacheSize = 1024

var (
	ErrMessageTooBig    = errors.New("message too big")
	ErrMessagePoolFull  = errors.New("message pool is full")
	ErrRBFTooLowPremium = errors.New("replace by fee has too low GasPremium")
	ErrInvalidMessage   = errors.New("message is not valid for block inclusion")
	ErrNoKeyResolver    = errors.New("no key address resolver")
)

// Provider is the view of the chain the message pool follows.
type Provider interface {
	SubscribeHeadChanges(store.ReorgNotifee)
	GetHeaviestTipSet() *types.TipSet
	LoadTipSet(context.Context, types.TipSetKey) (*types.TipSet, error)
	MessagesForTipset(context.Context, *types.TipSet) ([]types.ChainMsg, error)
}

// KeyResolver maps an ID address to the key address of its account.
type KeyResolver interface {
	ResolveToDeterministicAddress(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error)
}

// MessagePool holds pending signed messages per sender, keyed by nonce, and
// tracks the tipset they are pending against. Senders are tracked by key
// address, so messages sent from an ID address and from its key address
// share one nonce sequence.
type MessagePool struct {
	lk sync.Mutex

	pending map[address.Address]*msgSet

	currentSize int

	curTsLk sync.RWMutex // DO NOT LOCK INSIDE lk
	curTs   *types.TipSet

	cfgLk  sync.Mutex
	cfg    *types.MpoolConfig
	rbfNum types.BigInt

	blockGasLimit int64

	api Provider

	resolver KeyResolver
	keyCache *lru.Cache[address.Address, address.Address]
}

type msgSet struct {
	msgs      map[uint64]*types.SignedMessage
	nextNonce uint64
}

func newMsgSet() *msgSet {
	return &msgSet{
		msgs: make(map[uint64]*types.SignedMessage),
	}
}

func rbfNumFromRatio(ratio float64) types.BigInt {
	return types.NewInt(uint64((ratio - 1) * RbfDenom))
}

// ComputeMinRBF returns the smallest premium that may replace a pending
// message carrying curPrem.
func ComputeMinRBF(curPrem, rbfNum types.BigInt) types.BigInt {
	minPrice := types.BigAdd(curPrem, types.BigDiv(types.BigMul(curPrem, rbfNum), rbfDenomBig))
	return types.BigAdd(minPrice, types.NewInt(1))
}

func (ms *msgSet) add(m *types.SignedMessage, rbfNum types.BigInt) (bool, error) {
	nextNonce := ms.nextNonce
	if len(ms.msgs) == 0 || m.Message.Nonce >= nextNonce {
		nextNonce = m.Message.Nonce + 1
	}
	exms, has := ms.msgs[m.Message.Nonce]
	if has && m.Cid() != exms.Cid() {
		// check if RBF passes
		minPrice := ComputeMinRBF(exms.Message.GasPremium, rbfNum)
		if types.BigCmp(m.Message.GasPremium, minPrice) >= 0 {
			log.Infow("add with RBF", "oldpremium", exms.Message.GasPremium,
				"newpremium", m.Message.GasPremium, "addr", m.Message.From, "nonce", m.Message.Nonce)
		} else {
			log.Debugf("add with duplicate nonce. message from %s with nonce %d already in mpool,"+
				" increase GasPremium to %s from %s to trigger replace by fee",
				m.Message.From, m.Message.Nonce, minPrice, m.Message.GasPremium)
			return false, xerrors.Errorf("message from %s with nonce %d already in mpool,"+
				" increase GasPremium to %s from %s to trigger replace by fee: %w",
				m.Message.From, m.Message.Nonce, minPrice, m.Message.GasPremium,
				ErrRBFTooLowPremium)
		}
	}

	ms.nextNonce = nextNonce
	ms.msgs[m.Message.Nonce] = m

	return !has, nil
}

// New creates a message pool following the head of api. resolver may be nil,
// in which case messages from ID addresses are refused.
func New(ctx context.Context, api Provider, resolver KeyResolver, cfg *types.MpoolConfig, blockGasLimit int64) (*MessagePool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ReplaceByFeeRatio < 1 {
		return nil, xerrors.Errorf("replace by fee ratio %f must be at least 1", cfg.ReplaceByFeeRatio)
	}

	keycache, _ := lru.New[address.Address, address.Address](keyCacheSize)

	mp := &MessagePool{
		pending:       make(map[address.Address]*msgSet),
		blockGasLimit: blockGasLimit,
		api:           api,
		resolver:      resolver,
		keyCache:      keycache,
	}
	mp.SetConfig(cfg)

	mp.curTsLk.Lock()
	mp.curTs = api.GetHeaviestTipSet()
	mp.curTsLk.Unlock()

	api.SubscribeHeadChanges(func(rev, app []*types.TipSet) error {
		return mp.HeadChange(ctx, rev, app)
	})

	return mp, nil
}

// Add puts a signed message into the pool. A message reusing a pending
// nonce replaces the pending one only if its premium clears the RBF bump.
func (mp *MessagePool) Add(ctx context.Context, m *types.SignedMessage) error {
	if err := m.Message.ValidForBlockInclusion(0, mp.blockGasLimit); err != nil {
		return xerrors.Errorf("message not valid for block inclusion: %s: %w", err, ErrInvalidMessage)
	}

	if m.Size() > 64<<10 {
		return xerrors.Errorf("mpool message too large (%dB): %w", m.Size(), ErrMessageTooBig)
	}

	from, err := mp.resolveToKey(ctx, m.Message.From, mp.currentTipSet())
	if err != nil {
		return xerrors.Errorf("failed to resolve sender: %w", err)
	}

	mp.lk.Lock()
	defer mp.lk.Unlock()

	return mp.addLocked(ctx, from, m)
}

// resolveToKey returns the key address pending messages of addr are kept
// under. Only ID addresses need resolving.
func (mp *MessagePool) resolveToKey(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error) {
	if addr.Protocol() != address.ID {
		return addr, nil
	}

	if ka, ok := mp.keyCache.Get(addr); ok {
		return ka, nil
	}

	if mp.resolver == nil {
		return address.Undef, xerrors.Errorf("resolving %s: %w", addr, ErrNoKeyResolver)
	}

	ka, err := mp.resolver.ResolveToDeterministicAddress(ctx, addr, ts)
	if err != nil {
		return address.Undef, err
	}

	mp.keyCache.Add(addr, ka)
	return ka, nil
}

// keyFor is resolveToKey for lookups: an address that cannot be resolved
// is used as is.
func (mp *MessagePool) keyFor(ctx context.Context, addr address.Address, ts *types.TipSet) address.Address {
	ka, err := mp.resolveToKey(ctx, addr, ts)
	if err != nil {
		log.Debugw("sender not resolved to key address", "addr", addr, "error", err)
		return addr
	}
	return ka
}

func (mp *MessagePool) addLocked(ctx context.Context, from address.Address, m *types.SignedMessage) error {
	log.Debugf("mpooladd: %s %d", from, m.Message.Nonce)

	cfg := mp.GetConfig()
	mp.cfgLk.Lock()
	rbfNum := mp.rbfNum
	mp.cfgLk.Unlock()

	mset, ok := mp.pending[from]
	if !ok {
		mset = newMsgSet()
	}

	if _, replacing := mset.msgs[m.Message.Nonce]; !replacing && mp.currentSize >= cfg.SizeLimitHigh {
		return xerrors.Errorf("%d messages pending: %w", mp.currentSize, ErrMessagePoolFull)
	}

	incr, err := mset.add(m, rbfNum)
	if err != nil {
		return err
	}
	mp.pending[from] = mset

	if incr {
		mp.currentSize++
		stats.Record(ctx, metrics.MpoolMessageCount.M(int64(mp.currentSize)))
	}

	return nil
}

func (mp *MessagePool) Remove(ctx context.Context, from address.Address, nonce uint64) {
	from = mp.keyFor(ctx, from, mp.currentTipSet())

	mp.lk.Lock()
	defer mp.lk.Unlock()

	mp.remove(ctx, from, nonce)
}

func (mp *MessagePool) remove(ctx context.Context, from address.Address, nonce uint64) {
	mset, ok := mp.pending[from]
	if !ok {
		return
	}

	if _, ok := mset.msgs[nonce]; ok {
		mp.currentSize--
		stats.Record(ctx, metrics.MpoolMessageCount.M(int64(mp.currentSize)))
	}

	// NB: This deletes any message with the given nonce. This makes sense
	// as two messages with the same sender cannot have the same nonce
	delete(mset.msgs, nonce)

	if len(mset.msgs) == 0 {
		delete(mp.pending, from)
	} else {
		var max uint64
		for nonce := range mset.msgs {
			if max < nonce {
				max = nonce
			}
		}
		if max < nonce {
			max = nonce // we could have not seen the removed message before
		}

		mset.nextNonce = max + 1
	}
}

// GetNonce returns the next nonce the sender should use given what is
// pending. Senders with nothing pending report 0.
func (mp *MessagePool) GetNonce(ctx context.Context, addr address.Address) uint64 {
	addr = mp.keyFor(ctx, addr, mp.currentTipSet())

	mp.lk.Lock()
	defer mp.lk.Unlock()

	mset, ok := mp.pending[addr]
	if !ok {
		return 0
	}
	return mset.nextNonce
}

func (mp *MessagePool) Pending(_ context.Context) ([]*types.SignedMessage, *types.TipSet) {
	curTs := mp.currentTipSet()

	mp.lk.Lock()
	defer mp.lk.Unlock()

	out := make([]*types.SignedMessage, 0, mp.currentSize)
	for a := range mp.pending {
		out = append(out, mp.pendingFor(a)...)
	}

	return out, curTs
}

// PendingFor returns the sender's pending messages in nonce order, together
// with the tipset the pool is currently based on (nil before the first head).
// a may be the ID or the key address of the sender.
func (mp *MessagePool) PendingFor(ctx context.Context, a address.Address) ([]*types.SignedMessage, *types.TipSet) {
	curTs := mp.currentTipSet()
	a = mp.keyFor(ctx, a, curTs)

	mp.lk.Lock()
	defer mp.lk.Unlock()
	return mp.pendingFor(a), curTs
}

func (mp *MessagePool) currentTipSet() *types.TipSet {
	mp.curTsLk.RLock()
	defer mp.curTsLk.RUnlock()
	return mp.curTs
}

func (mp *MessagePool) pendingFor(a address.Address) []*types.SignedMessage {
	mset := mp.pending[a]
	if mset == nil || len(mset.msgs) == 0 {
		return nil
	}

	set := make([]*types.SignedMessage, 0, len(mset.msgs))

	for _, m := range mset.msgs {
		set = append(set, m)
	}

	sort.Slice(set, func(i, j int) bool {
		return set[i].Message.Nonce < set[j].Message.Nonce
	})

	return set
}

// HeadChange moves the pool to the new head. Signed messages of reverted
// tipsets go back into the pool unless they are applied again; messages of
// applied tipsets leave it.
func (mp *MessagePool) HeadChange(ctx context.Context, revert []*types.TipSet, apply []*types.TipSet) error {
	mp.curTsLk.Lock()
	defer mp.curTsLk.Unlock()

	rmsgs := make(map[address.Address]map[uint64]*types.SignedMessage)
	add := func(m *types.SignedMessage) {
		from := mp.keyFor(ctx, m.Message.From, mp.curTs)
		s, ok := rmsgs[from]
		if !ok {
			s = make(map[uint64]*types.SignedMessage)
			rmsgs[from] = s
		}
		s[m.Message.Nonce] = m
	}
	rm := func(from address.Address, nonce uint64) {
		from = mp.keyFor(ctx, from, mp.curTs)
		s, ok := rmsgs[from]
		if ok {
			if _, ok := s[nonce]; ok {
				delete(s, nonce)
				return
			}
		}

		mp.lk.Lock()
		mp.remove(ctx, from, nonce)
		mp.lk.Unlock()
	}

	var merr error

	for _, ts := range revert {
		pts, err := mp.api.LoadTipSet(ctx, ts.Parents())
		if err != nil {
			log.Errorf("error loading reverted tipset parent: %s", err)
			merr = errors.Join(merr, err)
			continue
		}

		mp.curTs = pts

		msgs, err := mp.api.MessagesForTipset(ctx, ts)
		if err != nil {
			log.Errorf("error retrieving messages for reverted tipset: %s", err)
			merr = errors.Join(merr, err)
			continue
		}

		for _, msg := range msgs {
			if sm, ok := msg.(*types.SignedMessage); ok {
				add(sm)
			}
		}
	}

	for _, ts := range apply {
		mp.curTs = ts

		msgs, err := mp.api.MessagesForTipset(ctx, ts)
		if err != nil {
			log.Errorf("error retrieving messages for applied tipset: %s", err)
			merr = errors.Join(merr, err)
			continue
		}

		for _, msg := range msgs {
			m := msg.VMMessage()
			rm(m.From, m.Nonce)
		}
	}

	mp.lk.Lock()
	defer mp.lk.Unlock()
	for from, s := range rmsgs {
		for _, m := range s {
			if err := mp.addLocked(ctx, from, m); err != nil {
				log.Warnw("failed to readd reverted message", "cid", m.Cid(), "error", err)
			}
		}
	}

	return merr
}
