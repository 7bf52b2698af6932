package stmgr

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"

	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/chain/types"
)

var log = logging.Logger("statemgr")

var (
	// ErrExpensiveFork is returned for calls at an epoch carrying an expensive
	// state migration; callers step back to the parent tipset.
	ErrExpensiveFork = xerrors.New("refusing explicit call due to state fork at epoch")
	ErrNoInvoker     = xerrors.New("no message invoker configured")
	ErrNoResolver    = xerrors.New("no key address resolver configured")
)

// Invoker applies msg on top of the state of ts, after applying priorMsgs in
// order. A nil receipt means the invocation produced no result.
type Invoker interface {
	Invoke(ctx context.Context, msg *types.Message, priorMsgs []types.ChainMsg, ts *types.TipSet) (*types.MessageReceipt, error)
}

// KeyResolver maps an ID address to the key address of its account actor as
// of ts.
type KeyResolver interface {
	ResolveToKeyAddress(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error)
}

type StateManager struct {
	cs *store.ChainStore

	invoker  Invoker
	resolver KeyResolver

	// A set of potentially expensive/time consuming upgrades. Explicit
	// calls for, e.g., gas estimation fail against this epoch with
	// ErrExpensiveFork.
	expensiveUpgrades map[abi.ChainEpoch]struct{}

	execution *executionEnv
}

type Option func(*StateManager)

// WithExpensiveUpgrades marks epochs at which explicit calls are refused.
func WithExpensiveUpgrades(epochs ...abi.ChainEpoch) Option {
	return func(sm *StateManager) {
		for _, e := range epochs {
			sm.expensiveUpgrades[e] = struct{}{}
		}
	}
}

func WithKeyResolver(r KeyResolver) Option {
	return func(sm *StateManager) {
		sm.resolver = r
	}
}

// WithExecutionLanes bounds the number of concurrent invocations.
func WithExecutionLanes(n int) Option {
	return func(sm *StateManager) {
		sm.execution = newExecutionEnv(n)
	}
}

func NewStateManager(cs *store.ChainStore, invoker Invoker, opts ...Option) *StateManager {
	sm := &StateManager{
		cs:                cs,
		invoker:           invoker,
		expensiveUpgrades: make(map[abi.ChainEpoch]struct{}),
		execution:         newExecutionEnv(DefaultAvailableExecutionLanes),
	}
	for _, o := range opts {
		o(sm)
	}
	return sm
}

func (sm *StateManager) ChainStore() *store.ChainStore {
	return sm.cs
}

func (sm *StateManager) hasExpensiveFork(height abi.ChainEpoch) bool {
	_, ok := sm.expensiveUpgrades[height]
	return ok
}

// ResolveToDeterministicAddress returns a reorg-stable address for addr.
// Key and delegated addresses already are; ID addresses go through the
// configured KeyResolver at ts (the head if nil).
func (sm *StateManager) ResolveToDeterministicAddress(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error) {
	switch addr.Protocol() {
	case address.BLS, address.SECP256K1, address.Delegated:
		return addr, nil
	case address.Actor:
		return address.Undef, xerrors.New("cannot resolve actor address to key address")
	default:
	}

	if sm.resolver == nil {
		return address.Undef, xerrors.Errorf("resolving %s: %w", addr, ErrNoResolver)
	}

	if ts == nil {
		ts = sm.cs.GetHeaviestTipSet()
	}

	resolved, err := sm.resolver.ResolveToKeyAddress(ctx, addr, ts)
	if err != nil {
		return address.Undef, xerrors.Errorf("resolving %s at %s: %w", addr, ts, err)
	}

	return resolved, nil
}
