package repo

import (
	"context"
	"sync"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"

	"github.com/filecoin-project/lotus-gasest/node/config"
)

type MemRepo struct {
	api struct {
		sync.Mutex
		ep    string
		token []byte
	}

	repoLock  chan struct{}
	datastore datastore.Batching
	cfg       *config.FullNode
}

type lockedMemRepo struct {
	mem *MemRepo

	sync.RWMutex
	closed bool
}

var _ Repo = &MemRepo{}

// NewMemory creates new memory based repo with provided config.
// If cfg is nil, the default full node config is used.
func NewMemory(cfg *config.FullNode) *MemRepo {
	if cfg == nil {
		cfg = config.DefaultFullNode()
	}

	return &MemRepo{
		repoLock:  make(chan struct{}, 1),
		datastore: dssync.MutexWrap(datastore.NewMapDatastore()),
		cfg:       cfg,
	}
}

func (mem *MemRepo) Exists() (bool, error) {
	return true, nil
}

func (mem *MemRepo) Init() error {
	return nil
}

func (mem *MemRepo) APIEndpoint() (string, error) {
	mem.api.Lock()
	defer mem.api.Unlock()
	if mem.api.ep == "" {
		return "", ErrNoAPIEndpoint
	}
	return mem.api.ep, nil
}

func (mem *MemRepo) APIToken() ([]byte, error) {
	mem.api.Lock()
	defer mem.api.Unlock()
	if mem.api.token == nil {
		return nil, ErrNoAPIToken
	}
	return mem.api.token, nil
}

func (mem *MemRepo) Lock() (LockedRepo, error) {
	select {
	case mem.repoLock <- struct{}{}:
	default:
		return nil, ErrRepoAlreadyLocked
	}

	return &lockedMemRepo{mem: mem}, nil
}

func (lmem *lockedMemRepo) Readonly() bool {
	return false
}

func (lmem *lockedMemRepo) Path() string {
	return ""
}

func (lmem *lockedMemRepo) checkToken() error {
	lmem.RLock()
	defer lmem.RUnlock()
	if lmem.closed {
		return ErrClosedRepo
	}
	return nil
}

func (lmem *lockedMemRepo) Close() error {
	if err := lmem.checkToken(); err != nil {
		return err
	}
	lmem.Lock()
	defer lmem.Unlock()

	lmem.closed = true
	lmem.mem.api.Lock()
	lmem.mem.api.ep = ""
	lmem.mem.api.Unlock()
	<-lmem.mem.repoLock // unlock
	return nil
}

func (lmem *lockedMemRepo) Datastore(_ context.Context) (datastore.Batching, error) {
	if err := lmem.checkToken(); err != nil {
		return nil, err
	}
	return lmem.mem.datastore, nil
}

func (lmem *lockedMemRepo) Config() (*config.FullNode, error) {
	if err := lmem.checkToken(); err != nil {
		return nil, err
	}
	return lmem.mem.cfg, nil
}

func (lmem *lockedMemRepo) SetAPIEndpoint(ep string) error {
	if err := lmem.checkToken(); err != nil {
		return err
	}
	lmem.mem.api.Lock()
	lmem.mem.api.ep = ep
	lmem.mem.api.Unlock()
	return nil
}

func (lmem *lockedMemRepo) SetAPIToken(token []byte) error {
	if err := lmem.checkToken(); err != nil {
		return err
	}
	lmem.mem.api.Lock()
	lmem.mem.api.token = token
	lmem.mem.api.Unlock()
	return nil
}
