package repo

import (
	"context"

	"github.com/ipfs/go-datastore"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/node/config"
)

var (
	ErrNoAPIEndpoint     = xerrors.New("no API Endpoint set")
	ErrNoAPIToken        = xerrors.New("API token not set")
	ErrRepoAlreadyLocked = xerrors.New("repo is already locked (lotus-gasest already running)")
	ErrClosedRepo        = xerrors.New("repo is no longer open")
	ErrRepoExists        = xerrors.New("repo exists")
)

type Repo interface {
	// Exists reports whether the repo was initialized.
	Exists() (bool, error)

	// Init creates the repo layout and a commented default config.
	Init() error

	// APIEndpoint returns the address the running node serves its API on.
	APIEndpoint() (string, error)

	// APIToken returns the token granting write access to the node's API.
	APIToken() ([]byte, error)

	// Lock locks the repo for exclusive use.
	Lock() (LockedRepo, error)
}

type LockedRepo interface {
	// Close closes repo and removes lock.
	Close() error

	// Returns the chain datastore of this repo.
	Datastore(ctx context.Context) (datastore.Batching, error)

	// Returns config in this repo
	Config() (*config.FullNode, error)

	// SetAPIEndpoint records the address the node serves its API on.
	SetAPIEndpoint(string) error

	// SetAPIToken stores the API token. It outlives the lock.
	SetAPIToken([]byte) error

	// Path returns the path of the repo on disk, or "" for in-memory repos.
	Path() string

	Readonly() bool
}
