package repo

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ipfs/go-datastore"
	levelds "github.com/ipfs/go-ds-leveldb"
	fslock "github.com/ipfs/go-fs-lock"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	ldbopts "github.com/syndtr/goleveldb/leveldb/opt"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/node/config"
)

const (
	fsAPI       = "api"
	fsAPIToken  = "token"
	fsConfig    = "config.toml"
	fsDatastore = "datastore"
	fsLock      = "repo.lock"
)

var log = logging.Logger("repo")

// FsRepo is a struct for a repo on the file system.
type FsRepo struct {
	path       string
	configPath string
}

var _ Repo = &FsRepo{}

// NewFS creates a repo instance based on a path on file system
func NewFS(path string) (*FsRepo, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	return &FsRepo{
		path:       path,
		configPath: filepath.Join(path, fsConfig),
	}, nil
}

func (fsr *FsRepo) SetConfigPath(cfgPath string) {
	fsr.configPath = cfgPath
}

func (fsr *FsRepo) Exists() (bool, error) {
	_, err := os.Stat(filepath.Join(fsr.path, fsDatastore))
	notexist := os.IsNotExist(err)
	if notexist {
		err = nil
	}
	return !notexist, err
}

func (fsr *FsRepo) Init() error {
	exist, err := fsr.Exists()
	if err != nil {
		return err
	}
	if exist {
		return ErrRepoExists
	}

	log.Infof("Initializing repo at '%s'", fsr.path)
	err = os.MkdirAll(fsr.path, 0755) //nolint: gosec
	if err != nil && !os.IsExist(err) {
		return err
	}

	if err := fsr.initConfig(); err != nil {
		return xerrors.Errorf("init config: %w", err)
	}

	return os.Mkdir(filepath.Join(fsr.path, fsDatastore), 0755) //nolint: gosec
}

func (fsr *FsRepo) initConfig() error {
	_, err := os.Stat(fsr.configPath)
	if err == nil {
		// exists
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	comm, err := config.ConfigComment(config.DefaultFullNode())
	if err != nil {
		return xerrors.Errorf("comment: %w", err)
	}

	if err := os.WriteFile(fsr.configPath, comm, 0644); err != nil { //nolint: gosec
		return xerrors.Errorf("write config: %w", err)
	}
	return nil
}

// APIEndpoint returns endpoint of API in this repo
func (fsr *FsRepo) APIEndpoint() (string, error) {
	p := filepath.Join(fsr.path, fsAPI)

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return "", ErrNoAPIEndpoint
	} else if err != nil {
		return "", xerrors.Errorf("failed to read %q: %w", p, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (fsr *FsRepo) APIToken() ([]byte, error) {
	p := filepath.Join(fsr.path, fsAPIToken)
	tb, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, ErrNoAPIToken
	}
	if err != nil {
		return nil, xerrors.Errorf("failed to read %q: %w", p, err)
	}
	return bytes.TrimSpace(tb), nil
}

// Lock acquires exclusive lock on this repo
func (fsr *FsRepo) Lock() (LockedRepo, error) {
	return fsr.lock(false)
}

// Like Lock, except the datastore is opened read-only
func (fsr *FsRepo) LockRO() (LockedRepo, error) {
	return fsr.lock(true)
}

func (fsr *FsRepo) lock(readonly bool) (LockedRepo, error) {
	locked, err := fslock.Locked(fsr.path, fsLock)
	if err != nil {
		return nil, xerrors.Errorf("could not check lock status: %w", err)
	}
	if locked {
		return nil, ErrRepoAlreadyLocked
	}

	closer, err := fslock.Lock(fsr.path, fsLock)
	if err != nil {
		return nil, xerrors.Errorf("could not lock the repo: %w", err)
	}

	return &fsLockedRepo{
		path:       fsr.path,
		configPath: fsr.configPath,
		readonly:   readonly,
		closer:     closer,
	}, nil
}

type fsLockedRepo struct {
	path       string
	configPath string
	readonly   bool
	closer     io.Closer
	closed     bool

	ds     datastore.Batching
	dsErr  error
	dsOnce sync.Once

	configLk sync.Mutex
}

func (fsr *fsLockedRepo) Readonly() bool {
	return fsr.readonly
}

func (fsr *fsLockedRepo) Path() string {
	return fsr.path
}

func (fsr *fsLockedRepo) Close() error {
	if fsr.closed {
		return ErrClosedRepo
	}

	var err error
	if rerr := os.Remove(fsr.join(fsAPI)); rerr != nil && !os.IsNotExist(rerr) {
		err = multierr.Append(err, xerrors.Errorf("could not remove API file: %w", rerr))
	}

	if fsr.ds != nil {
		if cerr := fsr.ds.Close(); cerr != nil {
			err = multierr.Append(err, xerrors.Errorf("could not close datastore: %w", cerr))
		}
	}

	fsr.closed = true
	return multierr.Append(err, fsr.closer.Close())
}

// Datastore opens the leveldb chain datastore on first use.
func (fsr *fsLockedRepo) Datastore(_ context.Context) (datastore.Batching, error) {
	if err := fsr.stillValid(); err != nil {
		return nil, err
	}

	fsr.dsOnce.Do(func() {
		ds, err := levelds.NewDatastore(fsr.join(fsDatastore), &levelds.Options{
			Compression: ldbopts.NoCompression,
			NoSync:      false,
			Strict:      ldbopts.StrictAll,
			ReadOnly:    fsr.readonly,
		})
		if err != nil {
			fsr.dsErr = xerrors.Errorf("open leveldb: %w", err)
			return
		}
		fsr.ds = ds
	})
	return fsr.ds, fsr.dsErr
}

func (fsr *fsLockedRepo) join(paths ...string) string {
	return filepath.Join(append([]string{fsr.path}, paths...)...)
}

func (fsr *fsLockedRepo) stillValid() error {
	if fsr.closed {
		return ErrClosedRepo
	}
	return nil
}

func (fsr *fsLockedRepo) Config() (*config.FullNode, error) {
	if err := fsr.stillValid(); err != nil {
		return nil, err
	}

	fsr.configLk.Lock()
	defer fsr.configLk.Unlock()

	return config.FromFile(fsr.configPath, config.DefaultFullNode())
}

func (fsr *fsLockedRepo) SetAPIEndpoint(ep string) error {
	if err := fsr.stillValid(); err != nil {
		return err
	}
	return os.WriteFile(fsr.join(fsAPI), []byte(ep), 0644) //nolint: gosec
}

func (fsr *fsLockedRepo) SetAPIToken(token []byte) error {
	if err := fsr.stillValid(); err != nil {
		return err
	}
	return os.WriteFile(fsr.join(fsAPIToken), token, 0600)
}
