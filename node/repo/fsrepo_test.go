package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-datastore"
	"github.com/stretchr/testify/require"
)

func genFsRepo(t *testing.T) *FsRepo {
	path := t.TempDir()

	repo, err := NewFS(path)
	require.NoError(t, err)

	err = repo.Init()
	if err != ErrRepoExists {
		require.NoError(t, err)
	}
	return repo
}

func TestFsBasic(t *testing.T) {
	repo := genFsRepo(t)
	basicTest(t, repo)
}

func TestFsInitIsNotRepeated(t *testing.T) {
	repo := genFsRepo(t)

	exists, err := repo.Exists()
	require.NoError(t, err)
	require.True(t, exists)
	require.ErrorIs(t, repo.Init(), ErrRepoExists)
}

func TestFsDefaultConfigIsCommented(t *testing.T) {
	repo := genFsRepo(t)

	b, err := os.ReadFile(filepath.Join(repo.path, fsConfig))
	require.NoError(t, err)
	require.Contains(t, string(b), "#PremiumInclusionBlocks = 10")

	lr, err := repo.Lock()
	require.NoError(t, err)
	defer lr.Close() //nolint:errcheck

	cfg, err := lr.Config()
	require.NoError(t, err)
	require.Equal(t, uint64(10), cfg.GasEstimator.PremiumInclusionBlocks)
}

func TestFsDatastorePersists(t *testing.T) {
	ctx := context.Background()
	repo := genFsRepo(t)
	key := datastore.NewKey("/head")

	lr, err := repo.Lock()
	require.NoError(t, err)
	ds, err := lr.Datastore(ctx)
	require.NoError(t, err)
	require.NoError(t, ds.Put(ctx, key, []byte("tipset")))
	require.NoError(t, lr.Close())

	lr, err = repo.LockRO()
	require.NoError(t, err)
	defer lr.Close() //nolint:errcheck
	require.True(t, lr.Readonly())

	ds, err = lr.Datastore(ctx)
	require.NoError(t, err)
	v, err := ds.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("tipset"), v)
}
