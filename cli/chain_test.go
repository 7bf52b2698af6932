package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	dstore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ucli "github.com/urfave/cli/v2"

	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/chain/types/mock"
)

// newRepoApp returns a CLI app operating on the repo at repoPath.
func newRepoApp(t *testing.T, repoPath string, cmds ...*ucli.Command) (*ucli.App, *bytes.Buffer) {
	app := ucli.NewApp()
	app.Flags = []ucli.Flag{
		&ucli.StringFlag{Name: "repo", Value: repoPath},
		&ucli.StringFlag{Name: "api"},
		&ucli.StringFlag{Name: "network"},
	}
	app.Commands = cmds
	app.Setup()

	buf := &bytes.Buffer{}
	app.Writer = buf
	app.ErrWriter = buf

	return app, buf
}

func newMemChain(t *testing.T) *store.ChainStore {
	cs, err := store.NewChainStore(dssync.MutexWrap(dstore.NewMapDatastore()), 16)
	require.NoError(t, err)
	return cs
}

// writeChainFile exports a two tipset chain whose head block includes one
// message.
func writeChainFile(t *testing.T) (string, *types.TipSet) {
	ctx := context.Background()
	cs := newMemChain(t)

	gen := mock.TipSet(mock.MkBlock(nil, 1, 1, big.NewInt(100)))
	head := mock.TipSet(mock.MkBlock(gen, 1, 2, big.NewInt(150)))

	require.NoError(t, cs.PutTipSet(ctx, gen))
	require.NoError(t, cs.PutBlockMessages(ctx, gen.Cids()[0], &store.BlockMessages{}))
	require.NoError(t, cs.PutTipSet(ctx, head))
	require.NoError(t, cs.PutBlockMessages(ctx, head.Cids()[0], &store.BlockMessages{
		BlsMessages: []*types.Message{mock.UnsignedMessage(mock.KeyAddress(1), mock.Address(2), 0)},
	}))
	require.NoError(t, cs.SetHead(ctx, head))

	p := filepath.Join(t.TempDir(), "chain.cbor")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, cs.Export(ctx, nil, f))
	require.NoError(t, f.Close())

	return p, head
}

func TestChainImportExport(t *testing.T) {
	ctx := context.Background()
	chainFile, head := writeChainFile(t)
	repoPath := filepath.Join(t.TempDir(), "repo")

	app, buf := newRepoApp(t, repoPath, ChainCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "chain", "import", chainFile}))
	assert.Contains(t, buf.String(), "imported chain up to height 1")

	app, buf = newRepoApp(t, repoPath, ChainCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "chain", "head"}))
	assert.Contains(t, buf.String(), head.Cids()[0].String())
	assert.Contains(t, buf.String(), "height: 1")

	out := filepath.Join(t.TempDir(), "out.cbor")
	app, _ = newRepoApp(t, repoPath, ChainCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "chain", "export", out}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	cs := newMemChain(t)
	root, err := cs.Import(ctx, f)
	require.NoError(t, err)
	require.Equal(t, head.Key(), root.Key())

	msgs, err := cs.MessagesForTipset(ctx, root)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestChainImportNoSetHead(t *testing.T) {
	chainFile, _ := writeChainFile(t)
	repoPath := filepath.Join(t.TempDir(), "repo")

	app, _ := newRepoApp(t, repoPath, ChainCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "chain", "import", "--no-set-head", chainFile}))

	app, _ = newRepoApp(t, repoPath, ChainCmd)
	require.ErrorContains(t, app.Run([]string{"lotus-gasest", "chain", "head"}), "no chain head")
}

func TestChainHeadNeedsRepo(t *testing.T) {
	app, _ := newRepoApp(t, filepath.Join(t.TempDir(), "missing"), ChainCmd)
	require.ErrorContains(t, app.Run([]string{"lotus-gasest", "chain", "head"}), "not initialized")
}

func TestChainUnknownNetwork(t *testing.T) {
	chainFile, _ := writeChainFile(t)
	repoPath := filepath.Join(t.TempDir(), "repo")

	app, _ := newRepoApp(t, repoPath, ChainCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "chain", "import", chainFile}))

	app, _ = newRepoApp(t, repoPath, ChainCmd)
	require.Error(t, app.Run([]string{"lotus-gasest", "--network", "", "chain", "head"}))
}

func TestGasOfflineOverImportedChain(t *testing.T) {
	chainFile, _ := writeChainFile(t)
	repoPath := filepath.Join(t.TempDir(), "repo")

	app, _ := newRepoApp(t, repoPath, ChainCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "chain", "import", chainFile}))

	app, buf := newRepoApp(t, repoPath, GasCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "gas", "feecap", "--max-queue-blocks", "0"}))
	// head parent base fee plus no premium
	assert.Contains(t, buf.String(), "150")

	app, _ = newRepoApp(t, repoPath, GasCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "--network", "calibrationnet", "gas", "premium"}))
}

func TestConfigDefault(t *testing.T) {
	app, buf := newRepoApp(t, "", ConfigCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "config", "default"}))
	assert.Contains(t, buf.String(), "#PremiumInclusionBlocks = 10")

	app, buf = newRepoApp(t, "", ConfigCmd)
	require.NoError(t, app.Run([]string{"lotus-gasest", "config", "default", "--no-comment"}))
	assert.Contains(t, buf.String(), "PremiumInclusionBlocks = 10")
	assert.NotContains(t, buf.String(), "#")
}
