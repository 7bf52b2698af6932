package cli

import (
	"bufio"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/chain/types"
	"github.com/filecoin-project/lotus-gasest/node/repo"
)

var ChainCmd = &cli.Command{
	Name:  "chain",
	Usage: "Manage the local chain the estimator reads",
	Subcommands: []*cli.Command{
		ChainImportCmd,
		ChainExportCmd,
		ChainHeadCmd,
	},
}

var ChainImportCmd = &cli.Command{
	Name:      "import",
	Usage:     "Import a chain export into the repo, initializing it if needed",
	ArgsUsage: "<chain.cbor | ->",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-set-head",
			Usage: "import the blocks without moving the head to the export root",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return IncorrectNumArgs(cctx)
		}
		ctx := ReqContext(cctx)

		r, err := repo.NewFS(cctx.String("repo"))
		if err != nil {
			return err
		}
		if err := r.Init(); err != nil && !xerrors.Is(err, repo.ErrRepoExists) {
			return xerrors.Errorf("initializing repo: %w", err)
		}

		cs, closer, err := openChain(cctx, r, false)
		if err != nil {
			return err
		}
		defer closer()

		var in io.Reader = cctx.App.Reader
		if p := cctx.Args().First(); p != "-" {
			f, err := os.Open(p)
			if err != nil {
				return xerrors.Errorf("opening chain file: %w", err)
			}
			defer f.Close() //nolint:errcheck
			in = f
		}

		ts, err := cs.Import(ctx, bufio.NewReader(in))
		if err != nil {
			return xerrors.Errorf("importing chain: %w", err)
		}

		if !cctx.Bool("no-set-head") {
			if err := cs.SetHead(ctx, ts); err != nil {
				return xerrors.Errorf("setting head: %w", err)
			}
		}

		afmt := NewAppFmt(cctx.App)
		afmt.Printf("imported chain up to height %d: %s\n", ts.Height(), ts.Key())
		return nil
	},
}

var ChainExportCmd = &cli.Command{
	Name:      "export",
	Usage:     "Export the chain from the given tipset down to genesis",
	ArgsUsage: "<chain.cbor | ->",
	Flags: []cli.Flag{
		tipsetFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return IncorrectNumArgs(cctx)
		}
		ctx := ReqContext(cctx)

		r, err := repo.NewFS(cctx.String("repo"))
		if err != nil {
			return err
		}
		cs, closer, err := openChain(cctx, r, true)
		if err != nil {
			return err
		}
		defer closer()

		tsk, err := TipSetKey(cctx)
		if err != nil {
			return err
		}
		var ts *types.TipSet
		if !tsk.IsEmpty() {
			if ts, err = cs.LoadTipSet(ctx, tsk); err != nil {
				return xerrors.Errorf("loading tipset: %w", err)
			}
		}

		var out io.Writer = cctx.App.Writer
		if p := cctx.Args().First(); p != "-" {
			f, err := os.Create(p)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		w := bufio.NewWriter(out)
		if err := cs.Export(ctx, ts, w); err != nil {
			return xerrors.Errorf("exporting chain: %w", err)
		}
		return w.Flush()
	},
}

var ChainHeadCmd = &cli.Command{
	Name:  "head",
	Usage: "Print the head of the local chain",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 0 {
			return IncorrectNumArgs(cctx)
		}

		r, err := repo.NewFS(cctx.String("repo"))
		if err != nil {
			return err
		}
		cs, closer, err := openChain(cctx, r, true)
		if err != nil {
			return err
		}
		defer closer()

		head := cs.GetHeaviestTipSet()
		if head == nil {
			return xerrors.Errorf("no chain head, import a chain first")
		}

		afmt := NewAppFmt(cctx.App)
		for _, c := range head.Cids() {
			afmt.Println(c)
		}
		afmt.Printf("height: %d\n", head.Height())
		afmt.Printf("parent base fee: %s\n", types.FIL(head.ParentBaseFee()))
		return nil
	},
}

// openChain locks the repo and loads the chain store over its datastore.
func openChain(cctx *cli.Context, r *repo.FsRepo, readonly bool) (*store.ChainStore, func(), error) {
	ctx := ReqContext(cctx)

	lr, cfg, err := LockRepo(cctx, r, readonly)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := lr.Close(); err != nil {
			log.Warnw("closing repo", "error", err)
		}
	}

	ds, err := lr.Datastore(ctx)
	if err != nil {
		closer()
		return nil, nil, xerrors.Errorf("opening datastore: %w", err)
	}

	cs, err := store.NewChainStore(ds, cfg.Chain.TipSetCacheSize)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if err := cs.Load(ctx); err != nil {
		closer()
		return nil, nil, err
	}

	return cs, closer, nil
}
