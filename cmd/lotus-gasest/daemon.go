package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/build"
	lcli "github.com/filecoin-project/lotus-gasest/cli"
	"github.com/filecoin-project/lotus-gasest/node"
	"github.com/filecoin-project/lotus-gasest/node/repo"
)

var daemonCmd = &cli.Command{
	Name:  "daemon",
	Usage: "Serve the gas estimation API over the repo's chain",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "host:port to listen on (default: API.ListenAddress from the config)",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := lcli.ReqContext(cctx)

		r, err := repo.NewFS(cctx.String("repo"))
		if err != nil {
			return err
		}
		if err := r.Init(); err != nil && !xerrors.Is(err, repo.ErrRepoExists) {
			return xerrors.Errorf("initializing repo: %w", err)
		}

		lr, cfg, err := lcli.LockRepo(cctx, r, false)
		if err != nil {
			return err
		}
		if cctx.IsSet("listen") {
			cfg.API.ListenAddress = cctx.String("listen")
		}

		var gas api.Gas
		stop, err := node.New(ctx,
			node.LockedRepo(lr, cfg),
			node.GasNode(&gas),
		)
		if err != nil {
			_ = lr.Close()
			return xerrors.Errorf("initializing node: %w", err)
		}

		token, err := apiToken(r, lr)
		if err != nil {
			_ = stop(ctx)
			return err
		}

		h, err := node.GasRPCHandler(gas, token)
		if err != nil {
			_ = stop(ctx)
			return xerrors.Errorf("creating rpc handler: %w", err)
		}

		rpcStop, addr, err := node.ServeRPC(h, "lotus-gasest", cfg.API.ListenAddress, time.Duration(cfg.API.Timeout))
		if err != nil {
			_ = stop(ctx)
			return xerrors.Errorf("failed to start json-rpc endpoint: %s", err)
		}
		if err := lr.SetAPIEndpoint(addr); err != nil {
			_ = rpcStop(ctx)
			_ = stop(ctx)
			return xerrors.Errorf("recording api endpoint: %w", err)
		}

		log.Infow("gas estimator started",
			"version", build.UserVersion(),
			"apiVersion", build.GasAPIVersion,
			"network", cfg.Chain.Network,
			"addr", addr,
		)

		finishCh := node.MonitorShutdown(nil,
			node.ShutdownHandler{Component: "rpc server", StopFunc: rpcStop},
			node.ShutdownHandler{Component: "node", StopFunc: stop},
		)
		<-finishCh
		return nil
	},
}

// apiToken returns the repo's API token, creating one on first start.
func apiToken(r repo.Repo, lr repo.LockedRepo) ([]byte, error) {
	token, err := r.APIToken()
	if err == nil {
		return token, nil
	}
	if !xerrors.Is(err, repo.ErrNoAPIToken) {
		return nil, xerrors.Errorf("reading api token: %w", err)
	}

	token = []byte(uuid.NewString())
	if err := lr.SetAPIToken(token); err != nil {
		return nil, xerrors.Errorf("storing api token: %w", err)
	}
	log.Infow("created api token", "repo", lr.Path())
	return token, nil
}
