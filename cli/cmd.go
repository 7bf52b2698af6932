package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-jsonrpc"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/api/client"
	"github.com/filecoin-project/lotus-gasest/node"
	"github.com/filecoin-project/lotus-gasest/node/config"
	"github.com/filecoin-project/lotus-gasest/node/repo"
)

var log = logging.Logger("cli")

const (
	metadataContext = "context"

	// metadataTestGasAPI holds an api.Gas injected by tests
	metadataTestGasAPI = "test-gas-api"
)

var Commands = []*cli.Command{
	GasCmd,
	MpoolCmd,
	ChainCmd,
	ConfigCmd,
}

// ReqContext returns context for cli execution. Calling it for the first time
// installs SIGTERM handler that will close returned context.
// Not safe for concurrent execution.
func ReqContext(cctx *cli.Context) context.Context {
	if uctx, ok := cctx.App.Metadata[metadataContext]; ok {
		// unchecked cast as if something else is in there
		// it is crash worthy either way
		return uctx.(context.Context)
	}

	ctx, done := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 2)
	go func() {
		<-sigChan
		done()
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	cctx.App.Metadata[metadataContext] = ctx
	return ctx
}

// GetGasAPI connects to the node given with --api, or to the daemon recorded
// in the repo. Without either, estimation runs in process against the repo's
// chain, with no message executor.
func GetGasAPI(cctx *cli.Context) (api.Gas, jsonrpc.ClientCloser, error) {
	return getGasAPI(cctx, true)
}

// GetDaemonGasAPI is like GetGasAPI but fails when no daemon is running.
func GetDaemonGasAPI(cctx *cli.Context) (api.Gas, jsonrpc.ClientCloser, error) {
	return getGasAPI(cctx, false)
}

func getGasAPI(cctx *cli.Context, allowOffline bool) (api.Gas, jsonrpc.ClientCloser, error) {
	if tn, ok := cctx.App.Metadata[metadataTestGasAPI]; ok {
		return tn.(api.Gas), func() {}, nil
	}

	token := []byte(cctx.String("api-token"))
	addr := cctx.String("api")
	if addr == "" {
		r, err := repo.NewFS(cctx.String("repo"))
		if err != nil {
			return nil, nil, err
		}
		addr, err = r.APIEndpoint()
		if errors.Is(err, repo.ErrNoAPIEndpoint) {
			if !allowOffline {
				return nil, nil, xerrors.New("no running daemon, start one with 'lotus-gasest daemon'")
			}
			log.Debug("no running daemon, estimating offline")
			return offlineGasAPI(cctx, r)
		}
		if err != nil {
			return nil, nil, xerrors.Errorf("failed to get api endpoint: %w", err)
		}

		if len(token) == 0 {
			token, err = r.APIToken()
			if err != nil && !errors.Is(err, repo.ErrNoAPIToken) {
				return nil, nil, xerrors.Errorf("failed to get api token: %w", err)
			}
		}
	}

	return client.NewGasRPC(ReqContext(cctx), "ws://"+addr+"/rpc/v1", AuthHeader(token))
}

// AuthHeader returns the request header carrying token, or nil without one.
func AuthHeader(token []byte) http.Header {
	if len(token) == 0 {
		return nil
	}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+string(token))
	return headers
}

func offlineGasAPI(cctx *cli.Context, r *repo.FsRepo) (api.Gas, jsonrpc.ClientCloser, error) {
	ctx := ReqContext(cctx)

	lr, cfg, err := LockRepo(cctx, r, true)
	if err != nil {
		return nil, nil, err
	}

	var gas api.Gas
	stop, err := node.New(ctx,
		node.LockedRepo(lr, cfg),
		node.GasNode(&gas),
	)
	if err != nil {
		_ = lr.Close()
		return nil, nil, xerrors.Errorf("initializing offline node: %w", err)
	}

	return gas, func() {
		if err := stop(context.Background()); err != nil {
			log.Warnw("stopping offline node", "error", err)
		}
	}, nil
}

// LockRepo locks an initialized repo and loads its config, applying the
// --network override and the configured log levels.
func LockRepo(cctx *cli.Context, r *repo.FsRepo, readonly bool) (repo.LockedRepo, *config.FullNode, error) {
	ok, err := r.Exists()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, xerrors.Errorf("repo at '%s' is not initialized, run 'lotus-gasest chain import' first", cctx.String("repo"))
	}

	var lr repo.LockedRepo
	if readonly {
		lr, err = r.LockRO()
	} else {
		lr, err = r.Lock()
	}
	if err != nil {
		return nil, nil, xerrors.Errorf("locking repo: %w", err)
	}

	cfg, err := lr.Config()
	if err != nil {
		_ = lr.Close()
		return nil, nil, xerrors.Errorf("loading repo config: %w", err)
	}
	if cctx.IsSet("network") {
		cfg.Chain.Network = cctx.String("network")
	}
	if err := cfg.Validate(); err != nil {
		_ = lr.Close()
		return nil, nil, err
	}

	for sub, lvl := range cfg.Logging.SubsystemLevels {
		if err := logging.SetLogLevel(sub, lvl); err != nil {
			log.Warnw("bad subsystem log level", "subsystem", sub, "level", lvl, "error", err)
		}
	}

	return lr, cfg, nil
}
