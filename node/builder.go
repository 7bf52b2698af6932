package node

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats/view"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-gasest/api"
	"github.com/filecoin-project/lotus-gasest/build/buildconstants"
	"github.com/filecoin-project/lotus-gasest/chain/messagepool"
	"github.com/filecoin-project/lotus-gasest/chain/stmgr"
	"github.com/filecoin-project/lotus-gasest/chain/store"
	"github.com/filecoin-project/lotus-gasest/metrics"
	"github.com/filecoin-project/lotus-gasest/node/config"
	"github.com/filecoin-project/lotus-gasest/node/impl/full"
	"github.com/filecoin-project/lotus-gasest/node/impl/gasutils"
	"github.com/filecoin-project/lotus-gasest/node/modules"
	"github.com/filecoin-project/lotus-gasest/node/modules/dtypes"
	"github.com/filecoin-project/lotus-gasest/node/modules/helpers"
	"github.com/filecoin-project/lotus-gasest/node/repo"
)

var log = logging.Logger("builder")

var (
	_ gasutils.ChainStoreAPI   = (*store.ChainStore)(nil)
	_ gasutils.StateManagerAPI = (*stmgr.StateManager)(nil)
	_ gasutils.MessagePoolAPI  = (*messagepool.MessagePool)(nil)
	_ full.MessagePoolAPI      = (*messagepool.MessagePool)(nil)
)

type invoke int

// Invokes are called in the order they are defined.
//
//nolint:golint
const (
	// RegisterViewsKey registers the opencensus views before any component
	// records a measurement.
	RegisterViewsKey = invoke(iota)

	ExtractApiKey

	_nInvokes // keep this last
)

type Settings struct {
	// modules is a map of constructors for DI
	//
	// In most cases the index will be a reflect. Type of element returned by
	// the constructor
	modules map[interface{}]fx.Option

	// invokes are separate from modules as they can't be referenced by return
	// type, and must be applied in correct order
	invokes []fx.Option

	Config bool // Config option applied
}

func defaults() []Option {
	return []Option{
		Override(new(helpers.MetricsCtx), context.Background),
		Override(new(stmgr.Invoker), func() stmgr.Invoker { return modules.NoVM{} }),
		Override(new(gasutils.NoiseSource), modules.NoiseSource),

		Override(RegisterViewsKey, registerViews),
	}
}

func registerViews() error {
	return view.Register(metrics.DefaultViews()...)
}

// Config provides the sections of cfg to the node components.
func Config(cfg *config.FullNode) Option {
	return Options(
		func(s *Settings) error { s.Config = true; return nil },

		Override(new(*config.FullNode), cfg),
		Override(new(config.API), cfg.API),
		Override(new(config.Chain), cfg.Chain),
		Override(new(config.Mpool), cfg.Mpool),
		Override(new(config.GasEstimator), cfg.GasEstimator),
	)
}

// Repo locks r and builds the node over its config and datastore. The repo is
// unlocked when the node stops.
func Repo(r repo.Repo) Option {
	return func(settings *Settings) error {
		lr, err := r.Lock()
		if err != nil {
			return err
		}
		c, err := lr.Config()
		if err != nil {
			_ = lr.Close()
			return xerrors.Errorf("loading repo config: %w", err)
		}

		return LockedRepo(lr, c)(settings)
	}
}

// LockedRepo builds the node over an already locked repo using cfg instead of
// the config stored in the repo. lr is closed when the node stops.
func LockedRepo(lr repo.LockedRepo, cfg *config.FullNode) Option {
	return Options(
		Config(cfg),
		Override(new(repo.LockedRepo), modules.LockedRepo(lr)),
		Override(new(dtypes.MetadataDS), modules.Datastore),
	)
}

// WithInvoker sets the executor used to simulate messages.
func WithInvoker(inv stmgr.Invoker) Option {
	return Override(new(stmgr.Invoker), func() stmgr.Invoker { return inv })
}

// GasNode assembles the chain store, message pool, state manager and the gas
// estimation and message pool API. out is set once the node has started.
func GasNode(out *api.Gas) Option {
	return Options(
		ApplyIf(func(s *Settings) bool { return !s.Config },
			Error(xerrors.New("the GasNode option must be set after Config or Repo"))),

		Override(new(*buildconstants.NetworkParams), modules.NetworkParams),
		Override(new(helpers.MetricsCtx), modules.NetworkMetricsCtx),

		Override(new(*store.ChainStore), modules.ChainStore),
		Override(new(*messagepool.MessagePool), modules.MessagePool),
		Override(new(*stmgr.StateManager), modules.StateManager),
		Override(new(*gasutils.GasPriceCache), modules.GasPriceCache),

		Override(new(gasutils.ChainStoreAPI), From(new(*store.ChainStore))),
		Override(new(gasutils.StateManagerAPI), From(new(*stmgr.StateManager))),
		Override(new(gasutils.MessagePoolAPI), From(new(*messagepool.MessagePool))),
		Override(new(full.MessagePoolAPI), From(new(*messagepool.MessagePool))),
		Override(new(api.Gas), From(new(full.NodeAPI))),

		Override(ExtractApiKey, func(g api.Gas) {
			*out = g
		}),
	)
}

// StopFunc is used to stop the node
type StopFunc func(context.Context) error

// New builds and starts new Filecoin node
func New(ctx context.Context, opts ...Option) (StopFunc, error) {
	settings := Settings{
		modules: map[interface{}]fx.Option{},
		invokes: make([]fx.Option, _nInvokes),
	}

	// apply module options in the right order
	if err := Options(Options(defaults()...), Options(opts...))(&settings); err != nil {
		return nil, xerrors.Errorf("applying node options failed: %w", err)
	}

	// gather constructors for fx.Options
	ctors := make([]fx.Option, 0, len(settings.modules))
	for _, opt := range settings.modules {
		ctors = append(ctors, opt)
	}

	// fill holes in invokes for use in fx.Options
	for i, opt := range settings.invokes {
		if opt == nil {
			settings.invokes[i] = fx.Options()
		}
	}

	app := fx.New(
		fx.Options(ctors...),
		fx.Options(settings.invokes...),

		fx.NopLogger,
	)

	if err := app.Start(ctx); err != nil {
		// comment fx.NopLogger few lines above for easier debugging
		return nil, xerrors.Errorf("starting node: %w", err)
	}

	log.Debugw("node started", "modules", len(ctors))
	return app.Stop, nil
}
