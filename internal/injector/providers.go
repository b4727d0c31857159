// Package injector assembles the process from configuration. The provider
// set is consumed by wire; wire_gen.go holds the generated graph.
package injector

import (
	"context"
	"fmt"
	"os"

	"github.com/google/wire"

	"github.com/zeusync/tabletop/internal/config"
	"github.com/zeusync/tabletop/internal/core/autoturn"
	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/events"
	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/lock"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/narration"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/resolver"
	"github.com/zeusync/tabletop/internal/core/state"
	"github.com/zeusync/tabletop/internal/core/storage"
	"github.com/zeusync/tabletop/internal/core/storage/memory"
	"github.com/zeusync/tabletop/internal/core/storage/sqlite"
	"github.com/zeusync/tabletop/internal/core/turn"
	"github.com/zeusync/tabletop/internal/server"
)

// App is everything cmd/server needs once the graph is built.
type App struct {
	Config     config.Config
	Logger     log.Log
	Store      *state.Store
	Locations  storage.LocationRepository
	Loop       *autoturn.Loop
	Dispatcher *command.Dispatcher
	HTTP       *server.HTTPServer
}

// Backend is the selected storage driver together with the lock backend that
// matches it.
type Backend struct {
	Store storage.Store
	Locks lock.Backend
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideCatalog,
	ProvideBackend,
	ProvideLockManager,
	ProvideStateStore,
	ProvideLocations,
	ProvideRoller,
	ProvideResolver,
	ProvideSequencer,
	bus.New,
	ProvideBroadcaster,
	ProvideNarrator,
	ProvideLoop,
	ProvideDispatcher,
	ProvideWebSocketServer,
	ProvideHTTPServer,
	wire.Bind(new(events.Broadcaster), new(*events.BusBroadcaster)),
	wire.Bind(new(command.Runner), new(*autoturn.Loop)),
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg config.Config) log.Log {
	return log.New(log.ParseLevel(cfg.Log.Level))
}

func ProvideCatalog(cfg config.Config) (*models.Catalog, error) {
	if cfg.Rules.Catalog == "" {
		return models.DefaultCatalog(), nil
	}
	f, err := os.Open(cfg.Rules.Catalog)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return models.LoadCatalogYAML(f)
}

func ProvideBackend(ctx context.Context, cfg config.Config, logger log.Log) (*Backend, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Warn("closing sqlite store", log.Error(err))
			}
		}
		return &Backend{Store: db, Locks: lock.NewSQLiteBackend(db, cfg.Lock, logger)}, cleanup, nil
	case config.DriverMemory, "":
		return &Backend{Store: memory.New(), Locks: lock.NewMemoryBackend(cfg.Storage.LockShards)}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalidConfig, cfg.Storage.Driver)
	}
}

func ProvideLockManager(b *Backend, cfg config.Config, logger log.Log) *lock.Manager {
	return lock.NewManager(b.Locks, cfg.Lock, logger)
}

func ProvideStateStore(b *Backend, catalog *models.Catalog, logger log.Log) *state.Store {
	return state.NewStore(b.Store, b.Store, catalog, logger)
}

func ProvideLocations(b *Backend) storage.LocationRepository {
	return b.Store
}

func ProvideRoller(cfg config.Config) (dice.Roller, error) {
	seed := cfg.Rules.Seed
	if seed == 0 {
		var err error
		if seed, err = dice.NewSeed(); err != nil {
			return nil, err
		}
	}
	return dice.NewRoller(seed), nil
}

func ProvideResolver(roller dice.Roller, catalog *models.Catalog, cfg config.Config) *resolver.Resolver {
	return resolver.New(roller, catalog, resolver.Options{InterruptRadius: cfg.Rules.InterruptRadius})
}

func ProvideSequencer(res *resolver.Resolver, cfg config.Config, logger log.Log) *turn.Sequencer {
	return turn.New(res, cfg.Turn, logger)
}

func ProvideBroadcaster(b bus.EventBus, logger log.Log) *events.BusBroadcaster {
	return events.NewBusBroadcaster(b, logger)
}

func ProvideNarrator(cfg config.Config, logger log.Log) narration.Narrator {
	var n narration.Narrator = narration.Echo{}
	if cfg.Narration.Narrator == config.NarratorNoop {
		n = narration.Noop{}
	}
	return narration.WithTimeout(n, cfg.Narration.Timeout, logger)
}

func ProvideLoop(
	locks *lock.Manager,
	store *state.Store,
	seq *turn.Sequencer,
	narrator narration.Narrator,
	broadcast events.Broadcaster,
	cfg config.Config,
	logger log.Log,
) (*autoturn.Loop, func()) {
	l := autoturn.New(locks, store, seq, narrator, broadcast, cfg.AutoTurn, logger)
	return l, l.Close
}

func ProvideDispatcher(
	locks *lock.Manager,
	store *state.Store,
	seq *turn.Sequencer,
	locations storage.LocationRepository,
	broadcast events.Broadcaster,
	narrator narration.Narrator,
	runner command.Runner,
	logger log.Log,
) *command.Dispatcher {
	return command.NewDispatcher(command.DefaultRegistry(), locks, store, seq, locations, broadcast, narrator, runner, logger)
}

func ProvideWebSocketServer(
	watcher *events.BusBroadcaster,
	store *state.Store,
	dispatcher *command.Dispatcher,
	cfg config.Config,
	logger log.Log,
) *server.WebSocketServer {
	return server.NewWebSocketServer(watcher, store, dispatcher, cfg.Server, logger)
}

func ProvideHTTPServer(ws *server.WebSocketServer, cfg config.Config, logger log.Log) *server.HTTPServer {
	return server.NewHTTPServer(ws, cfg.Server, logger)
}
