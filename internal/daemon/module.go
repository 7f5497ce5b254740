package daemon

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/ai"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/api"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/config"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/imagesearch"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/lock"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/logging"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/metrics"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/notify"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/ops"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote/memdb"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote/redisdb"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/responder"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/session"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/status"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
	intsync "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/sync"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	Config      *config.Config
	Debug       bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRemote,
			provideSyncEngine,
			provideGenerator,
			provideImages,
			provideResponder,
			provideDirectReplier,
			provideNotifier,
			provideMetrics,
			provideOps,
			provideSessionService,
			provideSyncService,
			provideConversationService,
			provideMessageService,
			provideUserService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, p.Debug)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), p.Config.Principal)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the cache is never opened by a
// second daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemote(p Params, logger *zap.Logger) (remote.Store, error) {
	cfg := p.Config.Remote
	switch cfg.Backend {
	case "", "memory":
		logger.Warn("using in-memory remote tree; data is lost on exit")
		return memdb.New(), nil
	case "redis":
		s, err := redisdb.Dial(context.Background(), cfg.RedisURL, cfg.Prefix, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("remote tree connected", zap.String("backend", "redis"))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Backend)
	}
}

func provideSyncEngine(db *store.DB, rs remote.Store, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, rs, b, machine, logger)
}

func provideGenerator(p Params, logger *zap.Logger) ai.Generator {
	cfg := p.Config.AI
	if cfg.APIKey == "" {
		logger.Warn("no AI api key configured; personas will answer with the placeholder")
	}
	return ai.NewOpenAI(ai.Config{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		Model:         cfg.Model,
		RatePerMinute: cfg.RatePerMinute,
	}, logger)
}

// provideImages returns nil when no provider is configured, which turns
// image replies into text-only ones.
func provideImages(p Params, logger *zap.Logger) imagesearch.Searcher {
	cfg := p.Config.Images
	chain := imagesearch.Chain{Logger: logger}
	if cfg.GoogleAPIKey != "" && cfg.GoogleCX != "" {
		chain.Primary = imagesearch.NewGoogle(cfg.GoogleAPIKey, cfg.GoogleCX, cfg.RatePerMinute)
	}
	if cfg.PixabayKey != "" {
		chain.Fallback = imagesearch.NewPixabay(cfg.PixabayKey, cfg.RatePerMinute)
	}
	if chain.Primary == nil && chain.Fallback == nil {
		logger.Info("image search disabled")
		return nil
	}
	return chain
}

func provideResponder(p Params, db *store.DB, engine *intsync.Engine, gen ai.Generator, images imagesearch.Searcher, b *bus.Bus, logger *zap.Logger) *responder.Loop {
	cfg := p.Config.Responder
	if !cfg.Enabled {
		return nil
	}
	return responder.NewLoop(db, engine, gen, images, b, responder.Options{
		PollInterval: cfg.PollInterval.Duration,
		HistoryLimit: cfg.HistoryLimit,
		Policy: responder.Policy{
			Inactivity:       cfg.Inactivity.Duration,
			SpeakProbability: cfg.SpeakProbability,
		},
		Seed: cfg.Seed,
	}, logger.Named("responder"))
}

func provideDirectReplier(p Params, loop *responder.Loop, db *store.DB, b *bus.Bus, logger *zap.Logger) *responder.DirectReplier {
	if loop == nil || !p.Config.Responder.DirectReplies {
		return nil
	}
	return responder.NewDirectReplier(loop, db, b, logger.Named("direct"))
}

func provideNotifier(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) (*notify.Notifier, error) {
	cfg := p.Config.Notify
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	pub, err := notify.DialAMQP(cfg.AMQPURL, cfg.Queue)
	if err != nil {
		return nil, err
	}
	logger.Info("push publisher connected", zap.String("queue", cfg.Queue))
	return notify.NewNotifier(db, pub, b, logger.Named("notify")), nil
}

func provideMetrics(b *bus.Bus, engine *intsync.Engine, db *store.DB) *metrics.Metrics {
	return metrics.New(b, metrics.Sources{
		Listeners: engine.ListenerCount,
		Counts:    db.Counts,
	})
}

func provideOps(p Params, m *metrics.Metrics, machine *status.Machine, engine *intsync.Engine, logger *zap.Logger) *ops.Server {
	if p.Config.Ops.Addr == "" {
		return nil
	}
	return ops.NewServer(p.Config.Ops.Addr, m.Registry, healthFunc(machine, engine), logger)
}

// healthFunc reports unhealthy once the session is degraded or stopped.
func healthFunc(machine *status.Machine, engine *intsync.Engine) ops.HealthFunc {
	return func() (ops.Health, bool) {
		cur := machine.Current()
		h := ops.Health{
			Status:    string(cur),
			Principal: engine.Principal(),
			Since:     machine.Since().UTC().Format("2006-01-02T15:04:05Z"),
		}
		return h, cur != status.Degraded && cur != status.Stopped
	}
}

func provideSessionService(p Params, m *status.Machine, engine *intsync.Engine, db *store.DB) *api.SessionService {
	return api.NewSessionService(p.SessionName, m, engine, db)
}

func provideSyncService(p Params, engine *intsync.Engine, b *bus.Bus, m *status.Machine) *api.SyncService {
	return api.NewSyncService(engine, b, m, p.SessionName)
}

func provideConversationService(db *store.DB, engine *intsync.Engine) *api.ConversationService {
	return api.NewConversationService(db, engine)
}

func provideMessageService(db *store.DB, engine *intsync.Engine) *api.MessageService {
	return api.NewMessageService(db, engine)
}

func provideUserService(db *store.DB, engine *intsync.Engine) *api.UserService {
	return api.NewUserService(db, engine)
}

// components are the optional background workers; nil entries are disabled.
type components struct {
	fx.In

	Loop     *responder.Loop
	Direct   *responder.DirectReplier
	Notifier *notify.Notifier
	Metrics  *metrics.Metrics
	Ops      *ops.Server
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *Server, lk *lock.Lock, db *store.DB, rs remote.Store, engine *intsync.Engine, c components, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			base := context.Background()

			c.Metrics.Start(base)
			if c.Ops != nil {
				if err := c.Ops.Start(); err != nil {
					return fmt.Errorf("start ops listener: %w", err)
				}
			}
			if c.Notifier != nil {
				c.Notifier.Start(base)
			}

			// Resumes the last principal from the checkpoint, if any.
			engine.Start(base)
			if engine.Principal() == "" && p.Config.Principal != "" {
				if err := engine.StartSyncing(base, p.Config.Principal); err != nil {
					logger.Error("initial sync failed", zap.String("principal", p.Config.Principal), zap.Error(err))
				}
			}

			if c.Loop != nil {
				c.Loop.Start(base)
			}
			if c.Direct != nil {
				c.Direct.Start(base)
			}

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			if c.Direct != nil {
				c.Direct.Stop()
			}
			if c.Loop != nil {
				c.Loop.Stop()
			}
			engine.Stop()
			if c.Notifier != nil {
				c.Notifier.Stop()
			}
			if c.Ops != nil {
				if err := c.Ops.Stop(ctx); err != nil {
					logger.Warn("error stopping ops listener", zap.Error(err))
				}
			}
			c.Metrics.Stop()
			if closer, ok := rs.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					logger.Warn("error closing remote tree", zap.Error(err))
				}
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
