package daemon

import (
	"context"

	"github.com/lgabs/wachat/internal/archive"
	"github.com/lgabs/wachat/internal/bus"
	"github.com/lgabs/wachat/internal/channel"
	"github.com/lgabs/wachat/internal/client"
	"github.com/lgabs/wachat/internal/config"
	"github.com/lgabs/wachat/internal/lock"
	"github.com/lgabs/wachat/internal/logging"
	"github.com/lgabs/wachat/internal/session"
	intsync "github.com/lgabs/wachat/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideLock,
			provideArchive,
			provideClient,
			provideReconciler,
			providePushAdapter,
			providePollAdapter,
			provideController,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		logger.Warn("config load failed, using defaults", zap.Error(err))
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), p.SessionName)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideArchive(p Params, logger *zap.Logger) (*archive.DB, error) {
	dbPath := session.ArchiveDBPath(p.SessionName)
	db, err := archive.Open(dbPath)
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
	logger.Info("archive initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config) client.Client {
	return client.NewHTTPClient(cfg.APIURL, cfg.APIToken)
}

func provideReconciler(c client.Client, b *bus.Bus, db *archive.DB, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(c, b, db, logger)
}

func providePushAdapter(c client.Client, b *bus.Bus, logger *zap.Logger) *channel.PushAdapter {
	return channel.NewPushAdapter(c, b, logger)
}

func providePollAdapter(c client.Client, b *bus.Bus, cfg *config.Config, recon *intsync.Reconciler, logger *zap.Logger) *channel.PollAdapter {
	return channel.NewPollAdapter(c, b, cfg.PollInterval(), recon.SendInFlight, logger)
}

func provideController(recon *intsync.Reconciler, push *channel.PushAdapter, poll *channel.PollAdapter, c client.Client, cfg *config.Config, logger *zap.Logger) *intsync.Controller {
	return intsync.NewController(recon, push, poll, c, cfg.PushEnabled, logger)
}

func registerLifecycle(lc fx.Lifecycle, ctrl *intsync.Controller, db *archive.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return ctrl.Start(context.Background())
		},
		OnStop: func(_ context.Context) error {
			ctrl.Dispose()
			if err := db.Close(); err != nil {
				logger.Warn("error closing archive", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
