// Package daemon composes the puppet and its dependencies into an fx
// application.
package daemon

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/macbridge/internal/bus"
	"github.com/matheus3301/macbridge/internal/cache"
	"github.com/matheus3301/macbridge/internal/config"
	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/lock"
	"github.com/matheus3301/macbridge/internal/logging"
	"github.com/matheus3301/macbridge/internal/puppet"
	"github.com/matheus3301/macbridge/internal/recent"
	"github.com/matheus3301/macbridge/internal/session"
	"github.com/matheus3301/macbridge/internal/status"
)

// Params holds the resolved session configuration passed to the fx
// module.
type Params struct {
	SessionName string
}

// Module composes all providers and lifecycle hooks of the daemon.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideConfig,
			provideGateway,
			provideCacheManager,
			provideRecentStore,
			providePuppet,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
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
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideConfig loads the global config; a missing file means defaults.
func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("config unreadable, using defaults", zap.Error(err))
		}
		return &config.Config{Endpoint: config.DefaultEndpoint}
	}
	return cfg
}

func provideGateway(cfg *config.Config, logger *zap.Logger) gateway.Conn {
	return gateway.NewClient(cfg.Endpoint, cfg.Token, logger)
}

func provideCacheManager(p Params, logger *zap.Logger) *cache.Manager {
	return cache.NewManager(session.Dir(p.SessionName), logger)
}

func provideRecentStore() *recent.Cache {
	return recent.New(recent.DefaultCapacity, recent.DefaultMaxAge)
}

func providePuppet(p Params, conn gateway.Conn, b *bus.Bus, machine *status.Machine, cm *cache.Manager, rc *recent.Cache, logger *zap.Logger) *puppet.Puppet {
	return puppet.New(conn, b, machine, cm, rc, p.SessionName, logger)
}

func registerLifecycle(lc fx.Lifecycle, pup *puppet.Puppet, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The gateway dial retries forever; do not tie it to the
			// fx start timeout.
			go func() {
				if err := pup.Start(context.Background()); err != nil {
					logger.Error("puppet start failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			pup.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
