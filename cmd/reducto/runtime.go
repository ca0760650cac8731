package main

import (
	"context"
	"io"
	"time"

	"github.com/gxo-labs/reducto/internal/config"
	"github.com/gxo-labs/reducto/internal/events"
	"github.com/gxo-labs/reducto/internal/logger"
	"github.com/gxo-labs/reducto/internal/metrics"
	"github.com/gxo-labs/reducto/internal/persist"
	"github.com/gxo-labs/reducto/internal/registry"
	"github.com/gxo-labs/reducto/internal/session"
	"github.com/gxo-labs/reducto/internal/tracing"
	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductolog "github.com/gxo-labs/reducto/pkg/reducto/v1/log"
)

// appRuntime is a session with everything around it, built from a Config.
type appRuntime struct {
	cfg       *config.Config
	log       reductolog.Logger
	bus       *events.ChannelEventBus
	metrics   *metrics.PrometheusRegistryProvider
	tracer    *tracing.OtelTracerProvider
	repo      persist.Repository
	persister *persist.Persister
	sess      session.Session

	cancel    context.CancelFunc
	closeRepo func()
}

func loadRuntime(ctx context.Context, path string, logOut io.Writer) (*appRuntime, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	factory, err := registry.Default().Get(cfg.App)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(cfg.GetLogLevel(), cfg.GetLogFormat(), logOut).With("reducto_version", version)
	rt := &appRuntime{cfg: cfg, log: log, closeRepo: func() {}}

	rt.bus = events.NewChannelEventBus(DefaultEventBusSize, log)
	rt.metrics = metrics.NewProcessRegistryProvider()
	rt.tracer, err = tracing.NewProviderFromEnv(ctx, log)
	if err != nil {
		log.Warnf("Failed to initialize tracing from environment: %v. Using NoOp tracer.", err)
		rt.tracer, _ = tracing.NewNoOpProvider()
	}

	runCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	go events.NewMetricsEventListener(rt.bus, rt.metrics.Registry(), log).Start(runCtx)

	rt.repo, rt.closeRepo, err = persist.Open(ctx, cfg.Persistence, log)
	if err != nil {
		rt.close()
		return nil, err
	}

	opts := session.Options{
		Name: cfg.Name,
		StoreOptions: []reducto.StoreOption{
			reducto.WithLogger(log),
			reducto.WithEventBus(rt.bus),
			reducto.WithMetricsRegistryProvider(rt.metrics),
			reducto.WithTracerProvider(rt.tracer),
			reducto.WithStateAccessMode(reducto.StateAccessMode(cfg.GetAccessMode())),
		},
	}
	if rt.repo != nil && cfg.Persistence.Restore {
		opts.Snapshot, err = persist.LoadLatest(ctx, rt.repo, cfg.Name)
		if err != nil {
			rt.close()
			return nil, err
		}
		if opts.Snapshot != nil {
			log.Infof("Restoring store '%s' from its latest snapshot (%d bytes)", cfg.Name, len(opts.Snapshot))
		}
	}

	rt.sess, err = factory(opts)
	if err != nil {
		rt.close()
		return nil, err
	}

	if rt.repo != nil {
		rt.persister = persist.NewPersister(rt.sess, rt.repo, persist.PersisterOptions{
			Driver:   string(cfg.GetDriver()),
			Retry:    cfg.Persistence.GetRetry(),
			EventBus: rt.bus,
			Logger:   log,
		})
	}
	return rt, nil
}

// close flushes the persister, then releases the tracer, repository and bus.
func (rt *appRuntime) close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var flushErr error
	if rt.persister != nil {
		if flushErr = rt.persister.Stop(shutdownCtx); flushErr != nil {
			rt.log.Errorf("Final snapshot failed: %v", flushErr)
		}
	}
	if rt.tracer != nil {
		if err := rt.tracer.Shutdown(shutdownCtx); err != nil {
			rt.log.Warnf("Error shutting down tracer provider: %v", err)
		}
	}
	rt.closeRepo()
	if rt.cancel != nil {
		rt.cancel()
	}
	rt.bus.Close()
	return flushErr
}
