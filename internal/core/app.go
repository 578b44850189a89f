// Package core wires the daemon together: config, logging, event bus,
// storage, the scheduler and the feed.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jobmill/internal/config"
	"jobmill/internal/eventbus"
	"jobmill/internal/feed"
	"jobmill/internal/logging"
	"jobmill/internal/sched"
	"jobmill/internal/storage"
	logx "jobmill/pkg/logx"
)

const defaultDrainTimeout = 5 * time.Second

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	slgs *logging.Service

	bus   eventbus.Bus
	store storage.Store
	sched *sched.Service
	feed  *feed.Service

	drain time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	cfgCh  chan *config.Config
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	slogSvc, slogger := logging.New(loggingConfig(cfg))

	bus := eventbus.New()

	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}

	drain, err := config.ParseDurationOrDefault("scheduler.drain_timeout", cfg.Scheduler.DrainTimeout, defaultDrainTimeout)
	if err != nil {
		return nil, err
	}

	schedSvc := sched.New(sched.Config{
		Capacity:    cfg.Scheduler.Capacity,
		HistorySize: cfg.Scheduler.HistorySize,
	}, slogger.With(slog.String("comp", "sched")), bus)

	feedSvc := feed.New(slogger.With(slog.String("comp", "feed")), schedSvc)
	defs, err := buildDefinitions(cfg)
	if err != nil {
		return nil, err
	}
	feedSvc.Apply(defs)

	return &App{
		cfgm:  cfgm,
		log:   log,
		logs:  logSvc,
		slgs:  slogSvc,
		bus:   bus,
		store: store,
		sched: schedSvc,
		feed:  feedSvc,
		drain: drain,
	}, nil
}

// Scheduler exposes the lifecycle core for embedders.
func (a *App) Scheduler() *sched.Service { return a.sched }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if cfg.Scheduler.Capacity < 0 {
			return fmt.Errorf("scheduler.capacity must be >= 0")
		}
		if _, err := config.ParseDurationField("scheduler.drain_timeout", cfg.Scheduler.DrainTimeout); err != nil {
			return err
		}
		_, err := buildDefinitions(cfg)
		return err
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	cfgCh := a.cfgm.Subscribe(1)
	a.cfgCh = cfgCh
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx, cfgCh)
	}()

	if a.store != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			runRecorder(runCtx, a.bus, a.store, a.log.With(logx.String("comp", "recorder")))
		}()
	}

	a.feed.Start(runCtx)
	a.log.Info("started",
		logx.Int("capacity", a.sched.Snapshot().Capacity),
		logx.Bool("storage", a.store != nil))
	return nil
}

func (a *App) reloadLoop(ctx context.Context, cfgCh chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-cfgCh:
			if !ok || cfg == nil {
				return
			}
			a.applyConfig(cfg)
		}
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.slgs.Apply(loggingConfig(cfg))

	// Validator already vetted these; a failure here means a race with an
	// even newer file and the next publish will settle it.
	defs, err := buildDefinitions(cfg)
	if err != nil {
		a.log.Warn("reload skipped", logx.Err(err))
		return
	}
	a.feed.Apply(defs)

	if cfg.Scheduler.Capacity != 0 && cfg.Scheduler.Capacity != a.sched.Snapshot().Capacity {
		a.log.Warn("scheduler.capacity changed; restart required to take effect",
			logx.Int("configured", cfg.Scheduler.Capacity))
	}
	a.log.Info("config applied", logx.Int("jobs", len(defs)))
}

func (a *App) Stop(ctx context.Context) error {
	a.feed.Stop()
	a.sched.Shutdown(a.drain)

	if a.cancel != nil {
		a.cancel()
	}
	if a.cfgCh != nil {
		a.cfgm.Unsubscribe(a.cfgCh)
		a.cfgCh = nil
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.slgs.Close()
	a.log.Info("stopped")
	return a.logs.Close()
}

func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logging.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
