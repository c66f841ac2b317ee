// Package app assembles the tracker: config, logging, storage, the Telegram
// bot, the check pipeline, the scheduler and the HTTP trigger server.
package app

import (
	"context"
	"errors"
	"sync"

	"voucherbot/internal/bot"
	"voucherbot/internal/config"
	"voucherbot/internal/inventory"
	"voucherbot/internal/monitor"
	"voucherbot/internal/notifier"
	"voucherbot/internal/pipeline"
	"voucherbot/internal/scheduler"
	"voucherbot/internal/server"
	"voucherbot/internal/tracker"
	"voucherbot/internal/transport/telegram/adapter"
	logx "voucherbot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store      *tracker.Store
	tg         *adapter.Adapter
	detector   *monitor.Detector
	dispatcher *notifier.Dispatcher
	pipe       *pipeline.Pipeline
	sched      *scheduler.Service
	srv        *server.Server
	bot        *bot.Service

	triggerEnabled bool

	wg sync.WaitGroup
}

// New loads the config at path and wires every component. Nothing is running
// until Start.
func New(configPath string) (*App, error) {
	mgr := config.NewManager(configPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	mgr.SetLogger(log)

	tg, err := adapter.New(adapter.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.PollTimeout(),
	}, log)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	backend, err := tracker.Open(cfg.Storage, log)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	store := tracker.NewStore(backend, log)

	client := inventory.NewClient(cfg.Monitor.APIURL, cfg.FetchTimeout(), log)
	eval := inventory.NewEvaluator(cfg.Monitor.ProductURL)
	detector := monitor.NewDetector(client, eval, log)

	dispatcher := notifier.New(notifier.Config{
		RatePerSec: cfg.Notifier.RatePerSec,
		RetryMax:   cfg.Notifier.RetryMax,
	}, store, tg, log)

	pipe := pipeline.New(detector, dispatcher, log)

	a := &App{
		cfgMgr:         mgr,
		logSvc:         logSvc,
		log:            log.With(logx.String("comp", "app")),
		store:          store,
		tg:             tg,
		detector:       detector,
		dispatcher:     dispatcher,
		pipe:           pipe,
		triggerEnabled: cfg.Trigger.Enabled,
	}

	a.sched = scheduler.New(cfg.CheckInterval(), func(ctx context.Context) {
		if _, err := pipe.Run(ctx); err != nil {
			a.log.Error("scheduled check failed", logx.Err(err))
		}
	}, log)

	a.srv = server.New(server.Config{
		Addr:          cfg.Trigger.Addr,
		Secret:        cfg.Trigger.Secret,
		EnforceSecret: cfg.Trigger.EnforceSecret,
	}, pipe.Run, log)

	a.bot = bot.New(bot.Config{
		ProductURL:    cfg.Monitor.ProductURL,
		CheckInterval: cfg.CheckInterval(),
	}, store, detector, tg, log)
	a.bot.Register()

	return a, nil
}

// Start brings up polling, the scheduler, the trigger server, the config
// watcher and runs one immediate stock check to establish a baseline.
func (a *App) Start(ctx context.Context) error {
	a.tg.Start(ctx)
	a.sched.Start(ctx)
	if a.triggerEnabled {
		if err := a.srv.Start(ctx); err != nil {
			return err
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(ctx, a.applyConfig); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	// Baseline check so the first scheduled tick compares against live state
	// instead of firing on pre-existing stock an hour later.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if _, err := a.pipe.Run(ctx); err != nil {
			a.log.Error("initial check failed", logx.Err(err))
		}
	}()

	a.log.Info("started")
	return nil
}

// Stop shuts components down in reverse dependency order.
func (a *App) Stop(ctx context.Context) {
	a.sched.Stop(ctx)
	if err := a.srv.Stop(ctx); err != nil {
		a.log.Warn("http server shutdown error", logx.Err(err))
	}
	a.tg.Stop(ctx)
	a.wg.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close error", logx.Err(err))
	}
	a.log.Info("stopped")
	a.logSvc.Close()
}

// applyConfig pushes a reloaded config into the running components.
// The listen address, storage driver and bot token only change on restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	a.sched.Apply(cfg.CheckInterval())
	a.dispatcher.Apply(notifier.Config{
		RatePerSec: cfg.Notifier.RatePerSec,
		RetryMax:   cfg.Notifier.RetryMax,
	})
	a.srv.Apply(server.Config{
		Secret:        cfg.Trigger.Secret,
		EnforceSecret: cfg.Trigger.EnforceSecret,
	})
	a.bot.Apply(bot.Config{
		ProductURL:    cfg.Monitor.ProductURL,
		CheckInterval: cfg.CheckInterval(),
	})
}
