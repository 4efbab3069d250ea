package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"EmaScreen/internal/domain/repository"
	"EmaScreen/internal/scheduler"
	"EmaScreen/internal/usecase"
	"EmaScreen/pkg/cache"
	"EmaScreen/pkg/config"
	xhttp "EmaScreen/pkg/http"
	applogger "EmaScreen/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	screener  *usecase.Screener
	updater   *usecase.Updater
	scheduler *scheduler.Scheduler
	handler   xhttp.Handler
	history   repository.HistoryStore
	publisher repository.UpdatePublisher
	kv        cache.Store

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	screener *usecase.Screener,
	updater *usecase.Updater,
	sched *scheduler.Scheduler,
	handler xhttp.Handler,
	history repository.HistoryStore,
	publisher repository.UpdatePublisher,
	kv cache.Store,
) *App {
	return &App{
		cfg:       cfg,
		logger:    log,
		screener:  screener,
		updater:   updater,
		scheduler: sched,
		handler:   handler,
		history:   history,
		publisher: publisher,
		kv:        kv,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rebuild the in-memory screen from persisted state before serving.
	if err := a.screener.Load(ctx); err != nil {
		return err
	}

	a.updater.Start(ctx)
	a.scheduler.Start()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("application started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("backend", a.cfg.Storage.Backend))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel() // stops an active run at the next instrument boundary
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("publisher close error", applogger.Error(err))
	}
	if err := a.history.Close(); err != nil {
		a.logger.Warn("history store close error", applogger.Error(err))
	}
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("cache close error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
