package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"GrowthOpt/internal/domain/repository"
	"GrowthOpt/pkg/config"
	xhttp "GrowthOpt/pkg/http"
	"GrowthOpt/pkg/logger"
)

// App owns the HTTP server and the infrastructure handles, and runs the
// start/wait/shutdown lifecycle.
type App struct {
	cfg     *config.Config
	log     *logger.Logger
	handler xhttp.Handler

	quotes  repository.Quotes
	store   repository.ModelStore
	reports repository.Reports // nil when report publishing is disabled

	httpServer *xhttp.Server
}

func New(cfg *config.Config, log *logger.Logger, handler xhttp.Handler, quotes repository.Quotes, store repository.ModelStore, reports repository.Reports) *App {
	return &App{
		cfg:     cfg,
		log:     log.With("app"),
		handler: handler,
		quotes:  quotes,
		store:   store,
		reports: reports,
	}
}

// Run starts the HTTP server and blocks until an interrupt or termination
// signal arrives.
func (a *App) Run() error {
	a.httpServer = xhttp.NewServer(a.handler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		return err
	}

	a.log.Info("server started",
		logger.Int("port", a.cfg.Server.Port),
		logger.String("environment", a.cfg.Environment),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")

	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}

	if a.reports != nil {
		if err := a.reports.Close(); err != nil {
			a.log.Warn("reports close error", logger.Error(err))
		}
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("model store close error", logger.Error(err))
	}

	if err := a.quotes.Close(); err != nil {
		a.log.Warn("quotes close error", logger.Error(err))
	}

	a.log.Info("shutdown complete")

	return nil
}
