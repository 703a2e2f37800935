package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"PhantomEx/internal/domain/models"
	"PhantomEx/internal/domain/repository"
	"PhantomEx/internal/handler/ws"
	"PhantomEx/internal/usecase"
	"PhantomEx/pkg/config"
	xhttp "PhantomEx/pkg/http"
	applogger "PhantomEx/pkg/logger"
)

// App encapsulates the entire application lifecycle: schema init, agent
// restore, the market feed loop, and the HTTP/WS server.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	store    repository.Store
	registry *usecase.Registry
	feed     *usecase.MarketFeed
	hub      *ws.Hub
	handler  xhttp.Handler

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, store repository.Store, registry *usecase.Registry, feed *usecase.MarketFeed, hub *ws.Hub, handler xhttp.Handler) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		registry: registry,
		feed:     feed,
		hub:      hub,
		handler:  handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.store.Init(ctx); err != nil {
		a.log.Error("schema init failed", applogger.Error(err))
		return err
	}

	restored, err := a.registry.Load(ctx)
	if err != nil {
		a.log.Error("agent restore failed", applogger.Error(err))
		return err
	}

	a.hub.Bind(a.registry, a.feed)

	// Every tick fans out to all agents and to connected browsers.
	a.feed.Subscribe(func(prices models.PriceSnapshot) {
		a.registry.OnTick(ctx, prices)
		a.hub.Prices(prices)
	})

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	a.httpServer.Echo().GET("/ws", a.hub.Serve)

	go func() {
		if err := a.feed.Start(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("market feed stopped", applogger.Error(err))
		}
	}()
	a.log.Info("market feed started",
		applogger.String("mode", a.cfg.Market.Mode),
		applogger.Strings("symbols", a.cfg.Market.Symbols),
		applogger.Duration("interval", a.cfg.Market.Interval))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("ready",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("agents", restored))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops the HTTP server and closes the store.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", applogger.Error(err))
	}
	a.log.Info("stopped")
	return nil
}
