package di

import (
	"database/sql"
	"fmt"
	"time"

	"PhantomEx/internal/domain/repository"
	"PhantomEx/internal/handler/api"
	"PhantomEx/internal/handler/ws"
	internalrepo "PhantomEx/internal/repository"
	"PhantomEx/internal/service/coingecko"
	"PhantomEx/internal/service/oracle"
	"PhantomEx/internal/usecase"
	"PhantomEx/pkg/config"
	xhttp "PhantomEx/pkg/http"
	applogger "PhantomEx/pkg/logger"
	"PhantomEx/pkg/metrics"
	"PhantomEx/pkg/server"
	"PhantomEx/pkg/sqlite"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideDB opens the SQLite database.
func ProvideDB(cfg *config.Config) (*sql.DB, error) {
	return sqlite.Open(cfg.Database.Path)
}

// ProvideStore creates the persistence layer.
func ProvideStore(db *sql.DB, cfg *config.Config, log *applogger.Logger) repository.Store {
	return internalrepo.NewSQLiteStore(db, cfg.Equity.Retention, log)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePriceSource creates the CoinGecko client for the configured universe.
func ProvidePriceSource(cfg *config.Config) repository.PriceSource {
	return coingecko.New("", 10*time.Second, cfg.Market.Symbols)
}

// ProvideOracle creates the decision oracle adapter.
func ProvideOracle(cfg *config.Config, log *applogger.Logger) repository.Oracle {
	return oracle.New(oracle.Config{
		BaseURL:      cfg.Oracle.BaseURL,
		APIKey:       cfg.Oracle.APIKey,
		DefaultModel: cfg.Oracle.DefaultModel,
		Timeout:      cfg.Oracle.Timeout,
		HistoryDepth: cfg.Oracle.HistoryDepth,
	}, log)
}

// ProvideHub creates the WebSocket hub, which doubles as the Notifier.
func ProvideHub(log *applogger.Logger) *ws.Hub {
	return ws.NewHub(log)
}

// ProvideNotifier exposes the hub through the Notifier port.
func ProvideNotifier(hub *ws.Hub) repository.Notifier {
	return hub
}

// ProvideRegistry creates the agent registry.
func ProvideRegistry(store repository.Store, orc repository.Oracle, notifier repository.Notifier, m repository.Metrics, log *applogger.Logger) *usecase.Registry {
	return usecase.NewRegistry(store, orc, notifier, m, log)
}

// ProvideMarketFeed creates the market feed in the configured mode.
func ProvideMarketFeed(cfg *config.Config, source repository.PriceSource, store repository.Store, m repository.Metrics, log *applogger.Logger) *usecase.MarketFeed {
	return usecase.NewMarketFeed(cfg.Market.Mode, cfg.Market.Interval, cfg.Market.ReplayFile, source, store, m, log)
}

// ProvideArchiver creates the session archiver.
func ProvideArchiver(store repository.Store, orc repository.Oracle, log *applogger.Logger) *usecase.SessionArchiver {
	return usecase.NewSessionArchiver(store, orc, log)
}

// ProvideHTTPHandler creates the REST handler.
func ProvideHTTPHandler(log *applogger.Logger, registry *usecase.Registry, feed *usecase.MarketFeed, archiver *usecase.SessionArchiver, store repository.Store) xhttp.Handler {
	return api.NewHandler(log, registry, feed, archiver, store)
}

// ProvideApp assembles the application.
func ProvideApp(cfg *config.Config, log *applogger.Logger, store repository.Store, registry *usecase.Registry, feed *usecase.MarketFeed, hub *ws.Hub, handler xhttp.Handler) *server.App {
	return server.New(cfg, log, store, registry, feed, hub, handler)
}
