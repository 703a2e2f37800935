//go:build wireinject
// +build wireinject

package di

import (
	"PhantomEx/pkg/config"
	"PhantomEx/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideDB,
		ProvideStore,
		ProvidePriceSource,
		ProvideOracle,

		// Transport
		ProvideHub,
		ProvideNotifier,
		ProvideHTTPHandler,

		// Use cases
		ProvideRegistry,
		ProvideMarketFeed,
		ProvideArchiver,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
