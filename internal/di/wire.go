//go:build wireinject
// +build wireinject

package di

import (
	"GrowthOpt/pkg/config"
	"GrowthOpt/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,

		// Repositories
		ProvideQuotes,
		ProvideModelStore,
		ProvideReports,

		// Domain services
		ProvideCorrelationSource,
		ProvideOptimizer,
		ProvideModelFactory,

		// Use cases
		ProvideForecaster,
		ProvideSeqTester,

		// HTTP surface and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
