//go:build wireinject
// +build wireinject

package di

import (
	"StockSage/pkg/config"
	"StockSage/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Shared infrastructure
		ProvideCache,
		ProvideRateLimiter,
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// External data sources
		ProvideFinnhubClient,
		ProvideMarketData,
		ProvideNewsFeed,
		ProvideMacroData,
		ProvideTextGenerator,

		// Analysis core
		ProvideIndicatorEngine,
		ProvideAgents,
		ProvideSynthesizer,
		ProvideOrchestrator,
		ProvideChartUseCase,

		// Archiving
		ProvidePublisher,
		ProvideArchive,
		ProvideResultProcessor,
		ProvideResultPipeline,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
