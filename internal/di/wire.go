//go:build wireinject
// +build wireinject

package di

import (
	"CarbonPulse/pkg/config"
	"CarbonPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideMeasurementArchive,
		ProvideEventPublisher,

		// Domain engines
		ProvideLedgerStore,
		ProvideHealthEngine,
		ProvideOracleFeed,
		ProvidePriceOracle,
		ProvideRegistry,
		ProvideMarket,
		ProvideRenewalEngine,

		// Use cases
		ProvideMeasurementProcessor,
		ProvideIngestPipeline,
		ProvideKafkaMeasurementsHandler,
		ProvideReporter,
		ProvideRenewalSweeper,
		ProvideJobQueue,

		// HTTP handlers
		ProvideMeasurementsHandler,
		ProvideRenewalsHandler,
		ProvideMarketHandler,
		ProvideReportsHandler,
		ProvideRouter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
