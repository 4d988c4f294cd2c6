//go:build wireinject
// +build wireinject

package di

import (
	"FinFit/pkg/config"
	"FinFit/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideForecastStore,
		ProvideForecastPublisher,
		ProvideSeriesSource,
		ProvideStreamHub,

		// Use cases
		ProvideFitter,
		ProvideForecastProcessor,
		ProvideForecastPipeline,
		ProvideForecastRunner,
		ProvideForecastService,
		ProvideKafkaSeriesHandler,

		// Transport
		ProvideForecastEchoHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
