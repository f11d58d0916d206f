// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"CarbonPulse/pkg/config"
	"CarbonPulse/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	store := ProvideLedgerStore(cfg)
	engine, err := ProvideHealthEngine(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	archive, err := ProvideMeasurementArchive(client, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	eventPublisher := ProvideEventPublisher(producer, cfg)
	metrics := ProvideMetrics()
	measurementProcessor, err := ProvideMeasurementProcessor(store, engine, archive, eventPublisher, metrics, cfg, logger)
	if err != nil {
		return nil, err
	}
	registry := ProvideRegistry(cfg, logger)
	feed := ProvideOracleFeed(cfg, logger)
	priceOracle, err := ProvidePriceOracle(feed, metrics, cfg)
	if err != nil {
		return nil, err
	}
	market, err := ProvideMarket(store, registry, priceOracle, cfg, logger)
	if err != nil {
		return nil, err
	}
	renewalEngine, err := ProvideRenewalEngine(store, market, priceOracle, cfg, logger)
	if err != nil {
		return nil, err
	}
	bytesCache := ProvideCache(cfg)
	measurementsHandler := ProvideMeasurementsHandler(logger, store, measurementProcessor, renewalEngine, archive, bytesCache)
	renewalsHandler := ProvideRenewalsHandler(logger, renewalEngine, eventPublisher, metrics)
	marketHandler := ProvideMarketHandler(logger, market, eventPublisher, metrics)
	reporter := ProvideReporter(store)
	reportsHandler := ProvideReportsHandler(logger, reporter, bytesCache)
	router := ProvideRouter(measurementsHandler, renewalsHandler, marketHandler, reportsHandler)
	ingestPipeline := ProvideIngestPipeline(measurementProcessor, metrics)
	consumer, err := ProvideKafkaConsumer(cfg)
	if err != nil {
		return nil, err
	}
	kafkaMeasurementsHandler := ProvideKafkaMeasurementsHandler(measurementProcessor, ingestPipeline, metrics, cfg)
	renewalSweeper := ProvideRenewalSweeper(store, renewalEngine, eventPublisher, metrics, logger)
	redisQueue := ProvideJobQueue(cfg, logger, renewalSweeper)
	app := ProvideApp(cfg, logger, router, feed, ingestPipeline, consumer, kafkaMeasurementsHandler, redisQueue, renewalSweeper, client, eventPublisher)
	return app, nil
}
