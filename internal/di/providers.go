package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/internal/domain/repository"
	"CarbonPulse/internal/domain/service"
	"CarbonPulse/internal/handler/api"
	"CarbonPulse/internal/health"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/internal/market"
	mid "CarbonPulse/internal/middleware"
	"CarbonPulse/internal/renewal"
	internalrepo "CarbonPulse/internal/repository"
	icache "CarbonPulse/internal/service/cache"
	"CarbonPulse/internal/services/oracle"
	"CarbonPulse/internal/services/registry"
	"CarbonPulse/internal/services/token"
	"CarbonPulse/internal/usecase"
	pkgcache "CarbonPulse/pkg/cache"
	pkgch "CarbonPulse/pkg/clickhouse"
	"CarbonPulse/pkg/config"
	"CarbonPulse/pkg/fixed"
	xhttp "CarbonPulse/pkg/http"
	pkgkafka "CarbonPulse/pkg/kafka"
	applogger "CarbonPulse/pkg/logger"
	"CarbonPulse/pkg/metrics"
	"CarbonPulse/pkg/queue"
	"CarbonPulse/pkg/server"
)

// ProvideLogger creates the application logger. Development runs get
// console output; everything else logs JSON.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideMeasurementArchive creates the ClickHouse measurement archive and
// initializes its schema.
func ProvideMeasurementArchive(chClient *pkgch.Client, cfg *config.Config) (repository.Archive, error) {
	arch := internalrepo.NewMeasurementArchive(chClient, cfg.ClickHouse.Table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := arch.Init(ctx); err != nil {
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return arch, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideEventPublisher creates the Kafka publisher for the events topic.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideLedgerStore creates the in-memory measurement ledger.
func ProvideLedgerStore(cfg *config.Config) *ledger.Store {
	var opts []ledger.Option
	if cfg.Ledger.Window > 0 {
		opts = append(opts, ledger.WithWindow(cfg.Ledger.Window))
	}
	return ledger.NewStore(opts...)
}

// ProvideHealthEngine creates the health scoring engine.
func ProvideHealthEngine(cfg *config.Config) (*health.Engine, error) {
	maxSafe, err := parseFixed(cfg.Health.MaxSafeEmission)
	if err != nil {
		return nil, fmt.Errorf("health.max_safe_emission: %w", err)
	}
	threshold, err := parseFixed(cfg.Health.VulnerableThreshold)
	if err != nil {
		return nil, fmt.Errorf("health.vulnerable_threshold: %w", err)
	}
	return health.NewEngine(maxSafe, threshold), nil
}

// ProvideOracleFeed creates the streaming price feed when a WebSocket URL
// is configured. Returns nil otherwise; the HTTP client then serves prices
// directly.
func ProvideOracleFeed(cfg *config.Config, l *applogger.Logger) *oracle.Feed {
	if cfg.Oracle.WebSocketURL == "" {
		return nil
	}
	var fallback service.PriceOracle
	if cfg.Oracle.HTTPURL != "" {
		fallback = oracle.NewClient(cfg.Oracle.HTTPURL, xhttp.NewClient(xhttp.WithTimeout(5*time.Second)))
	}
	return oracle.NewFeed(cfg.Oracle.WebSocketURL, cfg.Oracle.ReconnectDelay, cfg.Oracle.PingInterval, fallback, l.Zerolog())
}

// ProvidePriceOracle selects the price source: the streaming feed when
// available, otherwise the HTTP client. Every served price is mirrored to
// the last-price gauge.
func ProvidePriceOracle(feed *oracle.Feed, m repository.Metrics, cfg *config.Config) (service.PriceOracle, error) {
	var src service.PriceOracle
	switch {
	case feed != nil:
		src = feed
	case cfg.Oracle.HTTPURL != "":
		src = oracle.NewClient(cfg.Oracle.HTTPURL, xhttp.NewClient(xhttp.WithTimeout(5*time.Second)))
	default:
		return nil, fmt.Errorf("no oracle configured")
	}
	return &meteredOracle{src: src, metrics: m}, nil
}

type meteredOracle struct {
	src     service.PriceOracle
	metrics repository.Metrics
}

func (o *meteredOracle) Price(ctx context.Context) (fixed.Num, error) {
	p, err := o.src.Price(ctx)
	if err != nil {
		o.metrics.RecordError("oracle_price")
		return p, err
	}
	o.metrics.RecordLastPrice(p.Float64())
	return p, nil
}

// ProvideRegistry creates the participant registry client. Without a
// configured URL every participant is admitted, which suits local runs.
// Lookups are cached: layered memory+Redis when Redis is enabled, plain
// memory otherwise.
func ProvideRegistry(cfg *config.Config, l *applogger.Logger) service.Registry {
	if cfg.Registry.URL == "" {
		return registry.Static{}
	}
	timeout := cfg.Registry.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := registry.NewClient(cfg.Registry.URL, xhttp.NewClient(xhttp.WithTimeout(timeout)))
	c.SetCache(provideCacheService(cfg, l), 30*time.Second)
	return c
}

func provideCacheService(cfg *config.Config, l *applogger.Logger) pkgcache.Service {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache()
	}
	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		l.Warn("redis cache unavailable, using memory", applogger.Error(err))
		return pkgcache.NewMemoryCache()
	}
	return pkgcache.NewLayeredCache(rc)
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideMarket creates the credit market with its two token backends.
// Tokens without configured URLs fall back to the in-process ledgers.
func ProvideMarket(
	store *ledger.Store,
	reg service.Registry,
	priceOracle service.PriceOracle,
	cfg *config.Config,
	l *applogger.Logger,
) (*market.Market, error) {
	credit := provideToken("credit", cfg.Tokens.CreditURL)
	currency := provideToken("currency", cfg.Tokens.CurrencyURL)

	minTrade, err := parseFixed(cfg.Market.MinTrade)
	if err != nil {
		return nil, fmt.Errorf("market.min_trade: %w", err)
	}
	maxTrade, err := parseFixed(cfg.Market.MaxTrade)
	if err != nil {
		return nil, fmt.Errorf("market.max_trade: %w", err)
	}
	slippage, err := parseFixed(cfg.Market.Slippage)
	if err != nil {
		return nil, fmt.Errorf("market.slippage: %w", err)
	}

	mcfg := market.Config{
		MinTrade: minTrade,
		MaxTrade: maxTrade,
		Slippage: slippage,
		Operator: cfg.Market.Operator,
	}
	return market.New(store, reg, credit, currency, priceOracle, mcfg, l.Zerolog()), nil
}

func provideToken(name, url string) service.AssetToken {
	if url == "" {
		return token.NewMemory()
	}
	return token.NewClient(name, url, xhttp.NewClient(xhttp.WithTimeout(5*time.Second)))
}

// ProvideRenewalEngine creates the renewal engine over the ledger, with
// the market as its credit ledger.
func ProvideRenewalEngine(
	store *ledger.Store,
	m *market.Market,
	priceOracle service.PriceOracle,
	cfg *config.Config,
	l *applogger.Logger,
) (*renewal.Engine, error) {
	params, err := parseRenewalParams(cfg)
	if err != nil {
		return nil, err
	}
	target, err := parseFixed(cfg.Renewal.ReductionTarget)
	if err != nil {
		return nil, fmt.Errorf("renewal.reduction_target: %w", err)
	}
	rcfg := renewal.Config{
		Params:             params,
		TickInterval:       cfg.Renewal.TickInterval,
		MinRenewalInterval: cfg.Renewal.MinInterval,
		MaxRenewals:        cfg.Renewal.MaxRenewals,
		ReductionTarget:    target,
	}
	return renewal.NewEngine(store, m, priceOracle, rcfg, l.Zerolog()), nil
}

func parseRenewalParams(cfg *config.Config) (models.RenewalParams, error) {
	var p models.RenewalParams
	var err error
	if p.TickSize, err = parseFixed(cfg.Renewal.TickSize); err != nil {
		return p, fmt.Errorf("renewal.tick_size: %w", err)
	}
	if p.RewardRate, err = parseFixed(cfg.Renewal.RewardRate); err != nil {
		return p, fmt.Errorf("renewal.reward_rate: %w", err)
	}
	if p.SalvageValue, err = parseFixed(cfg.Renewal.SalvageValue); err != nil {
		return p, fmt.Errorf("renewal.salvage_value: %w", err)
	}
	if p.PenaltyRate, err = parseFixed(cfg.Renewal.PenaltyRate); err != nil {
		return p, fmt.Errorf("renewal.penalty_rate: %w", err)
	}
	if p.DiscountFactor, err = parseFixed(cfg.Renewal.DiscountFactor); err != nil {
		return p, fmt.Errorf("renewal.discount_factor: %w", err)
	}
	return p, nil
}

// ProvideMeasurementProcessor creates the ingest use case.
func ProvideMeasurementProcessor(
	store *ledger.Store,
	healthEngine *health.Engine,
	archive repository.Archive,
	events repository.EventPublisher,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) (*usecase.MeasurementProcessor, error) {
	minVal, err := parseFixed(cfg.Ledger.MinValue)
	if err != nil {
		return nil, fmt.Errorf("ledger.min_value: %w", err)
	}
	maxVal, err := parseFixed(cfg.Ledger.MaxValue)
	if err != nil {
		return nil, fmt.Errorf("ledger.max_value: %w", err)
	}
	return usecase.NewMeasurementProcessor(store, healthEngine, archive, events, m, minVal, maxVal, l.Zerolog()), nil
}

// ProvideIngestPipeline creates the throttling/buffering pipeline between
// the transport edges and the processor.
func ProvideIngestPipeline(proc *usecase.MeasurementProcessor, m repository.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(proc, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideKafkaMeasurementsHandler registers the handler for the inbound
// measurements topic. Single measurements route through the pipeline.
func ProvideKafkaMeasurementsHandler(
	proc *usecase.MeasurementProcessor,
	pipe *mid.IngestPipeline,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.KafkaMeasurementsHandler {
	h := usecase.NewKafkaMeasurementsHandler(cfg.Kafka.MeasurementsTopic, proc, m)
	h.SetPipeline(pipe)
	return h
}

// ProvideReporter creates the report builder over the ledger.
func ProvideReporter(store *ledger.Store) *usecase.Reporter {
	return usecase.NewReporter(store)
}

// ProvideRenewalSweeper creates the background sweep job.
func ProvideRenewalSweeper(
	store *ledger.Store,
	engine *renewal.Engine,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.RenewalSweeper {
	return usecase.NewRenewalSweeper(store, engine, events, m, l.Zerolog())
}

// ProvideJobQueue creates the Redis-backed job queue with the sweeper
// registered. Returns nil when Redis is disabled; the sweep then runs
// in-process on a ticker.
func ProvideJobQueue(cfg *config.Config, l *applogger.Logger, sweeper *usecase.RenewalSweeper) *queue.RedisQueue {
	if !cfg.Redis.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	qcfg := &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 15 * time.Second,
	}
	return queue.NewRedisConsumer(l, qcfg, client, []queue.Job{sweeper})
}

// ProvideCache creates the response cache: Redis when enabled, otherwise
// an in-process TTL map.
func ProvideCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideMeasurementsHandler creates the measurements/health API handler.
func ProvideMeasurementsHandler(
	l *applogger.Logger,
	store *ledger.Store,
	proc *usecase.MeasurementProcessor,
	engine *renewal.Engine,
	archive repository.Archive,
	c icache.BytesCache,
) *api.MeasurementsHandler {
	h := api.NewMeasurementsHandler(l, store, proc, engine)
	h.SetCache(c)
	h.SetArchive(archive)
	return h
}

// ProvideRenewalsHandler creates the renewals API handler.
func ProvideRenewalsHandler(l *applogger.Logger, engine *renewal.Engine, events repository.EventPublisher, m repository.Metrics) *api.RenewalsHandler {
	return api.NewRenewalsHandler(l, engine, events, m)
}

// ProvideMarketHandler creates the market API handler.
func ProvideMarketHandler(l *applogger.Logger, mk *market.Market, events repository.EventPublisher, m repository.Metrics) *api.MarketHandler {
	return api.NewMarketHandler(l, mk, events, m)
}

// ProvideReportsHandler creates the reports API handler.
func ProvideReportsHandler(l *applogger.Logger, reporter *usecase.Reporter, c icache.BytesCache) *api.ReportsHandler {
	h := api.NewReportsHandler(l, reporter)
	h.SetCache(c)
	return h
}

// ProvideRouter bundles the API handlers.
func ProvideRouter(mh *api.MeasurementsHandler, rh *api.RenewalsHandler, mkh *api.MarketHandler, rph *api.ReportsHandler) *api.Router {
	return api.NewRouter(mh, rh, mkh, rph)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	router *api.Router,
	feed *oracle.Feed,
	pipe *mid.IngestPipeline,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaMeasurementsHandler,
	jobs *queue.RedisQueue,
	sweeper *usecase.RenewalSweeper,
	chClient *pkgch.Client,
	events repository.EventPublisher,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, l, consumer, kh, chClient)
	app.SetHTTPHandler(router)
	app.SetFeed(feed)
	app.SetPipeline(pipe)
	app.SetJobQueue(jobs, sweeper)
	app.SetPublishers(events)
	return app
}

// parseFixed parses a decimal tunable; empty means "use the default",
// which the component constructors apply on zero.
func parseFixed(s string) (fixed.Num, error) {
	if s == "" {
		return fixed.Num{}, nil
	}
	return fixed.Parse(s)
}
