package server

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CarbonPulse/internal/domain/repository"
	mid "CarbonPulse/internal/middleware"
	"CarbonPulse/internal/services/oracle"
	pkgch "CarbonPulse/pkg/clickhouse"
	"CarbonPulse/pkg/config"
	xhttp "CarbonPulse/pkg/http"
	pkgkafka "CarbonPulse/pkg/kafka"
	applogger "CarbonPulse/pkg/logger"
	"CarbonPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	feed        *oracle.Feed
	pipeline    *mid.IngestPipeline
	jobs        *queue.RedisQueue
	sweeper     queue.Job
	events      repository.EventPublisher
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		consumer: consumer,
		kh:       kh,
		chClient: chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetFeed attaches the streaming oracle feed. May be nil when only the
// HTTP oracle is configured.
func (a *App) SetFeed(f *oracle.Feed) { a.feed = f }

// SetPipeline attaches the ingest pipeline so its retry buffer is flushed
// in the background.
func (a *App) SetPipeline(p *mid.IngestPipeline) { a.pipeline = p }

// SetJobQueue attaches the background job queue and the sweep job. The
// queue may be nil; the sweep then runs in-process.
func (a *App) SetJobQueue(q *queue.RedisQueue, sweeper queue.Job) {
	a.jobs = q
	a.sweeper = sweeper
}

// SetPublishers attaches the event publisher for closing on shutdown.
func (a *App) SetPublishers(events repository.EventPublisher) { a.events = events }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Flush buffered measurements in the background
	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	// Start oracle feed
	if a.feed != nil {
		go a.feed.Run(ctx)
		a.log.Info("oracle feed started", applogger.String("url", a.cfg.Oracle.WebSocketURL))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start job queue workers
	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			a.log.Error("job queue start error", applogger.Error(err))
		}
	}

	// Schedule periodic renewal sweeps
	if a.sweeper != nil && a.cfg.Renewal.SweepInterval > 0 {
		go a.sweepLoop(ctx)
		a.log.Info("renewal sweep scheduled",
			applogger.String("interval", a.cfg.Renewal.SweepInterval.String()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// sweepLoop enqueues a full renewal sweep every interval. Without a job
// queue the sweep runs inline.
func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Renewal.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.jobs != nil {
				if err := a.jobs.Enqueue(ctx, a.sweeper.Type(), struct{}{}); err != nil {
					a.log.Warn("sweep enqueue error", applogger.Error(err))
				}
				continue
			}
			if err := a.sweeper.Handle(ctx, json.RawMessage("{}")); err != nil {
				a.log.Warn("sweep error", applogger.Error(err))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	// Stop ingest edges first so nothing new enters the ledger
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			a.log.Warn("oracle feed close error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// Stop background jobs
	if a.jobs != nil {
		if err := a.jobs.Stop(shutdownCtx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients; the event publisher owns the Kafka
	// producer.
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
