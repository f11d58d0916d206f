package repository

import (
	"context"
	"time"

	"CarbonPulse/internal/domain/models"
)

// Archive is the append-only historical store for measurements. The
// authoritative windowed state lives in the ledger; the archive serves
// range queries and reports.
type Archive interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Append(ctx context.Context, m *models.Measurement) error
	AppendBatch(ctx context.Context, ms []*models.Measurement) error
	Query(ctx context.Context, entity, sector string, from, to time.Time, limit int) ([]*models.Measurement, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// EventPublisher surfaces observability events (vulnerability alerts,
// renewal and trade completions) to the events topic.
type EventPublisher interface {
	Publish(ctx context.Context, e *models.Event) error
	Close() error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordMeasurement(entity, sector string)
	RecordError(kind string)
	RecordHealthIndex(entity string, index float64)
	RecordLastPrice(price float64)
	RecordLatency(op string, seconds float64)
	RecordRenewal(entity, sector string)
	RecordTrade(entity, sector string)
	RecordEvent(kind string)
}
