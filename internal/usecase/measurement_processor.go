package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"CarbonPulse/internal/domain/models"
	drepo "CarbonPulse/internal/domain/repository"
	"CarbonPulse/internal/health"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/pkg/fixed"
)

// MeasurementProcessor is the ingest path: range-validate, append to the
// ledger, refresh the rolling average and health index in one critical
// section, then archive and surface events. The ledger write is the
// authoritative one; archive and event failures are reported but never
// revert it.
type MeasurementProcessor struct {
	store   *ledger.Store
	health  *health.Engine
	archive drepo.Archive
	events  drepo.EventPublisher
	metrics drepo.Metrics
	minVal  fixed.Num
	maxVal  fixed.Num
	now     func() time.Time
	log     zerolog.Logger
}

// NewMeasurementProcessor wires the ingest pipeline. maxVal zero disables
// the upper range bound.
func NewMeasurementProcessor(
	store *ledger.Store,
	healthEngine *health.Engine,
	archive drepo.Archive,
	events drepo.EventPublisher,
	metrics drepo.Metrics,
	minVal, maxVal fixed.Num,
	log zerolog.Logger,
) *MeasurementProcessor {
	return &MeasurementProcessor{
		store:   store,
		health:  healthEngine,
		archive: archive,
		events:  events,
		metrics: metrics,
		minVal:  minVal,
		maxVal:  maxVal,
		now:     time.Now,
		log:     log.With().Str("component", "measurement_processor").Logger(),
	}
}

// WithClock overrides the time source, for tests.
func (p *MeasurementProcessor) WithClock(now func() time.Time) *MeasurementProcessor {
	p.now = now
	return p
}

func (p *MeasurementProcessor) validate(m *models.Measurement) error {
	if m == nil {
		return fmt.Errorf("measurement is nil")
	}
	if m.Entity == "" || m.Sector == "" {
		return models.ErrInvalidState
	}
	if m.Value.LT(p.minVal) {
		return models.ErrValueOutOfRange
	}
	if !p.maxVal.IsZero() && m.Value.GT(p.maxVal) {
		return models.ErrValueOutOfRange
	}
	return nil
}

// Process ingests one measurement. Returns the post-update health state so
// callers can answer synchronously.
func (p *MeasurementProcessor) Process(ctx context.Context, m *models.Measurement) (models.HealthState, error) {
	start := time.Now()
	hs, err := p.process(ctx, m)
	if err != nil {
		return hs, err
	}
	if p.archive != nil {
		if err := p.archive.Append(ctx, m); err != nil {
			p.metrics.RecordError("archive")
			p.log.Error().Err(err).Str("entity", m.Entity).Str("sector", m.Sector).Msg("archive append failed")
		}
	}
	p.metrics.RecordLatency("ingest", time.Since(start).Seconds())
	return hs, nil
}

// ProcessBatch ingests a batch with per-record semantics: each record is
// applied independently and a failed record does not stop the rest. The
// first error is returned after the whole batch has been attempted.
func (p *MeasurementProcessor) ProcessBatch(ctx context.Context, ms []*models.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	start := time.Now()
	var firstErr error
	accepted := make([]*models.Measurement, 0, len(ms))
	for _, m := range ms {
		if _, err := p.process(ctx, m); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		accepted = append(accepted, m)
	}
	if p.archive != nil && len(accepted) > 0 {
		if err := p.archive.AppendBatch(ctx, accepted); err != nil {
			p.metrics.RecordError("archive_batch")
			p.log.Error().Err(err).Int("count", len(accepted)).Msg("archive batch failed")
		}
	}
	p.metrics.RecordLatency("ingest_batch", time.Since(start).Seconds())
	return firstErr
}

// process is Process without the per-record archive write; batch archiving
// happens once for all accepted records.
func (p *MeasurementProcessor) process(ctx context.Context, m *models.Measurement) (models.HealthState, error) {
	var hs models.HealthState
	if err := p.validate(m); err != nil {
		p.metrics.RecordError("validate")
		return hs, err
	}
	now := p.now().Unix()
	alert := false
	err := p.store.Update(m.Entity, func(st *models.EntityState) error {
		if err := ledger.Record(st, m.Sector, m.Timestamp, m.Value, now); err != nil {
			return err
		}
		ledger.Refresh(st, m.Sector, p.store.Window())
		alert = p.health.Apply(st)
		hs = st.Health
		return nil
	})
	if err != nil {
		p.metrics.RecordError("record")
		return hs, err
	}
	p.metrics.RecordMeasurement(m.Entity, m.Sector)
	p.metrics.RecordHealthIndex(m.Entity, hs.Index.Float64())
	if alert {
		p.publishAlert(ctx, m.Entity, hs)
	}
	return hs, nil
}

func (p *MeasurementProcessor) publishAlert(ctx context.Context, entity string, hs models.HealthState) {
	if p.events == nil {
		return
	}
	idx := hs.Index
	e := &models.Event{
		Type:        models.EventVulnerabilityAlert,
		Entity:      entity,
		Timestamp:   p.now().Unix(),
		HealthIndex: &idx,
	}
	if err := p.events.Publish(ctx, e); err != nil {
		p.metrics.RecordError("publish_alert")
		p.log.Error().Err(err).Str("entity", entity).Msg("vulnerability alert publish failed")
		return
	}
	p.metrics.RecordEvent(string(models.EventVulnerabilityAlert))
	p.log.Warn().Str("entity", entity).Str("health_index", hs.Index.String()).Msg("entity turned vulnerable")
}
