package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"CarbonPulse/internal/domain/models"
	drepo "CarbonPulse/internal/domain/repository"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/internal/renewal"
	"CarbonPulse/pkg/queue"
)

// SweepPayload names one (entity, sector) to renew. An empty payload sweeps
// every active sector of every entity.
type SweepPayload struct {
	Entity string `json:"entity,omitempty"`
	Sector string `json:"sector,omitempty"`
}

// RenewalSweeper is the queue job driving time-triggered renewals. Gating
// errors (interval not elapsed, renewal limit) are expected during a sweep
// and skipped; anything else is logged and counted.
type RenewalSweeper struct {
	store   *ledger.Store
	engine  *renewal.Engine
	events  drepo.EventPublisher
	metrics drepo.Metrics
	log     zerolog.Logger
}

func NewRenewalSweeper(store *ledger.Store, engine *renewal.Engine, events drepo.EventPublisher, metrics drepo.Metrics, log zerolog.Logger) *RenewalSweeper {
	return &RenewalSweeper{
		store:   store,
		engine:  engine,
		events:  events,
		metrics: metrics,
		log:     log.With().Str("component", "renewal_sweeper").Logger(),
	}
}

func (s *RenewalSweeper) Name() string { return "renewal_sweeper" }
func (s *RenewalSweeper) Type() string { return "renewal.sweep" }

func (s *RenewalSweeper) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[SweepPayload](payload)
	if err != nil {
		return err
	}
	if p.Entity != "" && p.Sector != "" {
		return s.renew(ctx, p.Entity, p.Sector)
	}
	for _, entity := range s.store.Entities() {
		for _, sector := range s.store.Sectors(entity) {
			if err := s.renew(ctx, entity, sector); err != nil {
				s.log.Error().Err(err).Str("entity", entity).Str("sector", sector).Msg("sweep renewal failed")
			}
		}
	}
	return nil
}

func (s *RenewalSweeper) renew(ctx context.Context, entity, sector string) error {
	res, err := s.engine.Execute(entity, sector)
	if err != nil {
		if errors.Is(err, models.ErrIntervalNotElapsed) || errors.Is(err, models.ErrRenewalLimitExceeded) || errors.Is(err, models.ErrInvalidState) {
			return nil
		}
		s.metrics.RecordError("renewal")
		return err
	}
	if res.Ticks == 0 {
		return nil
	}
	s.metrics.RecordRenewal(entity, sector)
	if s.events != nil {
		temp, carbon := res.TemperatureReduction, res.CarbonReduction
		e := &models.Event{
			Type:                 models.EventRenewalCompleted,
			Entity:               entity,
			Sector:               sector,
			Timestamp:            time.Now().Unix(),
			Ticks:                res.Ticks,
			TemperatureReduction: &temp,
			CarbonReduction:      &carbon,
		}
		if err := s.events.Publish(ctx, e); err != nil {
			s.metrics.RecordError("publish_renewal")
			s.log.Error().Err(err).Str("entity", entity).Msg("renewal event publish failed")
		} else {
			s.metrics.RecordEvent(string(models.EventRenewalCompleted))
		}
	}
	return nil
}

var _ queue.Job = (*RenewalSweeper)(nil)
