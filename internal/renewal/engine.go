package renewal

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/internal/domain/service"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/pkg/fixed"
)

// Defaults for the renewal gate. A renewal consumes whole ticks of elapsed
// time; fractional tick time is discarded, not carried forward.
const (
	DefaultTickInterval       = 24 * time.Hour
	DefaultMinRenewalInterval = time.Hour
	DefaultMaxRenewals        = 100
)

// CreditLedger is the account book renewals issue into. Deposit adds newly
// earned carbon credits to the participant's position and accrues the
// discounted renewal reward under the ledger's own lock, returning the
// reward granted. Deposit is infallible: the credit leg runs after the gap
// update has committed, so a fallible ledger could strand consumed ticks.
type CreditLedger interface {
	Deposit(participant string, credits, discount fixed.Num) fixed.Num
}

// Config carries the tunables of the renewal engine.
type Config struct {
	Params             models.RenewalParams
	TickInterval       time.Duration
	MinRenewalInterval time.Duration
	MaxRenewals        int
	// ReductionTarget sizes the per-sector renewal potential quote
	// (default ten percent of the sector rolling average).
	ReductionTarget fixed.Num
}

// Engine converts an entity's temperature/carbon gap into discrete renewal
// ticks and the credits and rewards they earn. All gap math is fixed-point
// with truncating division so repeated runs are bit-reproducible.
type Engine struct {
	store   *ledger.Store
	credits CreditLedger
	oracle  service.PriceOracle
	cfg     Config
	now     func() time.Time
	log     zerolog.Logger
}

// NewEngine wires a renewal engine over the ledger store. A nil credits
// ledger disables credit issuance (the gap still closes).
func NewEngine(store *ledger.Store, credits CreditLedger, oracle service.PriceOracle, cfg Config, log zerolog.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.MinRenewalInterval <= 0 {
		cfg.MinRenewalInterval = DefaultMinRenewalInterval
	}
	if cfg.MaxRenewals <= 0 {
		cfg.MaxRenewals = DefaultMaxRenewals
	}
	if cfg.ReductionTarget.IsZero() {
		cfg.ReductionTarget = fixed.MustParse("0.1")
	}
	return &Engine{
		store:   store,
		credits: credits,
		oracle:  oracle,
		cfg:     cfg,
		now:     time.Now,
		log:     log.With().Str("component", "renewal_engine").Logger(),
	}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RequiredTicks is the whole number of ticks needed to close the
// temperature gap: 0 when at or below target, floor(gap / tickSize)
// otherwise.
func RequiredTicks(gap models.GapState, tickSize fixed.Num) int64 {
	delta := gap.CurrentTemperature.Sub(gap.TargetTemperature)
	if !delta.GT(fixed.Zero()) {
		return 0
	}
	return delta.Quo(tickSize)
}

// TemperatureReduction is the gap closed by consuming ticks, clamped so
// the current temperature can never overshoot below target.
func TemperatureReduction(gap models.GapState, tickSize fixed.Num, ticks int64) fixed.Num {
	delta := gap.CurrentTemperature.Sub(gap.TargetTemperature)
	if !delta.GT(fixed.Zero()) || ticks <= 0 {
		return fixed.Zero()
	}
	return tickSize.MulInt(ticks).Min(delta)
}

// CarbonReduction is the mitigation credit earned by consuming ticks.
// Vulnerable entities earn a penalty-rate bonus on top of the base amount,
// the priority-renewal incentive.
func CarbonReduction(gap models.GapState, p models.RenewalParams, ticks int64, vulnerable bool) fixed.Num {
	if ticks <= 0 {
		return fixed.Zero()
	}
	base := gap.CarbonLevel.MulInt(ticks).Mul(p.RewardRate)
	if vulnerable {
		base = base.Mul(fixed.One().Add(p.PenaltyRate))
	}
	return base
}

// TotalCost quotes the monetary cost of closing the remaining gap at the
// given oracle price. Quoting only; settlement never uses it.
func TotalCost(gap models.GapState, price fixed.Num) fixed.Num {
	delta := gap.CurrentTemperature.Sub(gap.TargetTemperature)
	if !delta.GT(fixed.Zero()) {
		return fixed.Zero()
	}
	return gap.AnnualEmissionReduction.Mul(delta).Mul(price)
}

// Reward is the discounted renewal reward expected at the
// (interactions+1)-th renewal epoch for a position holding credits.
func Reward(credits fixed.Num, interactions int, discount fixed.Num) fixed.Num {
	return credits.Mul(discount).MulInt(int64(interactions) + 1)
}

// RequiredTicks reports the ticks needed for an entity to reach target.
func (e *Engine) RequiredTicks(entity string) (int64, error) {
	gap, err := e.store.Gap(entity)
	if err != nil {
		return 0, err
	}
	return RequiredTicks(gap, e.cfg.Params.TickSize), nil
}

// Quote returns the gap state, remaining ticks and live total-cost quote
// for an entity, plus the per-sector reduction potential.
func (e *Engine) Quote(ctx context.Context, entity string) (*models.GapQuote, error) {
	price, err := e.oracle.Price(ctx)
	if err != nil {
		return nil, err
	}
	q := &models.GapQuote{Entity: entity, OraclePrice: price}
	err = e.store.View(entity, func(st *models.EntityState) error {
		q.Gap = st.Gap
		q.RequiredTicks = RequiredTicks(st.Gap, e.cfg.Params.TickSize)
		q.TotalCost = TotalCost(st.Gap, price)
		for name, sr := range st.Sectors {
			if !sr.Active || sr.RollingAverage.IsZero() {
				continue
			}
			q.Potentials = append(q.Potentials, models.SectorPotential{
				Sector:    name,
				Average:   sr.RollingAverage,
				Potential: sr.RollingAverage.Mul(e.cfg.ReductionTarget),
			})
		}
		sort.Slice(q.Potentials, func(i, j int) bool { return q.Potentials[i].Sector < q.Potentials[j].Sector })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Execute runs one time-triggered renewal for (entity, sector). It is an
// idempotent no-op (Ticks == 0) when no whole tick has elapsed or the
// temperature gap is already closed. On success the gap's lastUpdateTime
// advances by the full elapsed time, so fractional tick time is discarded
// rather than carried forward.
func (e *Engine) Execute(entity, sector string) (*models.RenewalResult, error) {
	now := e.now().Unix()
	res := &models.RenewalResult{Entity: entity, Sector: sector}
	var earned fixed.Num

	err := e.store.Update(entity, func(st *models.EntityState) error {
		sr := st.Sector(sector)
		if sr == nil || !sr.Active {
			return models.ErrInvalidState
		}
		if sr.LastRenewal != 0 && now-sr.LastRenewal < int64(e.cfg.MinRenewalInterval/time.Second) {
			return models.ErrIntervalNotElapsed
		}
		if sr.RenewalCount >= e.cfg.MaxRenewals {
			return models.ErrRenewalLimitExceeded
		}

		if st.Gap.LastUpdate == 0 {
			// First renewal anchors the clock without consuming ticks.
			st.Gap.LastUpdate = now
			return nil
		}
		elapsed := now - st.Gap.LastUpdate
		ticks := elapsed / int64(e.cfg.TickInterval/time.Second)
		if ticks <= 0 {
			return nil
		}
		// A renewal only runs while a gap remains. An at-target entity is
		// the same no-op as zero elapsed ticks: no credits, no bookkeeping,
		// clock untouched.
		if !st.Gap.CurrentTemperature.GT(st.Gap.TargetTemperature) {
			return nil
		}

		p := e.cfg.Params
		res.Ticks = ticks
		res.TemperatureReduction = TemperatureReduction(st.Gap, p.TickSize, ticks)
		res.CarbonReduction = CarbonReduction(st.Gap, p, ticks, st.Health.Vulnerable)

		st.Gap.CurrentTemperature = st.Gap.CurrentTemperature.Sub(res.TemperatureReduction)
		st.Gap.LastUpdate = now
		sr.CumulativeReduction = sr.CumulativeReduction.Add(res.CarbonReduction)
		sr.RenewalCount++
		sr.LastRenewal = now
		earned = res.CarbonReduction
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.credits != nil && earned.GT(fixed.Zero()) {
		res.Reward = e.credits.Deposit(entity, earned, e.cfg.Params.DiscountFactor)
	}

	if res.Ticks > 0 {
		e.log.Info().
			Str("entity", entity).
			Str("sector", sector).
			Int64("ticks", res.Ticks).
			Str("temperature_reduction", res.TemperatureReduction.String()).
			Str("carbon_reduction", res.CarbonReduction.String()).
			Msg("renewal executed")
	}
	return res, nil
}

// Status reports the renewal bookkeeping for one (entity, sector).
func (e *Engine) Status(entity, sector string) (count int, cumulative fixed.Num, last int64, err error) {
	err = e.store.View(entity, func(st *models.EntityState) error {
		sr := st.Sector(sector)
		if sr == nil || !sr.Active {
			return models.ErrInvalidState
		}
		count = sr.RenewalCount
		cumulative = sr.CumulativeReduction
		last = sr.LastRenewal
		return nil
	})
	return count, cumulative, last, err
}
