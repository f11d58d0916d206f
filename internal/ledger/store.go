package ledger

import (
	"sort"
	"sync"
	"time"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/pkg/fixed"
)

// DefaultWindow is the rolling-average window: the last 7 *inserted*
// records, not the last 7 calendar days. Backfilled timestamps shift the
// window by insertion order; that literal semantics is intentional.
const DefaultWindow = 7

// Store owns all per-entity climate state. Every mutation runs inside the
// owning entity's critical section, giving the single-writer-per-entity
// guarantee the rest of the system relies on.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*entityEntry
	window   int
	now      func() time.Time
}

type entityEntry struct {
	mu sync.Mutex
	st *models.EntityState
}

// Option configures a Store.
type Option func(*Store)

// WithWindow overrides the rolling-average window size.
func WithWindow(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty ledger store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entities: make(map[string]*entityEntry),
		window:   DefaultWindow,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the configured rolling-average window size.
func (s *Store) Window() int { return s.window }

// Activate creates the entity (if needed) and activates the named sector.
// Re-activating an existing sector is a no-op; recorded data is never reset.
func (s *Store) Activate(entity string, kind models.EntityKind, sector string, baseline fixed.Num) error {
	s.mu.Lock()
	e, ok := s.entities[entity]
	if !ok {
		e = &entityEntry{st: &models.EntityState{
			ID:      entity,
			Kind:    kind,
			Sectors: make(map[string]*models.SectorRecord),
			Health:  models.HealthState{Index: fixed.FromInt(100)},
		}}
		s.entities[entity] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if sr, ok := e.st.Sectors[sector]; ok {
		sr.Active = true
		return nil
	}
	e.st.Sectors[sector] = &models.SectorRecord{
		Active:   true,
		Baseline: baseline,
		Values:   make(map[int64]fixed.Num),
	}
	return nil
}

// Update runs fn inside the entity's critical section. The all-or-nothing
// contract is on fn: it must not leave partial mutations behind on error.
func (s *Store) Update(entity string, fn func(st *models.EntityState) error) error {
	s.mu.RLock()
	e, ok := s.entities[entity]
	s.mu.RUnlock()
	if !ok {
		return models.ErrInvalidState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.st)
}

// View runs fn with read access inside the entity's critical section.
func (s *Store) View(entity string, fn func(st *models.EntityState) error) error {
	return s.Update(entity, fn)
}

// Entities returns all known entity ids, sorted.
func (s *Store) Entities() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.entities))
	for id := range s.entities {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Sectors returns the sector names recorded for an entity, sorted.
func (s *Store) Sectors(entity string) []string {
	var out []string
	_ = s.View(entity, func(st *models.EntityState) error {
		for name := range st.Sectors {
			out = append(out, name)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

// RecordValue appends one scaled measurement and refreshes the rolling
// average, atomically for the entity. Fails with ErrInvalidState,
// ErrFutureTimestamp or ErrDuplicateRecord; on failure nothing changes.
func (s *Store) RecordValue(entity, sector string, ts int64, value fixed.Num) error {
	now := s.now().Unix()
	return s.Update(entity, func(st *models.EntityState) error {
		if err := Record(st, sector, ts, value, now); err != nil {
			return err
		}
		Refresh(st, sector, s.window)
		return nil
	})
}

// UpdateRollingAverage recomputes the rolling average for a sector.
func (s *Store) UpdateRollingAverage(entity, sector string) error {
	return s.Update(entity, func(st *models.EntityState) error {
		sr := st.Sector(sector)
		if sr == nil || !sr.Active {
			return models.ErrInvalidState
		}
		Refresh(st, sector, s.window)
		return nil
	})
}

// Stats returns (count, max, rollingAverage) for a sector. Read-only.
func (s *Store) Stats(entity, sector string) (models.SectorStats, error) {
	var out models.SectorStats
	err := s.View(entity, func(st *models.EntityState) error {
		sr := st.Sector(sector)
		if sr == nil || !sr.Active {
			return models.ErrInvalidState
		}
		out = models.SectorStats{
			Count:          len(sr.Recorded),
			MaxValue:       sr.MaxValue,
			RollingAverage: sr.RollingAverage,
		}
		return nil
	})
	return out, err
}

// Health returns the entity health state.
func (s *Store) Health(entity string) (models.HealthState, error) {
	var out models.HealthState
	err := s.View(entity, func(st *models.EntityState) error {
		out = st.Health
		return nil
	})
	return out, err
}

// Gap returns the entity gap state.
func (s *Store) Gap(entity string) (models.GapState, error) {
	var out models.GapState
	err := s.View(entity, func(st *models.EntityState) error {
		out = st.Gap
		return nil
	})
	return out, err
}

// SetGap replaces the entity gap state. Used at bootstrap and by admin
// tooling; renewals mutate the gap through the renewal engine only.
func (s *Store) SetGap(entity string, gap models.GapState) error {
	return s.Update(entity, func(st *models.EntityState) error {
		st.Gap = gap
		return nil
	})
}

// Record appends one measurement to a sector ledger. Exposed at package
// level so composite operations can run inside a single Store.Update.
func Record(st *models.EntityState, sector string, ts int64, value fixed.Num, now int64) error {
	sr := st.Sector(sector)
	if sr == nil || !sr.Active {
		return models.ErrInvalidState
	}
	if ts > now {
		return models.ErrFutureTimestamp
	}
	if _, dup := sr.Values[ts]; dup {
		return models.ErrDuplicateRecord
	}
	sr.Values[ts] = value
	sr.Recorded = append(sr.Recorded, ts)
	if value.GT(sr.MaxValue) {
		sr.MaxValue = value
	}
	return nil
}

// Refresh recomputes the rolling average over the last min(window, count)
// insertion-order entries. Integer division truncates toward zero; zero
// records leave the prior average unchanged.
func Refresh(st *models.EntityState, sector string, window int) {
	sr := st.Sector(sector)
	if sr == nil {
		return
	}
	n := len(sr.Recorded)
	if n == 0 {
		return
	}
	if window < n {
		n = window
	}
	sum := fixed.Zero()
	for _, ts := range sr.Recorded[len(sr.Recorded)-n:] {
		sum = sum.Add(sr.Values[ts])
	}
	sr.RollingAverage = sum.DivInt(int64(n))
}
