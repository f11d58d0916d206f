package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/internal/health"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/pkg/fixed"
)

type fakeEvents struct {
	mu     sync.Mutex
	events []*models.Event
}

func (f *fakeEvents) Publish(ctx context.Context, e *models.Event) error {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
	return nil
}

func (f *fakeEvents) Close() error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordMeasurement(entity, sector string)        {}
func (noopMetrics) RecordError(kind string)                        {}
func (noopMetrics) RecordHealthIndex(entity string, index float64) {}
func (noopMetrics) RecordLastPrice(price float64)                  {}
func (noopMetrics) RecordLatency(op string, seconds float64)       {}
func (noopMetrics) RecordRenewal(entity, sector string)            {}
func (noopMetrics) RecordTrade(entity, sector string)              {}
func (noopMetrics) RecordEvent(kind string)                        {}

var procNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newProcessor(t *testing.T) (*MeasurementProcessor, *ledger.Store, *fakeEvents) {
	t.Helper()
	store := ledger.NewStore(ledger.WithClock(func() time.Time { return procNow }))
	if err := store.Activate("oslo", models.KindCity, "energy", fixed.Zero()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	events := &fakeEvents{}
	engine := health.NewEngine(fixed.Zero(), fixed.Zero())
	p := NewMeasurementProcessor(store, engine, nil, events, noopMetrics{}, fixed.Zero(), fixed.FromInt(10_000), zerolog.Nop())
	p.WithClock(func() time.Time { return procNow })
	return p, store, events
}

func measurement(ts int64, value int64) *models.Measurement {
	return &models.Measurement{Entity: "oslo", Sector: "energy", Timestamp: ts, Value: fixed.FromInt(value)}
}

func TestProcessUpdatesLedgerAndHealth(t *testing.T) {
	p, store, _ := newProcessor(t)
	hs, err := p.Process(context.Background(), measurement(procNow.Unix()-100, 200))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	// One sector with average 200: score 50/200*... = 25, vulnerable.
	if !hs.Index.Equal(fixed.FromInt(25)) {
		t.Fatalf("health index = %s, want 25", hs.Index)
	}
	if !hs.Vulnerable {
		t.Fatalf("entity not marked vulnerable")
	}
	st, err := store.Stats("oslo", "energy")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != 1 || !st.RollingAverage.Equal(fixed.FromInt(200)) {
		t.Fatalf("ledger not updated: %+v", st)
	}
}

func TestProcessValueOutOfRange(t *testing.T) {
	p, store, _ := newProcessor(t)
	_, err := p.Process(context.Background(), measurement(procNow.Unix()-100, 20_000))
	if !errors.Is(err, models.ErrValueOutOfRange) {
		t.Fatalf("expected ErrValueOutOfRange, got %v", err)
	}
	st, _ := store.Stats("oslo", "energy")
	if st.Count != 0 {
		t.Fatalf("rejected measurement was stored")
	}
}

func TestProcessAlertFiresOnceOnTransition(t *testing.T) {
	p, _, events := newProcessor(t)
	ctx := context.Background()

	// Healthy first, then a string of vulnerable updates.
	if _, err := p.Process(ctx, measurement(procNow.Unix()-500, 10)); err != nil {
		t.Fatalf("process: %v", err)
	}
	for i := int64(0); i < 4; i++ {
		if _, err := p.Process(ctx, measurement(procNow.Unix()-400+i, 2000)); err != nil {
			t.Fatalf("process vulnerable %d: %v", i, err)
		}
	}

	alerts := 0
	for _, e := range events.events {
		if e.Type == models.EventVulnerabilityAlert {
			alerts++
		}
	}
	if alerts != 1 {
		t.Fatalf("alerts = %d, want exactly 1 (edge-triggered)", alerts)
	}
}

func TestProcessBatchPerRecordSemantics(t *testing.T) {
	p, store, _ := newProcessor(t)
	dup := measurement(procNow.Unix()-50, 30)
	batch := []*models.Measurement{
		measurement(procNow.Unix()-100, 10),
		dup,
		dup, // duplicate timestamp, rejected
		measurement(procNow.Unix()-25, 20),
	}
	err := p.ProcessBatch(context.Background(), batch)
	if !errors.Is(err, models.ErrDuplicateRecord) {
		t.Fatalf("expected first error ErrDuplicateRecord, got %v", err)
	}
	st, _ := store.Stats("oslo", "energy")
	if st.Count != 3 {
		t.Fatalf("count = %d, want 3 (batch is per-record, not transactional)", st.Count)
	}
}

func TestProcessUnknownEntity(t *testing.T) {
	p, _, _ := newProcessor(t)
	m := &models.Measurement{Entity: "nowhere", Sector: "energy", Timestamp: procNow.Unix() - 1, Value: fixed.FromInt(1)}
	if _, err := p.Process(context.Background(), m); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
