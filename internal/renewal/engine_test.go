package renewal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/pkg/fixed"
)

func gapState(current, target int64) models.GapState {
	return models.GapState{
		CurrentTemperature: fixed.FromInt(current),
		TargetTemperature:  fixed.FromInt(target),
	}
}

func TestRequiredTicks(t *testing.T) {
	gap := gapState(300, 280)
	if got := RequiredTicks(gap, fixed.MustParse("0.1")); got != 200 {
		t.Fatalf("required ticks = %d, want 200", got)
	}
}

func TestRequiredTicksAtTarget(t *testing.T) {
	gap := gapState(280, 280)
	if got := RequiredTicks(gap, fixed.MustParse("0.1")); got != 0 {
		t.Fatalf("required ticks at target = %d, want 0", got)
	}
	gap = gapState(270, 280)
	if got := RequiredTicks(gap, fixed.MustParse("0.1")); got != 0 {
		t.Fatalf("required ticks below target = %d, want 0", got)
	}
}

func TestRequiredTicksTruncates(t *testing.T) {
	gap := models.GapState{
		CurrentTemperature: fixed.MustParse("280.19"),
		TargetTemperature:  fixed.FromInt(280),
	}
	if got := RequiredTicks(gap, fixed.MustParse("0.1")); got != 1 {
		t.Fatalf("required ticks = %d, want 1 (partial tick discarded)", got)
	}
}

func TestTemperatureReduction(t *testing.T) {
	gap := gapState(300, 280)
	tick := fixed.MustParse("0.1")
	if got := TemperatureReduction(gap, tick, 50); !got.Equal(fixed.FromInt(5)) {
		t.Fatalf("reduction for 50 ticks = %s, want 5", got)
	}
}

func TestTemperatureReductionClamped(t *testing.T) {
	gap := gapState(300, 280)
	tick := fixed.MustParse("0.1")
	// 250 ticks would overshoot: clamp to the remaining 20 degree gap.
	if got := TemperatureReduction(gap, tick, 250); !got.Equal(fixed.FromInt(20)) {
		t.Fatalf("overshoot reduction = %s, want 20 (clamped)", got)
	}
}

func TestTemperatureReductionAtTarget(t *testing.T) {
	gap := gapState(280, 280)
	if got := TemperatureReduction(gap, fixed.MustParse("0.1"), 10); !got.IsZero() {
		t.Fatalf("reduction at target = %s, want 0", got)
	}
}

func TestCarbonReduction(t *testing.T) {
	gap := gapState(300, 280)
	gap.CarbonLevel = fixed.FromInt(1000)
	p := models.RenewalParams{RewardRate: fixed.MustParse("0.02"), PenaltyRate: fixed.MustParse("0.5")}

	base := CarbonReduction(gap, p, 10, false)
	if !base.Equal(fixed.FromInt(200)) { // 1000 * 10 * 0.02
		t.Fatalf("base carbon reduction = %s, want 200", base)
	}
	amplified := CarbonReduction(gap, p, 10, true)
	if !amplified.Equal(fixed.FromInt(300)) { // 200 * 1.5
		t.Fatalf("vulnerable carbon reduction = %s, want 300", amplified)
	}
}

func TestTotalCost(t *testing.T) {
	gap := gapState(300, 280)
	gap.AnnualEmissionReduction = fixed.FromInt(500)
	price := fixed.FromInt(3)
	// 500 * 20 * 3
	if got := TotalCost(gap, price); !got.Equal(fixed.FromInt(30000)) {
		t.Fatalf("total cost = %s, want 30000", got)
	}
	if got := TotalCost(gapState(280, 280), price); !got.IsZero() {
		t.Fatalf("total cost at target = %s, want 0", got)
	}
}

func TestReward(t *testing.T) {
	credits := fixed.FromInt(100)
	discount := fixed.MustParse("0.9")
	if got := Reward(credits, 0, discount); !got.Equal(fixed.FromInt(90)) {
		t.Fatalf("first-epoch reward = %s, want 90", got)
	}
	if got := Reward(credits, 4, discount); !got.Equal(fixed.FromInt(450)) {
		t.Fatalf("fifth-epoch reward = %s, want 450", got)
	}
}

type fakeLedger struct {
	deposits []fixed.Num
	reward   fixed.Num
}

func (f *fakeLedger) Deposit(participant string, credits, discount fixed.Num) fixed.Num {
	f.deposits = append(f.deposits, credits)
	return f.reward
}

type fixedOracle struct{ price fixed.Num }

func (o fixedOracle) Price(ctx context.Context) (fixed.Num, error) { return o.price, nil }

func testEngine(t *testing.T, credits CreditLedger, now *time.Time) (*Engine, *ledger.Store) {
	t.Helper()
	store := ledger.NewStore(ledger.WithClock(func() time.Time { return *now }))
	if err := store.Activate("oslo", models.KindCity, "energy", fixed.Zero()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	cfg := Config{
		Params: models.RenewalParams{
			TickSize:       fixed.MustParse("0.1"),
			RewardRate:     fixed.MustParse("0.02"),
			PenaltyRate:    fixed.MustParse("0.5"),
			DiscountFactor: fixed.MustParse("0.9"),
		},
		TickInterval:       24 * time.Hour,
		MinRenewalInterval: time.Hour,
		MaxRenewals:        3,
	}
	e := NewEngine(store, credits, fixedOracle{price: fixed.FromInt(3)}, cfg, zerolog.Nop())
	e.WithClock(func() time.Time { return *now })
	return e, store
}

func seedGap(t *testing.T, store *ledger.Store, anchor time.Time) {
	t.Helper()
	gap := gapState(300, 280)
	gap.CarbonLevel = fixed.FromInt(1000)
	gap.LastUpdate = anchor.Unix()
	if err := store.SetGap("oslo", gap); err != nil {
		t.Fatalf("set gap: %v", err)
	}
}

func TestExecuteConsumesElapsedTicks(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(49 * time.Hour) // 2 whole ticks, 1h fractional
	fl := &fakeLedger{reward: fixed.FromInt(7)}
	e, store := testEngine(t, fl, &now)
	seedGap(t, store, start)

	res, err := e.Execute("oslo", "energy")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Ticks != 2 {
		t.Fatalf("ticks = %d, want 2", res.Ticks)
	}
	if !res.TemperatureReduction.Equal(fixed.MustParse("0.2")) {
		t.Fatalf("temperature reduction = %s, want 0.2", res.TemperatureReduction)
	}
	if !res.CarbonReduction.Equal(fixed.FromInt(40)) { // 1000 * 2 * 0.02
		t.Fatalf("carbon reduction = %s, want 40", res.CarbonReduction)
	}
	if !res.Reward.Equal(fixed.FromInt(7)) {
		t.Fatalf("reward = %s, want ledger reward", res.Reward)
	}
	if len(fl.deposits) != 1 || !fl.deposits[0].Equal(fixed.FromInt(40)) {
		t.Fatalf("ledger deposits = %v", fl.deposits)
	}

	gap, _ := store.Gap("oslo")
	if !gap.CurrentTemperature.Equal(fixed.MustParse("299.8")) {
		t.Fatalf("current temperature = %s, want 299.8", gap.CurrentTemperature)
	}
	// Fractional tick time is discarded: the clock advances by the full
	// elapsed time, not just the two consumed ticks.
	if gap.LastUpdate != now.Unix() {
		t.Fatalf("last update = %d, want %d", gap.LastUpdate, now.Unix())
	}
}

func TestExecuteNoWholeTickIsNoop(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(23 * time.Hour)
	fl := &fakeLedger{}
	e, store := testEngine(t, fl, &now)
	seedGap(t, store, start)

	res, err := e.Execute("oslo", "energy")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Ticks != 0 {
		t.Fatalf("ticks = %d, want 0", res.Ticks)
	}
	if len(fl.deposits) != 0 {
		t.Fatalf("no-op renewal deposited credits")
	}
	gap, _ := store.Gap("oslo")
	if !gap.CurrentTemperature.Equal(fixed.FromInt(300)) {
		t.Fatalf("no-op renewal mutated the gap")
	}
}

func TestExecuteAtTargetIsNoop(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(49 * time.Hour) // 2 whole ticks elapsed
	fl := &fakeLedger{reward: fixed.FromInt(7)}
	e, store := testEngine(t, fl, &now)
	gap := gapState(280, 280)
	gap.CarbonLevel = fixed.FromInt(1000)
	gap.LastUpdate = start.Unix()
	if err := store.SetGap("oslo", gap); err != nil {
		t.Fatalf("set gap: %v", err)
	}

	res, err := e.Execute("oslo", "energy")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Ticks != 0 {
		t.Fatalf("ticks = %d, want 0", res.Ticks)
	}
	if !res.CarbonReduction.IsZero() || !res.Reward.IsZero() {
		t.Fatalf("at-target renewal earned %s credits, %s reward", res.CarbonReduction, res.Reward)
	}
	if len(fl.deposits) != 0 {
		t.Fatalf("at-target renewal deposited credits")
	}
	count, cumulative, _, err := e.Status("oslo", "energy")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if count != 0 || !cumulative.IsZero() {
		t.Fatalf("at-target renewal advanced bookkeeping: count=%d cumulative=%s", count, cumulative)
	}
	got, _ := store.Gap("oslo")
	if got.LastUpdate != start.Unix() {
		t.Fatalf("at-target renewal advanced the clock")
	}
}

func TestExecuteIntervalGate(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(25 * time.Hour)
	e, store := testEngine(t, &fakeLedger{}, &now)
	seedGap(t, store, start)

	if _, err := e.Execute("oslo", "energy"); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	now = now.Add(30 * time.Minute)
	if _, err := e.Execute("oslo", "energy"); !errors.Is(err, models.ErrIntervalNotElapsed) {
		t.Fatalf("expected ErrIntervalNotElapsed, got %v", err)
	}
	now = now.Add(time.Hour)
	if _, err := e.Execute("oslo", "energy"); err != nil {
		t.Fatalf("execute after interval: %v", err)
	}
}

func TestExecuteRenewalLimit(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start
	e, store := testEngine(t, &fakeLedger{}, &now)
	seedGap(t, store, start)

	for i := 0; i < 3; i++ {
		now = now.Add(25 * time.Hour)
		if _, err := e.Execute("oslo", "energy"); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}
	now = now.Add(25 * time.Hour)
	if _, err := e.Execute("oslo", "energy"); !errors.Is(err, models.ErrRenewalLimitExceeded) {
		t.Fatalf("expected ErrRenewalLimitExceeded, got %v", err)
	}
}

func TestExecuteUnknownSector(t *testing.T) {
	now := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	e, _ := testEngine(t, &fakeLedger{}, &now)
	if _, err := e.Execute("oslo", "waste"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestExecuteVulnerableAmplifies(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(24 * time.Hour)
	e, store := testEngine(t, &fakeLedger{}, &now)
	seedGap(t, store, start)
	err := store.Update("oslo", func(st *models.EntityState) error {
		st.Health.Vulnerable = true
		return nil
	})
	if err != nil {
		t.Fatalf("mark vulnerable: %v", err)
	}

	res, err := e.Execute("oslo", "energy")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// 1000 * 1 * 0.02 = 20, amplified by 1.5 -> 30.
	if !res.CarbonReduction.Equal(fixed.FromInt(30)) {
		t.Fatalf("vulnerable carbon reduction = %s, want 30", res.CarbonReduction)
	}
}

func TestQuote(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start
	e, store := testEngine(t, &fakeLedger{}, &now)
	gap := gapState(300, 280)
	gap.AnnualEmissionReduction = fixed.FromInt(500)
	gap.LastUpdate = start.Unix()
	if err := store.SetGap("oslo", gap); err != nil {
		t.Fatalf("set gap: %v", err)
	}
	err := store.Update("oslo", func(st *models.EntityState) error {
		st.Sector("energy").RollingAverage = fixed.FromInt(40)
		return nil
	})
	if err != nil {
		t.Fatalf("seed average: %v", err)
	}

	q, err := e.Quote(context.Background(), "oslo")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.RequiredTicks != 200 {
		t.Fatalf("required ticks = %d, want 200", q.RequiredTicks)
	}
	if !q.TotalCost.Equal(fixed.FromInt(30000)) {
		t.Fatalf("total cost = %s, want 30000", q.TotalCost)
	}
	if len(q.Potentials) != 1 || q.Potentials[0].Sector != "energy" {
		t.Fatalf("potentials = %+v", q.Potentials)
	}
	if !q.Potentials[0].Potential.Equal(fixed.FromInt(4)) { // 40 * 0.1
		t.Fatalf("potential = %s, want 4", q.Potentials[0].Potential)
	}
}
