package health

import (
	"testing"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/pkg/fixed"
)

func defaultEngine() *Engine {
	return NewEngine(fixed.Zero(), fixed.Zero())
}

func entityWithAverages(avgs map[string]fixed.Num) *models.EntityState {
	st := &models.EntityState{
		ID:      "oslo",
		Kind:    models.KindCity,
		Sectors: make(map[string]*models.SectorRecord),
		Health:  models.HealthState{Index: fixed.FromInt(100)},
	}
	for name, avg := range avgs {
		st.Sectors[name] = &models.SectorRecord{Active: true, RollingAverage: avg}
	}
	return st
}

func TestSectorScoreAtThreshold(t *testing.T) {
	e := defaultEngine()
	got := e.SectorScore(DefaultMaxSafeEmission)
	if !got.Equal(fixed.FromInt(100)) {
		t.Fatalf("score at threshold = %s, want 100", got)
	}
}

func TestSectorScoreDoubleThreshold(t *testing.T) {
	e := defaultEngine()
	got := e.SectorScore(DefaultMaxSafeEmission.MulInt(2))
	if !got.Equal(fixed.FromInt(50)) {
		t.Fatalf("score at 2x threshold = %s, want 50", got)
	}
}

func TestSectorScoreBounds(t *testing.T) {
	e := defaultEngine()
	for _, avg := range []fixed.Num{
		fixed.Zero(),
		fixed.FromInt(1),
		fixed.FromInt(50),
		fixed.FromInt(51),
		fixed.FromInt(5000),
		fixed.FromInt(1_000_000),
	} {
		got := e.SectorScore(avg)
		if got.IsNeg() || got.GT(fixed.FromInt(100)) {
			t.Fatalf("score(%s) = %s, outside [0, 100]", avg, got)
		}
	}
}

func TestSectorScoreMonotone(t *testing.T) {
	e := defaultEngine()
	prev := e.SectorScore(fixed.FromInt(51))
	for v := int64(52); v < 200; v += 7 {
		cur := e.SectorScore(fixed.FromInt(v))
		if cur.GT(prev) {
			t.Fatalf("score increased from %s to %s at avg=%d", prev, cur, v)
		}
		prev = cur
	}
}

func TestIndexExcludesEmptySectors(t *testing.T) {
	e := defaultEngine()
	st := entityWithAverages(map[string]fixed.Num{
		"energy":    fixed.FromInt(100), // score 50
		"transport": fixed.Zero(),       // no data, excluded
	})
	got := e.Index(st)
	if !got.Equal(fixed.FromInt(50)) {
		t.Fatalf("index = %s, want 50 (empty sector must not drag the mean)", got)
	}
}

func TestIndexExcludesInactiveSectors(t *testing.T) {
	e := defaultEngine()
	st := entityWithAverages(map[string]fixed.Num{
		"energy": fixed.FromInt(50), // score 100
	})
	st.Sectors["waste"] = &models.SectorRecord{Active: false, RollingAverage: fixed.FromInt(5000)}
	got := e.Index(st)
	if !got.Equal(fixed.FromInt(100)) {
		t.Fatalf("index = %s, want 100 (inactive sector must be ignored)", got)
	}
}

func TestIndexMeanOfSectors(t *testing.T) {
	e := defaultEngine()
	st := entityWithAverages(map[string]fixed.Num{
		"energy":    fixed.FromInt(50),  // 100
		"transport": fixed.FromInt(100), // 50
	})
	got := e.Index(st)
	if !got.Equal(fixed.FromInt(75)) {
		t.Fatalf("index = %s, want 75", got)
	}
}

func TestIndexNoDataIsHealthy(t *testing.T) {
	e := defaultEngine()
	st := entityWithAverages(nil)
	if got := e.Index(st); !got.Equal(fixed.FromInt(100)) {
		t.Fatalf("index with no sectors = %s, want 100", got)
	}
}

func TestApplyEdgeTriggeredAlert(t *testing.T) {
	e := defaultEngine()
	st := entityWithAverages(map[string]fixed.Num{"energy": fixed.FromInt(50)})

	if alert := e.Apply(st); alert {
		t.Fatalf("healthy entity raised an alert")
	}

	// Drop below the threshold: exactly one alert on the transition.
	st.Sectors["energy"].RollingAverage = fixed.FromInt(200) // score 25
	if alert := e.Apply(st); !alert {
		t.Fatalf("transition into vulnerability did not alert")
	}
	if !st.Health.Vulnerable {
		t.Fatalf("vulnerable flag not set")
	}
	for i := 0; i < 5; i++ {
		if alert := e.Apply(st); alert {
			t.Fatalf("still-vulnerable update %d re-raised the alert", i)
		}
	}

	// Recover, then drop again: a fresh transition alerts again.
	st.Sectors["energy"].RollingAverage = fixed.FromInt(50)
	if alert := e.Apply(st); alert {
		t.Fatalf("recovery raised an alert")
	}
	st.Sectors["energy"].RollingAverage = fixed.FromInt(200)
	if alert := e.Apply(st); !alert {
		t.Fatalf("second transition into vulnerability did not alert")
	}
}

func TestApplyBoundaryNotVulnerable(t *testing.T) {
	e := defaultEngine()
	// avg 100 -> score exactly 50, which is not strictly below the threshold.
	st := entityWithAverages(map[string]fixed.Num{"energy": fixed.FromInt(100)})
	if alert := e.Apply(st); alert {
		t.Fatalf("index exactly at threshold alerted")
	}
	if st.Health.Vulnerable {
		t.Fatalf("index exactly at threshold marked vulnerable")
	}
}
