package ledger

import (
	"errors"
	"testing"
	"time"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/pkg/fixed"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	s := NewStore(opts...)
	if err := s.Activate("oslo", models.KindCity, "energy", fixed.Zero()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return s
}

func day(n int) int64 {
	return testNow.AddDate(0, 0, -n).Unix()
}

func TestRecordValueUnknownEntity(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordValue("nowhere", "energy", day(1), fixed.FromInt(10)); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRecordValueInactiveSector(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordValue("oslo", "transport", day(1), fixed.FromInt(10)); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRecordValueFutureTimestamp(t *testing.T) {
	s := newTestStore(t)
	future := testNow.Add(time.Hour).Unix()
	if err := s.RecordValue("oslo", "energy", future, fixed.FromInt(10)); !errors.Is(err, models.ErrFutureTimestamp) {
		t.Fatalf("expected ErrFutureTimestamp, got %v", err)
	}
}

func TestDuplicateRecordLeavesAverageUnchanged(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordValue("oslo", "energy", day(1), fixed.FromInt(10)); err != nil {
		t.Fatalf("first record: %v", err)
	}
	before, err := s.Stats("oslo", "energy")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if err := s.RecordValue("oslo", "energy", day(1), fixed.FromInt(99)); !errors.Is(err, models.ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", err)
	}
	after, err := s.Stats("oslo", "energy")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !after.RollingAverage.Equal(before.RollingAverage) || after.Count != before.Count {
		t.Fatalf("duplicate record mutated state: %+v -> %+v", before, after)
	}
}

func TestRollingAverageWindow(t *testing.T) {
	s := newTestStore(t)
	// 10 records: values 1..10, window 7 -> mean of 4..10 = 7
	for i := 1; i <= 10; i++ {
		if err := s.RecordValue("oslo", "energy", day(20-i), fixed.FromInt(int64(i))); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	st, err := s.Stats("oslo", "energy")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !st.RollingAverage.Equal(fixed.FromInt(7)) {
		t.Fatalf("rolling average = %s, want 7", st.RollingAverage)
	}
	if st.Count != 10 {
		t.Fatalf("count = %d, want 10", st.Count)
	}
}

func TestRollingAverageFollowsInsertionOrder(t *testing.T) {
	s := newTestStore(t, WithWindow(2))
	// Backfill: newest timestamp inserted first. Window must follow
	// insertion order, so the average covers the two most recently
	// inserted records regardless of their timestamps.
	if err := s.RecordValue("oslo", "energy", day(1), fixed.FromInt(100)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordValue("oslo", "energy", day(5), fixed.FromInt(10)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordValue("oslo", "energy", day(4), fixed.FromInt(20)); err != nil {
		t.Fatalf("record: %v", err)
	}
	st, _ := s.Stats("oslo", "energy")
	if !st.RollingAverage.Equal(fixed.FromInt(15)) {
		t.Fatalf("rolling average = %s, want 15 (insertion-order window)", st.RollingAverage)
	}
}

func TestRollingAverageTruncates(t *testing.T) {
	s := newTestStore(t, WithWindow(3))
	for i, v := range []int64{1, 1, 2} {
		if err := s.RecordValue("oslo", "energy", day(10-i), fixed.FromInt(v)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	st, _ := s.Stats("oslo", "energy")
	// (1+1+2)/3 = 1.333... scaled division keeps the fractional part.
	want := fixed.FromInt(4).DivInt(3)
	if !st.RollingAverage.Equal(want) {
		t.Fatalf("rolling average = %s, want %s", st.RollingAverage, want)
	}
}

func TestMaxHistoricalValue(t *testing.T) {
	s := newTestStore(t)
	for i, v := range []int64{5, 42, 17} {
		if err := s.RecordValue("oslo", "energy", day(10-i), fixed.FromInt(v)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	st, _ := s.Stats("oslo", "energy")
	if !st.MaxValue.Equal(fixed.FromInt(42)) {
		t.Fatalf("max = %s, want 42", st.MaxValue)
	}
}

func TestStatsInactiveSector(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Stats("oslo", "waste"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestReactivateKeepsData(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordValue("oslo", "energy", day(1), fixed.FromInt(10)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Activate("oslo", models.KindCity, "energy", fixed.FromInt(5)); err != nil {
		t.Fatalf("re-activate: %v", err)
	}
	st, err := s.Stats("oslo", "energy")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != 1 {
		t.Fatalf("re-activation reset sector data")
	}
}
