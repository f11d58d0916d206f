package models

import (
	"CarbonPulse/pkg/fixed"
)

// EntityKind distinguishes the two registered entity classes.
type EntityKind string

const (
	KindCity    EntityKind = "city"
	KindCompany EntityKind = "company"
)

// Measurement is a single raw emission/temperature reading for one sector.
type Measurement struct {
	Entity    string
	Sector    string
	Timestamp int64 // unix seconds
	Value     fixed.Num
}

// SectorRecord is the append-only daily ledger for one (entity, sector).
// Recorded keeps insertion order; the rolling window follows insertion
// order, not calendar order.
type SectorRecord struct {
	Active         bool
	Baseline       fixed.Num
	MaxValue       fixed.Num
	RollingAverage fixed.Num
	Recorded       []int64
	Values         map[int64]fixed.Num

	// Renewal bookkeeping for this sector.
	CumulativeReduction fixed.Num
	RenewalCount        int
	LastRenewal         int64
}

// HealthState summarizes an entity's emission performance.
type HealthState struct {
	Index      fixed.Num `json:"index"` // 0..100 scaled
	Vulnerable bool      `json:"vulnerable"`
}

// GapState tracks an entity's distance from its climate targets.
type GapState struct {
	CurrentTemperature fixed.Num `json:"current_temperature"`
	TargetTemperature  fixed.Num `json:"target_temperature"`
	CarbonLevel        fixed.Num `json:"carbon_level"`
	TargetCarbonLevel  fixed.Num `json:"target_carbon_level"`
	// AnnualEmissionReduction sizes the total-cost quote.
	AnnualEmissionReduction fixed.Num `json:"annual_emission_reduction"`
	LastUpdate              int64     `json:"last_update"`
}

// EntityState is the full per-entity state owned by the ledger store.
// It is only ever mutated inside the store's per-entity critical section.
type EntityState struct {
	ID      string
	Kind    EntityKind
	Sectors map[string]*SectorRecord
	Health  HealthState
	Gap     GapState
}

// Sector returns the named sector record, or nil.
func (e *EntityState) Sector(name string) *SectorRecord {
	if e == nil || e.Sectors == nil {
		return nil
	}
	return e.Sectors[name]
}

// RenewalParams are the fixed-point fractions driving the renewal engine.
// All are non-negative; all but PenaltyRate normally stay at or below one
// scaled unit.
type RenewalParams struct {
	TickSize       fixed.Num
	RewardRate     fixed.Num
	SalvageValue   fixed.Num
	PenaltyRate    fixed.Num
	DiscountFactor fixed.Num
}

// CreditPosition is one participant's market-side account.
// Buying and Selling are mutually exclusive.
type CreditPosition struct {
	Participant   string    `json:"participant"`
	CarbonCredits fixed.Num `json:"carbon_credits"`
	RewardBalance fixed.Num `json:"reward_balance"`
	Buying        bool      `json:"buying"`
	Selling       bool      `json:"selling"`
	Interactions  int       `json:"interactions"`
	LastTrade     int64     `json:"last_trade,omitempty"`
}

// Trade is the ephemeral settlement request. It is validated and either
// fully applied or fully discarded; it is never persisted.
type Trade struct {
	Buyer        string
	Seller       string
	CreditAmount fixed.Num
	USDAmount    fixed.Num
	Entity       string
	Sector       string
}

// SectorStats is the read-only stats triple for a sector.
type SectorStats struct {
	Count          int       `json:"count"`
	MaxValue       fixed.Num `json:"max_value"`
	RollingAverage fixed.Num `json:"rolling_average"`
}

// RenewalResult reports what one executed renewal changed.
type RenewalResult struct {
	Entity               string    `json:"entity"`
	Sector               string    `json:"sector"`
	Ticks                int64     `json:"ticks"`
	TemperatureReduction fixed.Num `json:"temperature_reduction"`
	CarbonReduction      fixed.Num `json:"carbon_reduction"`
	Reward               fixed.Num `json:"reward"`
}
