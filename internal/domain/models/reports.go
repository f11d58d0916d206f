package models

import "CarbonPulse/pkg/fixed"

// EntityReport aggregates one entity's recorded emissions.
type EntityReport struct {
	Entity         string               `json:"entity"`
	Kind           EntityKind           `json:"kind"`
	TotalEmissions fixed.Num            `json:"total_emissions"`
	PeakSector     string               `json:"peak_sector,omitempty"`
	PeakValue      fixed.Num            `json:"peak_value"`
	BySector       map[string]fixed.Num `json:"by_sector"`
	FirstRecorded  int64                `json:"first_recorded,omitempty"`
	LastRecorded   int64                `json:"last_recorded,omitempty"`
}

// EmissionsReport is the cross-entity summary.
type EmissionsReport struct {
	Entities       []EntityReport `json:"entities"`
	TotalEmissions fixed.Num      `json:"total_emissions"`
	HighestEntity  string         `json:"highest_entity,omitempty"`
	LowestEntity   string         `json:"lowest_entity,omitempty"`
}

// SectorPotential is the per-sector renewal reduction potential.
type SectorPotential struct {
	Sector    string    `json:"sector"`
	Average   fixed.Num `json:"average"`
	Potential fixed.Num `json:"potential"`
}

// GapQuote is the read-only renewal quote for an entity.
type GapQuote struct {
	Entity        string            `json:"entity"`
	Gap           GapState          `json:"gap"`
	RequiredTicks int64             `json:"required_ticks"`
	TotalCost     fixed.Num         `json:"total_cost"`
	OraclePrice   fixed.Num         `json:"oracle_price"`
	Potentials    []SectorPotential `json:"potentials,omitempty"`
}
