package models

import "CarbonPulse/pkg/fixed"

// EventType identifies the observability events surfaced outward.
// Events are for observability, never for control flow.
type EventType string

const (
	EventVulnerabilityAlert EventType = "vulnerability.alert"
	EventRenewalCompleted   EventType = "renewal.completed"
	EventTradeSettled       EventType = "trade.settled"
)

// Event is the envelope published to the events topic.
type Event struct {
	Type      EventType `json:"type"`
	Entity    string    `json:"entity,omitempty"`
	Sector    string    `json:"sector,omitempty"`
	Timestamp int64     `json:"t"`

	// vulnerability.alert
	HealthIndex *fixed.Num `json:"health_index,omitempty"`

	// renewal.completed
	Ticks                int64      `json:"ticks,omitempty"`
	TemperatureReduction *fixed.Num `json:"temperature_reduction,omitempty"`
	CarbonReduction      *fixed.Num `json:"carbon_reduction,omitempty"`

	// trade.settled
	Buyer        string     `json:"buyer,omitempty"`
	Seller       string     `json:"seller,omitempty"`
	CreditAmount *fixed.Num `json:"credit_amount,omitempty"`
	USDAmount    *fixed.Num `json:"usd_amount,omitempty"`
}
