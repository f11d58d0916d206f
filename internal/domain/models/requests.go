package models

// Requests for the HTTP endpoints. Defined in domain for consistency and reuse.

type ActivateSectorRequest struct {
	Entity   string `json:"entity" validate:"required"`
	Kind     string `json:"kind" default:"city" validate:"oneof=city company"`
	Sector   string `json:"sector" validate:"required"`
	Baseline string `json:"baseline" default:"0"`
}

type RecordMeasurementRequest struct {
	Entity    string `json:"entity" validate:"required"`
	Sector    string `json:"sector" validate:"required"`
	Timestamp int64  `json:"t" validate:"required,gt=0"`
	Value     string `json:"value" validate:"required"`
}

type RecordBatchRequest struct {
	Records []RecordMeasurementRequest `json:"records" validate:"required,min=1,max=1000,dive"`
}

type StatsRequest struct {
	Entity string `query:"entity" json:"entity" validate:"required"`
	Sector string `query:"sector" json:"sector" validate:"required"`
}

type HealthRequest struct {
	Entity string `query:"entity" json:"entity" validate:"required"`
}

type GapRequest struct {
	Entity string `query:"entity" json:"entity" validate:"required"`
}

type SetGapRequest struct {
	Entity                  string `json:"entity" validate:"required"`
	CurrentTemperature      string `json:"current_temperature" validate:"required"`
	TargetTemperature       string `json:"target_temperature" validate:"required"`
	CarbonLevel             string `json:"carbon_level" validate:"required"`
	TargetCarbonLevel       string `json:"target_carbon_level" validate:"required"`
	AnnualEmissionReduction string `json:"annual_emission_reduction" default:"0"`
}

type ExecuteRenewalRequest struct {
	Entity string `json:"entity" validate:"required"`
	Sector string `json:"sector" validate:"required"`
}

type RenewalStatusRequest struct {
	Entity string `query:"entity" json:"entity" validate:"required"`
	Sector string `query:"sector" json:"sector" validate:"required"`
}

type IntentRequest struct {
	Participant string `json:"participant" validate:"required"`
}

type TradeRequest struct {
	Buyer        string `json:"buyer" validate:"required"`
	Seller       string `json:"seller" validate:"required,nefield=Buyer"`
	CreditAmount string `json:"credit_amount" validate:"required"`
	USDAmount    string `json:"usd_amount" validate:"required"`
	Entity       string `json:"entity" validate:"required"`
	Sector       string `json:"sector" validate:"required"`
}

type PositionRequest struct {
	Participant string `query:"participant" json:"participant" validate:"required"`
}
