package repository

import "strings"

// Well-known sector names. Sectors are open-ended; these are the ones the
// ingest feeds use by default.
const (
	SectorEnergy    = "energy"
	SectorTransport = "transport"
	SectorIndustry  = "industry"
	SectorBuildings = "buildings"
	SectorWaste     = "waste"
)

// NormalizeSector lowercases and trims a raw sector name.
func NormalizeSector(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
