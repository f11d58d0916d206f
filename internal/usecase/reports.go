package usecase

import (
	"sort"

	"CarbonPulse/internal/domain/models"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/pkg/fixed"
)

// Reporter builds cross-entity emission summaries from ledger state.
type Reporter struct {
	store *ledger.Store
}

func NewReporter(store *ledger.Store) *Reporter {
	return &Reporter{store: store}
}

// EntityReport totals one entity's recorded emissions per sector and finds
// the peak sector.
func (r *Reporter) EntityReport(entity string) (*models.EntityReport, error) {
	rep := &models.EntityReport{Entity: entity, BySector: make(map[string]fixed.Num)}
	err := r.store.View(entity, func(st *models.EntityState) error {
		rep.Kind = st.Kind
		for name, sr := range st.Sectors {
			if !sr.Active || len(sr.Recorded) == 0 {
				continue
			}
			total := fixed.Zero()
			for _, ts := range sr.Recorded {
				total = total.Add(sr.Values[ts])
				if rep.FirstRecorded == 0 || ts < rep.FirstRecorded {
					rep.FirstRecorded = ts
				}
				if ts > rep.LastRecorded {
					rep.LastRecorded = ts
				}
			}
			rep.BySector[name] = total
			rep.TotalEmissions = rep.TotalEmissions.Add(total)
			if rep.PeakSector == "" || total.GT(rep.PeakValue) {
				rep.PeakSector = name
				rep.PeakValue = total
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// EmissionsReport aggregates every known entity, sorted by id.
func (r *Reporter) EmissionsReport() (*models.EmissionsReport, error) {
	out := &models.EmissionsReport{}
	entities := r.store.Entities()
	sort.Strings(entities)
	var highest, lowest fixed.Num
	for _, id := range entities {
		rep, err := r.EntityReport(id)
		if err != nil {
			return nil, err
		}
		out.Entities = append(out.Entities, *rep)
		out.TotalEmissions = out.TotalEmissions.Add(rep.TotalEmissions)
		if out.HighestEntity == "" || rep.TotalEmissions.GT(highest) {
			out.HighestEntity = id
			highest = rep.TotalEmissions
		}
		if out.LowestEntity == "" || rep.TotalEmissions.LT(lowest) {
			out.LowestEntity = id
			lowest = rep.TotalEmissions
		}
	}
	return out, nil
}
