package health

import (
	"CarbonPulse/internal/domain/models"
	"CarbonPulse/pkg/fixed"
)

// Default thresholds, both on the scaled 0-100 index scale where relevant.
var (
	// DefaultMaxSafeEmission is the per-sector rolling average at or below
	// which a sector scores a full 100.
	DefaultMaxSafeEmission = fixed.FromInt(50)
	// DefaultVulnerableThreshold marks an entity vulnerable when its index
	// drops strictly below it.
	DefaultVulnerableThreshold = fixed.FromInt(50)
)

// Engine derives the 0-100 health index of an entity from its sector
// rolling averages and maintains the edge-triggered vulnerability flag.
// Engine is stateless; all state lives on the EntityState it is applied to.
type Engine struct {
	maxSafe    fixed.Num
	vulnerable fixed.Num
}

// NewEngine creates a health engine. Zero thresholds fall back to the
// package defaults.
func NewEngine(maxSafe, vulnerableThreshold fixed.Num) *Engine {
	if maxSafe.IsZero() {
		maxSafe = DefaultMaxSafeEmission
	}
	if vulnerableThreshold.IsZero() {
		vulnerableThreshold = DefaultVulnerableThreshold
	}
	return &Engine{maxSafe: maxSafe, vulnerable: vulnerableThreshold}
}

// SectorScore maps one rolling average onto the scaled 0-100 scale.
// At or below the safe threshold the score is a full 100; above it the
// score decays as (maxSafe * 100) / avg, truncated, so it approaches zero
// but never exceeds 100.
func (e *Engine) SectorScore(avg fixed.Num) fixed.Num {
	if avg.LTE(e.maxSafe) {
		return fixed.FromInt(100)
	}
	return e.maxSafe.MulInt(100).Div(avg)
}

// Index computes the entity health index: the unweighted mean of sector
// scores over active sectors that have a non-zero rolling average. Sectors
// without data are excluded rather than counted as zero. With no scoring
// sectors the index is a full 100.
func (e *Engine) Index(st *models.EntityState) fixed.Num {
	sum := fixed.Zero()
	n := int64(0)
	for _, sr := range st.Sectors {
		if !sr.Active || sr.RollingAverage.IsZero() {
			continue
		}
		sum = sum.Add(e.SectorScore(sr.RollingAverage))
		n++
	}
	if n == 0 {
		return fixed.FromInt(100)
	}
	return sum.DivInt(n)
}

// Apply recomputes the entity index and vulnerability flag in place.
// It reports true exactly on the not-vulnerable -> vulnerable transition,
// so callers can raise the alert once and never repeat it while the entity
// stays vulnerable. Must run inside the entity's critical section.
func (e *Engine) Apply(st *models.EntityState) bool {
	wasVulnerable := st.Health.Vulnerable
	st.Health.Index = e.Index(st)
	st.Health.Vulnerable = st.Health.Index.LT(e.vulnerable)
	return st.Health.Vulnerable && !wasVulnerable
}
