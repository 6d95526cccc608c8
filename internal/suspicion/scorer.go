// Package suspicion turns divergence verdicts, redirect-chain depth, and
// external reputation heuristics into the 0-100 suspicion score shown for
// every ad, domain, and advertiser.
package suspicion

import (
	"math"

	"github.com/clearsight/adscope/internal/domain"
)

// Band labels are consumed verbatim by the UI and alerting; the thresholds
// are load-bearing and must not drift.
const (
	BandHigh   = "HIGH PROBABILITY"
	BandMedium = "Medium Risk"
	BandLow    = "Low Risk"

	HighBandMin   = 61
	MediumBandMin = 31
)

// Weights is the scoring configuration surface. The signal set is expected
// to evolve, so nothing here is a hardcoded constant in the engine.
type Weights struct {
	// DivergenceBase is the score a confirmed divergence contributes before
	// the verdict's delta is applied. The default places any confirmed
	// divergence in the high-probability band on its own.
	DivergenceBase int `yaml:"divergence_base"`
	// DivergenceDeltaWeight scales the verdict's 0-100 suspicion delta.
	DivergenceDeltaWeight float64 `yaml:"divergence_delta_weight"`
	// RedirectMax caps the redirect-chain contribution; each extra hop adds
	// less than the one before it.
	RedirectMax int `yaml:"redirect_max"`
	// RedirectDecay in (0,1) controls how quickly extra hops stop mattering.
	RedirectDecay float64 `yaml:"redirect_decay"`
	// ReputationWeight scales the externally supplied 0-100 domain risk.
	ReputationWeight float64 `yaml:"reputation_weight"`
}

// DefaultWeights keeps a bare confirmed divergence (delta 40, the single
// geo-pair case) at 65, inside the >=61 band.
func DefaultWeights() Weights {
	return Weights{
		DivergenceBase:        55,
		DivergenceDeltaWeight: 0.25,
		RedirectMax:           20,
		RedirectDecay:         0.7,
		ReputationWeight:      0.15,
	}
}

// Signals are the inputs to one score computation.
type Signals struct {
	// Diverges and SuspicionDelta come from the divergence verdict.
	Diverges       bool
	SuspicionDelta int
	// RedirectChainDepth is the observed redirect hop count for the ad's
	// landing URL.
	RedirectChainDepth int
	// DomainReputationRisk is an externally supplied 0-100 risk heuristic
	// (0 = clean). Zero when no provider is wired.
	DomainReputationRisk int
}

// Scorer computes suspicion scores under a fixed weight configuration.
type Scorer struct {
	w Weights
}

// NewScorer validates and applies the weight configuration, falling back to
// defaults for unset fields so a partial config section stays usable.
func NewScorer(w Weights) *Scorer {
	def := DefaultWeights()
	if w.DivergenceBase <= 0 {
		w.DivergenceBase = def.DivergenceBase
	}
	if w.DivergenceDeltaWeight <= 0 {
		w.DivergenceDeltaWeight = def.DivergenceDeltaWeight
	}
	if w.RedirectMax <= 0 {
		w.RedirectMax = def.RedirectMax
	}
	if w.RedirectDecay <= 0 || w.RedirectDecay >= 1 {
		w.RedirectDecay = def.RedirectDecay
	}
	if w.ReputationWeight <= 0 {
		w.ReputationWeight = def.ReputationWeight
	}
	return &Scorer{w: w}
}

// Score combines the signals into a 0-100 suspicion score. Deterministic,
// clamped, and monotonically non-decreasing in each signal's severity.
func (s *Scorer) Score(sig Signals) int {
	total := 0.0

	if sig.Diverges {
		delta := clamp(sig.SuspicionDelta, 0, 100)
		total += float64(s.w.DivergenceBase) + float64(delta)*s.w.DivergenceDeltaWeight
	}

	// Redirect depth: RedirectMax * (1 - decay^depth). Longer chains raise
	// suspicion monotonically with diminishing marginal weight.
	if sig.RedirectChainDepth > 0 {
		total += float64(s.w.RedirectMax) * (1 - math.Pow(s.w.RedirectDecay, float64(sig.RedirectChainDepth)))
	}

	if sig.DomainReputationRisk > 0 {
		total += float64(clamp(sig.DomainReputationRisk, 0, 100)) * s.w.ReputationWeight
	}

	return clamp(int(math.Round(total)), 0, 100)
}

// ScoreReport derives signals from an ad and its divergence report.
func (s *Scorer) ScoreReport(ad domain.Ad, report domain.DivergenceReport, reputationRisk int) int {
	return s.Score(Signals{
		Diverges:             report.Diverges,
		SuspicionDelta:       report.SuspicionDelta,
		RedirectChainDepth:   ad.RedirectChainDepth,
		DomainReputationRisk: reputationRisk,
	})
}

// Band maps a score to its UI/alerting risk band. Boundaries are exact:
// >=61 high, 31-60 medium, <=30 low.
func Band(score int) string {
	switch {
	case score >= HighBandMin:
		return BandHigh
	case score >= MediumBandMin:
		return BandMedium
	default:
		return BandLow
	}
}

// Mean is the rollup used for advertiser and domain aggregates: the plain
// arithmetic mean of the constituent ads' current scores, recomputed in
// full whenever any constituent changes. No incremental averaging.
func Mean(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
