package suspicion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBand_ExactBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, BandLow},
		{30, BandLow},
		{31, BandMedium},
		{60, BandMedium},
		{61, BandHigh},
		{100, BandHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Band(tt.score), "score=%d", tt.score)
	}
}

func TestScore_ConfirmedDivergenceLandsHighBand(t *testing.T) {
	s := NewScorer(DefaultWeights())
	// The minimal confirmed case: one geo pair, delta 40.
	got := s.Score(Signals{Diverges: true, SuspicionDelta: 40})
	require.GreaterOrEqual(t, got, 61, "confirmed divergence must reach the high band")
	assert.Equal(t, BandHigh, Band(got))
}

func TestScore_NoSignalsIsZero(t *testing.T) {
	s := NewScorer(DefaultWeights())
	assert.Equal(t, 0, s.Score(Signals{}))
}

func TestScore_ClampedToHundred(t *testing.T) {
	s := NewScorer(DefaultWeights())
	got := s.Score(Signals{
		Diverges:             true,
		SuspicionDelta:       100,
		RedirectChainDepth:   50,
		DomainReputationRisk: 100,
	})
	assert.Equal(t, 100, got)
}

func TestScore_MonotoneInEachSignal(t *testing.T) {
	s := NewScorer(DefaultWeights())

	base := Signals{Diverges: true, SuspicionDelta: 20, RedirectChainDepth: 1, DomainReputationRisk: 10}
	ref := s.Score(base)

	moreDelta := base
	moreDelta.SuspicionDelta = 60
	assert.GreaterOrEqual(t, s.Score(moreDelta), ref)

	deeperChain := base
	deeperChain.RedirectChainDepth = 5
	assert.GreaterOrEqual(t, s.Score(deeperChain), ref)

	worseRep := base
	worseRep.DomainReputationRisk = 80
	assert.GreaterOrEqual(t, s.Score(worseRep), ref)
}

func TestScore_RedirectDepthDiminishingMarginal(t *testing.T) {
	s := NewScorer(DefaultWeights())
	score := func(depth int) int {
		return s.Score(Signals{RedirectChainDepth: depth})
	}
	d1 := score(1) - score(0)
	d2 := score(2) - score(1)
	d5 := score(5) - score(4)

	assert.Greater(t, d1, 0)
	assert.LessOrEqual(t, d2, d1)
	assert.LessOrEqual(t, d5, d2)
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer(DefaultWeights())
	sig := Signals{Diverges: true, SuspicionDelta: 55, RedirectChainDepth: 3, DomainReputationRisk: 25}
	assert.Equal(t, s.Score(sig), s.Score(sig))
}

func TestNewScorer_PartialConfigFallsBack(t *testing.T) {
	s := NewScorer(Weights{DivergenceBase: 70})
	got := s.Score(Signals{Diverges: true, SuspicionDelta: 0})
	assert.Equal(t, 70, got)
	// Untouched fields behave like the defaults.
	assert.Greater(t, s.Score(Signals{RedirectChainDepth: 3}), 0)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 50.0, Mean([]int{40, 60}), 0.0001)
	assert.InDelta(t, 33.333, Mean([]int{0, 50, 50}), 0.001)
}
