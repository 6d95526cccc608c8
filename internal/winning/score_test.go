package winning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearsight/adscope/internal/domain"
)

func TestCompute_TierBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		days       int
		engagement int
		wantTotal  int
		wantTier   Tier
		wantWinner bool
	}{
		{"max both", 60, 100, 100, TierChampion, true},
		{"champion floor", 60, 63, 85, TierChampion, true}, // 60 + round(25.2)
		{"strong ceiling", 60, 60, 84, TierStrong, true},
		{"strong floor", 30, 100, 70, TierStrong, true},    // 30 + 40
		{"promising ceiling", 29, 100, 69, TierPromising, false}, // round(29+40*... )
		{"promising floor", 50, 0, 50, TierPromising, false},
		{"testing ceiling", 49, 0, 49, TierTesting, false},
		{"zero both", 0, 0, 0, TierTesting, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(tt.days, tt.engagement)
			assert.Equal(t, tt.wantTotal, s.Total)
			assert.Equal(t, tt.wantTier, s.Tier)
			assert.Equal(t, tt.wantWinner, s.IsWinner)
		})
	}
}

func TestCompute_LongevitySaturatesAt60Days(t *testing.T) {
	base := Compute(60, 50)
	for _, days := range []int{61, 90, 365, 10000} {
		s := Compute(days, 50)
		assert.Equal(t, 100, s.LongevityScore, "days=%d", days)
		assert.Equal(t, base.Total, s.Total, "days=%d", days)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(37, 81)
	b := Compute(37, 81)
	assert.Equal(t, a, b)
}

func TestCompute_Range(t *testing.T) {
	for days := 0; days <= 120; days += 7 {
		for eng := 0; eng <= 100; eng += 10 {
			s := Compute(days, eng)
			require.GreaterOrEqual(t, s.Total, 0)
			require.LessOrEqual(t, s.Total, 100)
		}
	}
}

func TestCompute_ClampsOutOfRangeInputs(t *testing.T) {
	s := Compute(-5, 150)
	assert.Equal(t, 0, s.LongevityScore)
	assert.Equal(t, 100, s.EngagementScore)
	assert.Equal(t, 40, s.Total)
}

func TestCompute_IsWinnerMatchesThreshold(t *testing.T) {
	for days := 0; days <= 70; days++ {
		for eng := 0; eng <= 100; eng += 5 {
			s := Compute(days, eng)
			assert.Equal(t, s.Total >= 70, s.IsWinner, "days=%d eng=%d", days, eng)
		}
	}
}

func TestForAd_UsesLongevityFromDates(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ad := domain.Ad{
		StartDate:       now.AddDate(0, 0, -90),
		EngagementScore: 100,
	}
	s := ForAd(ad, now)
	assert.Equal(t, 100, s.Total)
	assert.Equal(t, TierChampion, s.Tier)
}

func TestAggregate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ads := []domain.Ad{
		{StartDate: now.AddDate(0, 0, -90), EngagementScore: 100}, // 100 champion
		{StartDate: now.AddDate(0, 0, -30), EngagementScore: 100}, // 70 strong
		{StartDate: now, EngagementScore: 0},                      // 0 testing
	}
	st := Aggregate(ads, now)
	assert.Equal(t, 1, st.Champions)
	assert.Equal(t, 1, st.Strong)
	assert.Equal(t, 0, st.Promising)
	assert.Equal(t, 1, st.Testing)
	assert.Equal(t, 2, st.WinnerAds)
	assert.Equal(t, 3, st.TotalAds)
	assert.InDelta(t, (100.0+70.0+0.0)/3.0, st.AvgScore, 0.001)
}

func TestAggregate_Empty(t *testing.T) {
	st := Aggregate(nil, time.Now())
	assert.Equal(t, Stats{}, st)
}
