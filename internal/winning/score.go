// Package winning computes the composite quality/maturity ("winning") score
// for an ad from its longevity and engagement. The score is derived on every
// read and never persisted, so it can never go stale relative to its inputs.
package winning

import (
	"math"
	"time"

	"github.com/clearsight/adscope/internal/domain"
)

// Tier classifies an ad's winning score.
type Tier string

const (
	TierChampion  Tier = "champion"
	TierStrong    Tier = "strong"
	TierPromising Tier = "promising"
	TierTesting   Tier = "testing"
)

// Score is the computed winning score for one ad.
type Score struct {
	Total           int  `json:"total"`
	LongevityScore  int  `json:"longevity_score"`
	EngagementScore int  `json:"engagement_score"`
	Tier            Tier `json:"tier"`
	IsWinner        bool `json:"is_winner"`
}

// Stats is a reduction of Compute over a set of ads. It is recomputed from
// the current ad set on every query, never cached independently of the ads.
type Stats struct {
	Champions  int     `json:"champions"`
	Strong     int     `json:"strong"`
	Promising  int     `json:"promising"`
	Testing    int     `json:"testing"`
	AvgScore   float64 `json:"avg_score"`
	TotalAds   int     `json:"total_ads"`
	WinnerAds  int     `json:"winner_ads"`
}

// Compute derives the winning score from longevity days and engagement.
//
//	longevityScore = min(100, days/60 * 100)   // 60+ days maxes out
//	total          = round(0.6*longevity + 0.4*engagement)
//
// Rounding is half-away-from-zero (math.Round). Pure function: identical
// inputs always produce identical output.
func Compute(longevityDays, engagementScore int) Score {
	if longevityDays < 0 {
		longevityDays = 0
	}
	if engagementScore < 0 {
		engagementScore = 0
	} else if engagementScore > 100 {
		engagementScore = 100
	}

	longevity := float64(longevityDays) / 60.0 * 100.0
	if longevity > 100 {
		longevity = 100
	}

	total := int(math.Round(longevity*0.6 + float64(engagementScore)*0.4))

	return Score{
		Total:           total,
		LongevityScore:  int(math.Round(longevity)),
		EngagementScore: engagementScore,
		Tier:            tierFor(total),
		IsWinner:        total >= 70,
	}
}

// ForAd computes the winning score for an ad as of now.
func ForAd(ad domain.Ad, now time.Time) Score {
	return Compute(ad.LongevityDays(now), ad.EngagementScore)
}

// Aggregate reduces a set of ads to tier counts and the average score.
func Aggregate(ads []domain.Ad, now time.Time) Stats {
	var st Stats
	st.TotalAds = len(ads)
	if len(ads) == 0 {
		return st
	}

	sum := 0
	for _, ad := range ads {
		s := ForAd(ad, now)
		sum += s.Total
		if s.IsWinner {
			st.WinnerAds++
		}
		switch s.Tier {
		case TierChampion:
			st.Champions++
		case TierStrong:
			st.Strong++
		case TierPromising:
			st.Promising++
		default:
			st.Testing++
		}
	}
	st.AvgScore = float64(sum) / float64(len(ads))
	return st
}

func tierFor(total int) Tier {
	switch {
	case total >= 85:
		return TierChampion
	case total >= 70:
		return TierStrong
	case total >= 50:
		return TierPromising
	default:
		return TierTesting
	}
}
