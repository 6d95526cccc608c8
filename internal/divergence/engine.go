// Package divergence decides whether an advertiser serves different landing
// page content under different access conditions (geography, device,
// referer). A confirmed divergence is the primary cloaking indicator feeding
// the suspicion scorer.
package divergence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/urlcheck"
)

// ErrInsufficientData marks a check that could not be judged because fewer
// than two comparable snapshots exist. It is a valid terminal state, not a
// failure; callers that only need the verdict can ignore it and read the
// report status instead.
var ErrInsufficientData = errors.New("divergence: fewer than two comparable snapshots")

// FetchError wraps a snapshot-acquisition failure. It is distinct from a
// clean "no divergence" verdict so the batch driver can count it as an
// error instead of recording a false negative.
type FetchError struct {
	AdID string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("divergence: snapshot fetch for ad %s: %v", e.AdID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SnapshotSource acquires landing-page captures for an ad, newest first.
// Implemented by the crawler collaborator client.
type SnapshotSource interface {
	FetchSnapshots(ctx context.Context, adID string) ([]domain.Snapshot, error)
}

// Condition facet severity when two snapshots disagree. Geography is the
// strongest cloaking signal, device and referer progressively weaker.
const (
	severityGeo     = 40
	severityDevice  = 25
	severityReferer = 20
	severityOther   = 15
)

// Engine compares landing-page snapshots captured under varying conditions
// and produces a divergence verdict with a suspicion delta.
type Engine struct {
	source SnapshotSource
	norm   NormalizeConfig
}

// NewEngine creates a divergence engine over the given snapshot source.
func NewEngine(source SnapshotSource, norm NormalizeConfig) *Engine {
	return &Engine{source: source, norm: norm}
}

// Check runs one divergence check for an ad against a target URL.
//
// The URL is validated before any fetch: an invalid target returns a
// *urlcheck.ValidationError and nothing is fetched. A failed fetch returns
// a *FetchError. Fewer than two comparable snapshots yields a report with
// status insufficient_data and diverges=false — the engine never guesses.
func (e *Engine) Check(ctx context.Context, adID, targetURL string) (domain.DivergenceReport, error) {
	report := domain.DivergenceReport{AdID: adID, CheckedAt: time.Now().UTC()}

	if err := urlcheck.Validate(targetURL); err != nil {
		return report, err
	}

	snaps, err := e.source.FetchSnapshots(ctx, adID)
	if err != nil {
		report.Status = domain.DivergenceFetchFailed
		return report, &FetchError{AdID: adID, Err: err}
	}

	verdict := Compare(snaps, e.norm)
	verdict.AdID = adID
	verdict.CheckedAt = report.CheckedAt
	return verdict, nil
}

// Compare computes a verdict from snapshots already in hand. It is pure and
// synchronous: no I/O, deterministic for identical input.
//
// Only the newest snapshot per condition participates; a verdict needs at
// least two distinct conditions. The suspicion delta is monotonic in the
// number and severity of mismatching pairs, with diminishing weight for
// each additional pair.
func Compare(snaps []domain.Snapshot, norm NormalizeConfig) domain.DivergenceReport {
	report := domain.DivergenceReport{Status: domain.DivergenceChecked, Snapshots: snaps}

	latest := latestPerCondition(snaps)
	if len(latest) < 2 {
		report.Status = domain.DivergenceInsufficientData
		return report
	}

	// Stable order so the verdict is deterministic regardless of fetch order.
	sort.Slice(latest, func(i, j int) bool { return latest[i].Condition < latest[j].Condition })

	var severities []int
	matched := map[string]bool{}
	for i := 0; i < len(latest); i++ {
		for j := i + 1; j < len(latest); j++ {
			a, b := latest[i], latest[j]
			if contentHash(a, norm) == contentHash(b, norm) {
				continue
			}
			severities = append(severities, pairSeverity(a.Condition, b.Condition))
			matched[a.Condition] = true
			matched[b.Condition] = true
		}
	}

	if len(severities) == 0 {
		return report // all hash-identical: diverges=false, delta=0
	}

	report.Diverges = true
	report.SuspicionDelta = combineSeverities(severities)
	for c := range matched {
		report.MatchedConditions = append(report.MatchedConditions, c)
	}
	sort.Strings(report.MatchedConditions)
	return report
}

// latestPerCondition keeps one snapshot per condition descriptor, preferring
// the most recent capture. The source contract is newest-first, but ordering
// is enforced here rather than trusted.
func latestPerCondition(snaps []domain.Snapshot) []domain.Snapshot {
	byCond := map[string]domain.Snapshot{}
	for _, s := range snaps {
		cond := strings.TrimSpace(s.Condition)
		if cond == "" {
			continue
		}
		cur, ok := byCond[cond]
		if !ok || s.CapturedAt.After(cur.CapturedAt) {
			byCond[cond] = s
		}
	}
	out := make([]domain.Snapshot, 0, len(byCond))
	for _, s := range byCond {
		out = append(out, s)
	}
	return out
}

// contentHash prefers the crawler-supplied hash; when absent it is computed
// from the preview text under the engine's normalization policy.
func contentHash(s domain.Snapshot, norm NormalizeConfig) string {
	if s.ContentHash != "" {
		return s.ContentHash
	}
	return HashContent(s.Preview, norm)
}

// pairSeverity scores one mismatching pair by the strongest facet on which
// the two access conditions differ. Condition descriptors are "+"-joined
// facets, e.g. "US+mobile" or "EU+desktop+fb-referer".
func pairSeverity(condA, condB string) int {
	fa, fb := facets(condA), facets(condB)
	severity := severityOther
	bump := func(s int) {
		if s > severity {
			severity = s
		}
	}
	if fa.geo != fb.geo {
		bump(severityGeo)
	}
	if fa.device != fb.device {
		bump(severityDevice)
	}
	if fa.referer != fb.referer {
		bump(severityReferer)
	}
	return severity
}

type conditionFacets struct {
	geo     string
	device  string
	referer string
}

var deviceNames = map[string]bool{"mobile": true, "desktop": true, "tablet": true}

func facets(cond string) conditionFacets {
	var f conditionFacets
	for _, part := range strings.Split(cond, "+") {
		p := strings.ToLower(strings.TrimSpace(part))
		switch {
		case deviceNames[p]:
			f.device = p
		case strings.Contains(p, "referer") || strings.Contains(p, "referrer"):
			f.referer = p
		case len(p) == 2:
			f.geo = p
		}
	}
	return f
}

// combineSeverities folds pair severities into a 0-100 delta: the worst
// pair counts in full, each further pair at half the weight of the one
// before it. Adding a pair never lowers the delta.
func combineSeverities(sev []int) int {
	sort.Sort(sort.Reverse(sort.IntSlice(sev)))
	total := 0.0
	weight := 1.0
	for _, s := range sev {
		total += float64(s) * weight
		weight /= 2
	}
	if total > 100 {
		total = 100
	}
	return int(total)
}
