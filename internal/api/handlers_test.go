package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearsight/adscope/internal/divergence"
	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/repository/postgres"
	"github.com/clearsight/adscope/internal/suspicion"
	"github.com/clearsight/adscope/internal/worker"
)

type stubAds struct {
	byID        map[string]domain.Ad
	active      []domain.Ad
	scoreWrites map[string]int
}

func (s *stubAds) Get(ctx context.Context, id string) (domain.Ad, error) {
	ad, ok := s.byID[id]
	if !ok {
		return domain.Ad{}, postgres.ErrNotFound
	}
	return ad, nil
}

func (s *stubAds) List(ctx context.Context, f postgres.ListFilter) ([]domain.Ad, int, error) {
	return s.active, len(s.active), nil
}

func (s *stubAds) ListActive(ctx context.Context) ([]domain.Ad, error) {
	return s.active, nil
}

func (s *stubAds) WriteScore(ctx context.Context, adID string, score int, isCloaked bool, blackURL string) error {
	if s.scoreWrites == nil {
		s.scoreWrites = map[string]int{}
	}
	s.scoreWrites[adID] = score
	return nil
}

type stubAlerts struct {
	alerts  []domain.Alert
	read    []string
	deleted []string
}

func (s *stubAlerts) List(ctx context.Context, f postgres.AlertFilter) ([]domain.Alert, int, error) {
	return s.alerts, len(s.alerts), nil
}

func (s *stubAlerts) MarkRead(ctx context.Context, id string) error {
	for _, a := range s.alerts {
		if a.ID == id {
			s.read = append(s.read, id)
			return nil
		}
	}
	return postgres.ErrNotFound
}

func (s *stubAlerts) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubSnaps struct{ snaps []domain.Snapshot }

func (s *stubSnaps) ListByAd(ctx context.Context, adID string, limit int) ([]domain.Snapshot, error) {
	return s.snaps, nil
}

type stubRollups struct{}

func (stubRollups) ListAdvertisers(ctx context.Context, limit, offset int) ([]domain.Advertiser, error) {
	return []domain.Advertiser{{ID: "adv-1", Name: "Acme Media"}}, nil
}

func (stubRollups) ListDomains(ctx context.Context, limit, offset int) ([]domain.AdDomain, error) {
	return []domain.AdDomain{{ID: "dom-1", Host: "landing.example.com", Registrable: "example.com"}}, nil
}

type stubRunner struct {
	result worker.RunResult
	err    error
	got    *worker.RunRequest
}

func (s *stubRunner) Run(ctx context.Context, req worker.RunRequest) (worker.RunResult, error) {
	s.got = &req
	return s.result, s.err
}

type snapSource struct{ snaps []domain.Snapshot }

func (s snapSource) FetchSnapshots(ctx context.Context, adID string) ([]domain.Snapshot, error) {
	return s.snaps, nil
}

func testServer(t *testing.T, ads *stubAds, alerts *stubAlerts, runner *stubRunner, source divergence.SnapshotSource) http.Handler {
	t.Helper()
	if source == nil {
		source = snapSource{}
	}
	engine := divergence.NewEngine(source, divergence.DefaultNormalize)
	scorer := suspicion.NewScorer(suspicion.DefaultWeights())
	h := NewHandlers(ads, alerts, &stubSnaps{}, stubRollups{}, engine, scorer, runner, nil, nil)
	return SetupRoutes(h, NewHealthChecker(nil, nil), nil)
}

func testAd(id string) domain.Ad {
	return domain.Ad{
		ID:              id,
		AdvertiserID:    "adv-1",
		Status:          domain.AdActive,
		WhiteURL:        "https://promo.example.com/landing",
		StartDate:       time.Now().AddDate(0, 0, -90),
		EngagementScore: 80,
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	}
	return rec, payload
}

func TestHealthAlwaysAnswers(t *testing.T) {
	h := testServer(t, &stubAds{}, &stubAlerts{}, nil, nil)
	rec, payload := doJSON(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", payload["status"])
	checks := payload["checks"].(map[string]any)
	db := checks["database"].(map[string]any)
	assert.Equal(t, "not_configured", db["status"])
}

func TestListAds_IncludesWinningScore(t *testing.T) {
	ads := &stubAds{active: []domain.Ad{testAd("ad-1")}}
	h := testServer(t, ads, &stubAlerts{}, nil, nil)

	rec, payload := doJSON(t, h, http.MethodGet, "/api/ads", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.EqualValues(t, 1, payload["total"])
	list := payload["ads"].([]any)
	require.Len(t, list, 1)
	ws := list[0].(map[string]any)["winning_score"].(map[string]any)
	// 90 days saturates longevity; 0.6*100 + 0.4*80 = 92.
	assert.EqualValues(t, 92, ws["total"])
	assert.Equal(t, "champion", ws["tier"])
	assert.Equal(t, true, ws["is_winner"])
}

func TestListAds_RejectsUnknownStatus(t *testing.T) {
	h := testServer(t, &stubAds{}, &stubAlerts{}, nil, nil)
	rec, _ := doJSON(t, h, http.MethodGet, "/api/ads?status=archived", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAd_NotFound(t *testing.T) {
	h := testServer(t, &stubAds{byID: map[string]domain.Ad{}}, &stubAlerts{}, nil, nil)
	rec, _ := doJSON(t, h, http.MethodGet, "/api/ads/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunDivergenceCheck_PersistsScore(t *testing.T) {
	ads := &stubAds{byID: map[string]domain.Ad{"ad-1": testAd("ad-1")}}
	now := time.Now()
	source := snapSource{snaps: []domain.Snapshot{
		{AdID: "ad-1", Condition: "US+mobile", ContentHash: "aaa", CapturedAt: now},
		{AdID: "ad-1", Condition: "EU+desktop", ContentHash: "bbb", CapturedAt: now},
	}}
	h := testServer(t, ads, &stubAlerts{}, nil, source)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/ads/ad-1/divergence-check", "")
	require.Equal(t, http.StatusOK, rec.Code)

	score, ok := payload["suspicion_score"].(float64)
	require.True(t, ok, "score must be in the response")
	assert.GreaterOrEqual(t, int(score), suspicion.HighBandMin)
	assert.Equal(t, suspicion.BandHigh, payload["band"])
	assert.Equal(t, int(score), ads.scoreWrites["ad-1"])

	report := payload["report"].(map[string]any)
	assert.Equal(t, true, report["diverges"])
}

func TestRunDivergenceCheck_InsufficientData(t *testing.T) {
	ads := &stubAds{byID: map[string]domain.Ad{"ad-1": testAd("ad-1")}}
	source := snapSource{snaps: []domain.Snapshot{
		{AdID: "ad-1", Condition: "US+mobile", ContentHash: "aaa", CapturedAt: time.Now()},
	}}
	h := testServer(t, ads, &stubAlerts{}, nil, source)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/ads/ad-1/divergence-check", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, scored := payload["suspicion_score"]
	assert.False(t, scored, "no score without a verdict")
	assert.Empty(t, ads.scoreWrites)
	report := payload["report"].(map[string]any)
	assert.Equal(t, "insufficient_data", report["status"])
}

func TestRunDivergenceCheck_InvalidTarget(t *testing.T) {
	ad := testAd("ad-1")
	ad.WhiteURL = "http://10.0.0.5/internal"
	ads := &stubAds{byID: map[string]domain.Ad{"ad-1": ad}}
	h := testServer(t, ads, &stubAlerts{}, nil, nil)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/ads/ad-1/divergence-check", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_target", payload["code"])
}

func TestTriggerWorkerRun(t *testing.T) {
	runner := &stubRunner{result: worker.RunResult{Success: true, ProcessedCount: 3}}
	h := testServer(t, &stubAds{}, &stubAlerts{}, runner, nil)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/worker/run",
		`{"task_type":"divergence_test","schedule_type":"daily"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, payload["success"])
	assert.EqualValues(t, 3, payload["processed_count"])
	require.NotNil(t, runner.got)
	assert.Equal(t, worker.ScheduleDaily, runner.got.ScheduleType)
}

func TestTriggerWorkerRun_UnknownTask(t *testing.T) {
	runner := &stubRunner{}
	h := testServer(t, &stubAds{}, &stubAlerts{}, runner, nil)

	rec, _ := doJSON(t, h, http.MethodPost, "/api/worker/run", `{"task_type":"mystery"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, runner.got, "invalid requests never reach the runner")
}

func TestTriggerWorkerRun_Conflict(t *testing.T) {
	runner := &stubRunner{err: worker.ErrRunInProgress}
	h := testServer(t, &stubAds{}, &stubAlerts{}, runner, nil)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/worker/run",
		`{"task_type":"status_check","schedule_type":"intraday"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "run_in_progress", payload["code"])
}

func TestAlerts_MarkReadAndNotFound(t *testing.T) {
	alerts := &stubAlerts{alerts: []domain.Alert{{ID: "al-1", Type: domain.AlertCloakingConfirmed}}}
	h := testServer(t, &stubAds{}, alerts, nil, nil)

	rec, _ := doJSON(t, h, http.MethodPost, "/api/alerts/al-1/read", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"al-1"}, alerts.read)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/alerts/ghost/read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardStats(t *testing.T) {
	cloaked := testAd("ad-1")
	cloaked.SuspicionScore = 72
	cloaked.IsCloaked = true
	clean := testAd("ad-2")
	clean.SuspicionScore = 10

	ads := &stubAds{active: []domain.Ad{cloaked, clean}}
	h := testServer(t, ads, &stubAlerts{}, nil, nil)

	rec, payload := doJSON(t, h, http.MethodGet, "/api/dashboard/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.EqualValues(t, 1, payload["high_suspicion_ads"])
	assert.EqualValues(t, 1, payload["cloaked_ads"])
	assert.EqualValues(t, 41, payload["avg_suspicion"])
	winning := payload["winning"].(map[string]any)
	assert.EqualValues(t, 2, winning["total_ads"])
}
