package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl-matching/internal/config"
	"github.com/shl-matching/internal/match"
	"github.com/shl-matching/internal/store"
	"github.com/shl-matching/internal/web/handlers"
)

func testOutcome(t *testing.T) *match.Outcome {
	t.Helper()
	primary := []match.Record{
		{ID: "S1", Name: "Grundschule Nord", StreetAddress: "Hauptstraße 5", PostalCode: "24103", City: "Kiel"},
		{ID: "S2", Name: "Gymnasium Süd", StreetAddress: "Schulweg 3", PostalCode: "24105", City: "Kiel"},
		{ID: "S3", Name: "Realschule", StreetAddress: "Am Markt 1", PostalCode: "99999", City: "Irgendwo"},
	}
	candidates := []match.Record{
		{ID: "C1", Name: "Grundschule Nord", StreetAddress: "Hauptstraße 5", PostalCode: "24103", City: "Kiel"},
		{ID: "C2", Name: "Gymnasium Kiel Süd", StreetAddress: "Schulweg 3a", PostalCode: "24105", City: "Kiel"},
		{ID: "C3", Name: "Förderzentrum Ost", StreetAddress: "Ostring 12", PostalCode: "24148", City: "Kiel"},
	}

	outcome, err := match.NewEngine(match.DefaultOptions(), nil).Run(context.Background(), primary, candidates)
	require.NoError(t, err)
	return outcome
}

func serve(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStats(t *testing.T) {
	s := NewServer(config.WebConfig{Host: "localhost", Port: 8080}, testOutcome(t), nil, nil)

	rec := serve(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report match.QualityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Stat(match.TierPerfect).Count)
	assert.Equal(t, 1, report.Stat(match.TierNoMatch).Count)
}

func TestListResults(t *testing.T) {
	s := NewServer(config.WebConfig{}, testOutcome(t), nil, nil)

	tests := []struct {
		name    string
		query   string
		status  int
		wantIDs []string
	}{
		{"all", "", http.StatusOK, []string{"S1", "S2", "S3"}},
		{"second page", "?page=2&per_page=2", http.StatusOK, []string{"S3"}},
		{"past the end", "?page=5&per_page=2", http.StatusOK, []string{}},
		{"tier filter", "?tier=no-match", http.StatusOK, []string{"S3"}},
		{"unknown tier", "?tier=great", http.StatusBadRequest, nil},
		{"bad page", "?page=0", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, s, http.MethodGet, "/api/results"+tt.query, "")
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}

			var resp handlers.ResultsListResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			ids := []string{}
			for _, r := range resp.Results {
				ids = append(ids, r.PrimaryID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestGetResult(t *testing.T) {
	s := NewServer(config.WebConfig{}, testOutcome(t), nil, nil)

	rec := serve(t, s, http.MethodGet, "/api/results/S1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail handlers.ResultDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "C1", detail.Result.CandidateID)
	assert.Equal(t, match.TierPerfect, detail.Tier)
	require.NotNil(t, detail.Candidate)
	assert.Equal(t, "Grundschule Nord", detail.Candidate.Name)

	rec = serve(t, s, http.MethodGet, "/api/results/S3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail = handlers.ResultDetail{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Nil(t, detail.Candidate)
	assert.Equal(t, match.TierNoMatch, detail.Tier)

	rec = serve(t, s, http.MethodGet, "/api/results/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolve(t *testing.T) {
	s := NewServer(config.WebConfig{}, testOutcome(t), nil, nil)

	tests := []struct {
		name       string
		body       string
		status     int
		wantID     string
		wantScore  float64
		wantPrimID string
	}{
		{
			name:       "candidate outside primary blocks",
			body:       `{"name": "Förderzentrum Ost", "street_address": "Ostring 12", "postal_code": "24148", "city": "Kiel"}`,
			status:     http.StatusOK,
			wantID:     "C3",
			wantScore:  100,
			wantPrimID: handlers.ResolveID,
		},
		{
			name:       "abbreviated street",
			body:       `{"id": "X9", "name": "Grundschule Nord", "street_address": "Hauptstr. 5", "postal_code": "24103"}`,
			status:     http.StatusOK,
			wantID:     "C1",
			wantScore:  100,
			wantPrimID: "X9",
		},
		{
			name:       "no block",
			body:       `{"name": "Schule", "street_address": "Weg 1", "postal_code": "1010"}`,
			status:     http.StatusOK,
			wantID:     match.NoMatchID,
			wantScore:  match.NoMatchScore,
			wantPrimID: handlers.ResolveID,
		},
		{name: "missing name", body: `{"street_address": "Weg 1", "postal_code": "24103"}`, status: http.StatusBadRequest},
		{name: "invalid postal code", body: `{"name": "Schule", "street_address": "Weg 1", "postal_code": "2410399"}`, status: http.StatusBadRequest},
		{name: "invalid JSON", body: `{"name":`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, s, http.MethodPost, "/api/resolve", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}

			var detail handlers.ResultDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
			assert.Equal(t, tt.wantID, detail.Result.CandidateID)
			assert.Equal(t, tt.wantScore, detail.Result.Score)
			assert.Equal(t, tt.wantPrimID, detail.Result.PrimaryID)
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	s := NewServer(config.WebConfig{}, testOutcome(t), nil, nil)

	rec := serve(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	serve(t, s, http.MethodGet, "/api/stats", "")
	rec = serve(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "matcher_http_requests_total")
	assert.Contains(t, rec.Body.String(), "matcher_scoring_pairs_total")
}

func TestAPIKeyProtectsAPIOnly(t *testing.T) {
	s := NewServer(config.WebConfig{APIKey: "s3cret"}, testOutcome(t), nil, nil)

	assert.Equal(t, http.StatusUnauthorized, serve(t, s, http.MethodGet, "/api/stats", "").Code)
	assert.Equal(t, http.StatusOK, serve(t, s, http.MethodGet, "/healthz", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-API-Key", "s3cret")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// fakeRuns is an in-memory run store
type fakeRuns struct {
	runs    map[uuid.UUID]*store.Run
	results map[uuid.UUID][]match.MatchResult
}

func (f *fakeRuns) GetRun(_ context.Context, id uuid.UUID) (*store.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, store.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRuns) ListResults(_ context.Context, id uuid.UUID) ([]match.MatchResult, error) {
	return f.results[id], nil
}

func TestRuns(t *testing.T) {
	outcome := testOutcome(t)
	id := uuid.New()
	runs := &fakeRuns{
		runs:    map[uuid.UUID]*store.Run{id: {ID: id, Label: "nightly", StartedAt: time.Now(), Report: outcome.Report}},
		results: map[uuid.UUID][]match.MatchResult{id: outcome.Results},
	}
	s := NewServer(config.WebConfig{}, outcome, runs, nil)

	rec := serve(t, s, http.MethodGet, "/api/runs/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run store.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "nightly", run.Label)

	rec = serve(t, s, http.MethodGet, "/api/runs/"+id.String()+"/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []match.MatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Equal(t, outcome.Results, results)

	assert.Equal(t, http.StatusNotFound, serve(t, s, http.MethodGet, "/api/runs/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, s, http.MethodGet, "/api/runs/not-a-uuid", "").Code)

	withoutDB := NewServer(config.WebConfig{}, outcome, nil, nil)
	assert.Equal(t, http.StatusNotFound, serve(t, withoutDB, http.MethodGet, "/api/runs/"+id.String(), "").Code)
}
