package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shl-matching/internal/match"
	"github.com/shl-matching/internal/normalize"
)

// MaxPerPage caps the page size of result listings
const MaxPerPage = 1000

// ResolveID is the primary id given to posted records that carry none
const ResolveID = "adhoc"

var validate = validator.New(validator.WithRequiredStructEnabled())

// ResultsHandler serves the outcome of one matching pass
type ResultsHandler struct {
	outcome    *match.Outcome
	resolver   *match.Matcher
	primary    map[string]match.Record
	candidates map[string]match.Record
	results    map[string]match.MatchResult
}

// ResultsListResponse represents a paginated list of results
type ResultsListResponse struct {
	Results []match.MatchResult `json:"results"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
}

// ResultDetail is a result with both records it links
type ResultDetail struct {
	Result    match.MatchResult `json:"result"`
	Tier      match.Tier        `json:"tier"`
	Primary   match.Record      `json:"primary"`
	Candidate *match.Record     `json:"candidate,omitempty"`
}

// ResolveRequest is a record to score against the whole candidate catalog
type ResolveRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name" validate:"required"`
	StreetAddress string `json:"street_address" validate:"required"`
	PostalCode    string `json:"postal_code" validate:"required"`
	City          string `json:"city"`
}

// NewResultsHandler indexes an outcome for lookups. Posted records are resolved
// against every deduplicated candidate, not only the blocks of the primary catalog.
func NewResultsHandler(outcome *match.Outcome, logger *zap.Logger) *ResultsHandler {
	h := &ResultsHandler{
		outcome:    outcome,
		primary:    make(map[string]match.Record, len(outcome.Primary)),
		candidates: make(map[string]match.Record, len(outcome.Candidates)),
		results:    make(map[string]match.MatchResult, len(outcome.Results)),
	}
	for _, p := range outcome.Primary {
		h.primary[p.ID] = p
	}
	for _, c := range outcome.Candidates {
		h.candidates[c.ID] = c
	}
	for _, r := range outcome.Results {
		h.results[r.PrimaryID] = r
	}

	index := match.NewBlockingIndex(outcome.Candidates, nil)
	opts := match.DefaultOptions()
	opts.ProgressEvery = 0
	h.resolver = match.NewMatcher(index, match.NewScorer(), opts, logger)

	return h
}

// GetStats returns the quality report of the pass
func (h *ResultsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.outcome.Report)
}

// ListResults returns a paginated list of results, optionally filtered by tier
func (h *ResultsHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := parseIntParam(query.Get("page"), 1)
	perPage := parseIntParam(query.Get("per_page"), 50)
	if page < 1 || perPage < 1 {
		writeError(w, http.StatusBadRequest, "page and per_page must be positive")
		return
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	filtered := h.outcome.Results
	if tier := query.Get("tier"); tier != "" {
		if !slices.Contains(match.Tiers, match.Tier(tier)) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown tier %q", tier))
			return
		}
		filtered = make([]match.MatchResult, 0)
		for _, res := range h.outcome.Results {
			if match.Classify(res.Score) == match.Tier(tier) {
				filtered = append(filtered, res)
			}
		}
	}

	response := ResultsListResponse{
		Results: []match.MatchResult{},
		Total:   len(filtered),
		Page:    page,
		PerPage: perPage,
	}
	if offset := (page - 1) * perPage; offset < len(filtered) {
		end := min(offset+perPage, len(filtered))
		response.Results = filtered[offset:end]
	}

	writeJSON(w, http.StatusOK, response)
}

// GetResult returns the result of one primary record
func (h *ResultsHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, ok := h.results[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no result for primary record %q", id))
		return
	}

	writeJSON(w, http.StatusOK, h.detail(h.primary[id], result))
}

// Resolve scores a posted record against the candidate catalog
func (h *ResultsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := match.Record{
		ID:            normalize.CleanField(req.ID),
		Name:          normalize.Text(req.Name),
		StreetAddress: normalize.Street(req.StreetAddress),
		PostalCode:    normalize.PostalCode(req.PostalCode),
		City:          normalize.Text(req.City),
	}
	if rec.ID == "" {
		rec.ID = ResolveID
	}
	if err := validate.Struct(rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.resolver.BestMatch(r.Context(), rec)
	writeJSON(w, http.StatusOK, h.detail(rec, result))
}

func (h *ResultsHandler) detail(primary match.Record, result match.MatchResult) ResultDetail {
	d := ResultDetail{
		Result:  result,
		Tier:    match.Classify(result.Score),
		Primary: primary,
	}
	if c, ok := h.candidates[result.CandidateID]; ok && result.Matched() {
		d.Candidate = &c
	}
	return d
}
