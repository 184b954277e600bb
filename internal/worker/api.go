package worker

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civic-gov/platform/internal/ranking"
	"github.com/civic-gov/platform/internal/scoring"
	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/metrics"
	"github.com/civic-gov/platform/internal/shared/types"
)

// Store is the worker persistence contract the HTTP layer depends on.
// Implemented by Repository.
type Store interface {
	Create(ctx context.Context, w *Worker) error
	Get(ctx context.Context, id types.ID) (*Worker, error)
	Update(ctx context.Context, w *Worker) error
	SetActive(ctx context.Context, id types.ID, active bool) error
	FindActive(ctx context.Context) ([]Worker, error)
	List(ctx context.Context, filter ListFilter) ([]Worker, int, error)
	CacheMetrics(ctx context.Context, id types.ID, m MetricsSnapshot) error
}

var _ Store = (*Repository)(nil)

// RosterSource adapts the worker store to the ranking engine's member
// listing
type RosterSource struct {
	store Store
}

// NewRosterSource creates a ranking member source over the worker store
func NewRosterSource(store Store) *RosterSource {
	return &RosterSource{store: store}
}

// ActiveMembers lists the workers eligible for ranking
func (s *RosterSource) ActiveMembers(ctx context.Context) ([]ranking.Member, error) {
	workers, err := s.store.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	members := make([]ranking.Member, 0, len(workers))
	for _, w := range workers {
		members = append(members, ranking.Member{
			ID:         w.ID,
			Name:       w.Name,
			Department: w.DepartmentName,
		})
	}
	return members, nil
}

// Handler provides HTTP handlers for workers, scoring and the leaderboard
type Handler struct {
	store  Store
	scorer *scoring.Engine
	rank   *ranking.Engine
	cache  *MetricsCache
}

// NewHandler creates a new worker handler. The metrics cache is optional.
func NewHandler(store Store, scorer *scoring.Engine, rank *ranking.Engine, cache *MetricsCache) *Handler {
	return &Handler{store: store, scorer: scorer, rank: rank, cache: cache}
}

// Routes registers the worker routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/workers", func(r chi.Router) {
		r.Get("/", h.ListWorkers)
		r.Post("/", h.CreateWorker)

		r.Route("/{workerID}", func(r chi.Router) {
			r.Get("/", h.GetWorker)
			r.Put("/", h.UpdateWorker)
			r.Post("/active", h.SetActive)
			r.Get("/score", h.GetScore)
			r.Get("/badges", h.GetBadges)
		})
	})

	r.Get("/leaderboard", h.GetLeaderboard)

	return r
}

// ScoreResponse is the full gamified view of one worker's performance
type ScoreResponse struct {
	scoring.ScoreReport
	Rank   int             `json:"rank"` // 0 means unranked
	Badges []scoring.Badge `json:"badges"`
}

// --- Worker CRUD ---

// CreateWorker registers a new field worker
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" || req.DepartmentName == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name":            "name is required",
			"department_name": "department_name is required",
		}))
		return
	}

	now := time.Now()
	wk := &Worker{
		ID:             types.NewID(),
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Role:           req.Role,
		DepartmentID:   req.DepartmentID,
		DepartmentName: req.DepartmentName,
		Zone:           req.Zone,
		Active:         true,
		JoinedAt:       now,
		UpdatedAt:      now,
	}

	if err := h.store.Create(r.Context(), wk); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, wk)
}

// GetWorker gets a worker by ID
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(w, r)
	if !ok {
		return
	}

	wk, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wk)
}

// ListWorkers lists workers with optional filters
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
	}

	if d := r.URL.Query().Get("department"); d != "" {
		filter.Department = &d
	}
	if a := r.URL.Query().Get("active"); a != "" {
		active, err := strconv.ParseBool(a)
		if err != nil {
			writeError(w, errors.BadRequest("invalid active filter"))
			return
		}
		filter.Active = &active
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if limit, err := strconv.Atoi(l); err == nil {
			filter.Limit = limit
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if offset, err := strconv.Atoi(o); err == nil {
			filter.Offset = offset
		}
	}

	workers, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  workers,
		"total": total,
	})
}

// UpdateWorker updates a worker's profile
func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(w, r)
	if !ok {
		return
	}

	wk, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name != nil {
		wk.Name = *req.Name
	}
	if req.Email != nil {
		wk.Email = *req.Email
	}
	if req.Phone != nil {
		wk.Phone = *req.Phone
	}
	if req.Role != nil {
		wk.Role = *req.Role
	}
	if req.Zone != nil {
		wk.Zone = *req.Zone
	}

	if err := h.store.Update(r.Context(), wk); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wk)
}

// SetActive toggles a worker's leaderboard eligibility
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(w, r)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.store.SetActive(r.Context(), id, req.Active); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uid":    id,
		"active": req.Active,
	})
}

// --- Scoring ---

// GetScore returns the worker's derived score report, rank and badges.
// Always computed from the issue store; the Redis cache only short-circuits
// repeated reads within the TTL.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(w, r)
	if !ok {
		return
	}

	if h.cache != nil {
		var cached ScoreResponse
		hit, err := h.cache.LoadScore(r.Context(), id.String(), &cached)
		if err != nil {
			log.Printf("worker api: score cache read failed for %s: %v", id, err)
		}
		if hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	resp, err := h.computeScore(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetBadges returns the worker's currently earned badges
func (h *Handler) GetBadges(w http.ResponseWriter, r *http.Request) {
	id, ok := workerID(w, r)
	if !ok {
		return
	}

	resp, err := h.computeScore(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"worker_id": id,
		"badges":    resp.Badges,
		"earned":    len(resp.Badges),
	})
}

// computeScore runs the scoring engine, resolves the worker's rank and
// evaluates badges, then refreshes both cache layers
func (h *Handler) computeScore(ctx context.Context, id types.ID) (*ScoreResponse, error) {
	// Reject unknown workers before touching the issue store
	if _, err := h.store.Get(ctx, id); err != nil {
		return nil, err
	}

	report, err := h.scorer.Score(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.RecordScoringRecompute()

	rankPos := 0
	if h.rank != nil {
		entry, ranked, err := h.rank.RankOf(ctx, id)
		if err != nil {
			return nil, err
		}
		if ranked {
			rankPos = entry.Rank
		}
	}

	badges := scoring.EvaluateBadges(scoring.BadgeMetrics{
		TasksCompleted: report.TasksCompleted,
		CompletionRate: report.CompletionRate,
		Rank:           rankPos,
	})

	resp := &ScoreResponse{
		ScoreReport: *report,
		Rank:        rankPos,
		Badges:      badges,
	}

	if h.cache != nil {
		if err := h.cache.StoreScore(ctx, id.String(), resp); err != nil {
			log.Printf("worker api: score cache write failed for %s: %v", id, err)
		}
	}
	if err := h.store.CacheMetrics(ctx, id, MetricsSnapshot{
		CivicScore:     report.CivicScore,
		TasksCompleted: report.TasksCompleted,
		EarnedBadges:   len(badges),
	}); err != nil {
		log.Printf("worker api: metrics writeback failed for %s: %v", id, err)
	}

	return resp, nil
}

// --- Leaderboard ---

// GetLeaderboard returns the ranked standings over all active workers.
// Ranks are computed over the full roster; the department filter only
// narrows the returned rows.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("department")

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, errors.BadRequest("invalid limit"))
			return
		}
		limit = n
	}

	if h.cache != nil {
		var cached []ranking.Entry
		hit, err := h.cache.LoadLeaderboard(r.Context(), department, &cached)
		if err != nil {
			log.Printf("worker api: leaderboard cache read failed: %v", err)
		}
		if hit {
			writeJSON(w, http.StatusOK, leaderboardResponse(cached, limit))
			return
		}
	}

	start := time.Now()
	entries, err := h.rank.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordLeaderboardDuration(time.Since(start))

	if department != "" {
		filtered := make([]ranking.Entry, 0, len(entries))
		for _, e := range entries {
			if e.Department == department {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if h.cache != nil {
		if err := h.cache.StoreLeaderboard(r.Context(), department, entries); err != nil {
			log.Printf("worker api: leaderboard cache write failed: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, leaderboardResponse(entries, limit))
}

func leaderboardResponse(entries []ranking.Entry, limit int) map[string]any {
	total := len(entries)
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []ranking.Entry{}
	}
	return map[string]any{
		"data":  entries,
		"total": total,
	}
}

// --- Helpers ---

func workerID(w http.ResponseWriter, r *http.Request) (types.ID, bool) {
	id, err := types.ParseID(chi.URLParam(r, "workerID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid worker ID"))
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
