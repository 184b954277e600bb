package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civic-gov/platform/internal/classifier"
	"github.com/civic-gov/platform/internal/issue/domain"
	"github.com/civic-gov/platform/internal/portal"
	"github.com/civic-gov/platform/internal/shared/auth"
	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/events"
	"github.com/civic-gov/platform/internal/shared/metrics"
	"github.com/civic-gov/platform/internal/shared/types"
	"github.com/civic-gov/platform/internal/worker"
)

// Handler provides HTTP handlers for the issue lifecycle. Notifications are
// not sent from here; the notification consumer picks them up from the
// events published after each transition.
type Handler struct {
	repo       domain.Repository
	workers    *worker.Repository
	classifier *classifier.Client
	bus        events.EventBus
	mirror     *portal.Mirror
	cache      *worker.MetricsCache
}

// NewHandler creates a new issue handler. Everything except the repository
// is optional; a nil collaborator disables that side effect.
func NewHandler(
	repo domain.Repository,
	workers *worker.Repository,
	clf *classifier.Client,
	bus events.EventBus,
	mirror *portal.Mirror,
	cache *worker.MetricsCache,
) *Handler {
	return &Handler{
		repo:       repo,
		workers:    workers,
		classifier: clf,
		bus:        bus,
		mirror:     mirror,
		cache:      cache,
	}
}

// Routes registers the issue routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/classify", h.ClassifyReport)

	r.Route("/issues", func(r chi.Router) {
		r.Get("/", h.ListIssues)
		r.Post("/", h.CreateIssue)

		r.Route("/{issueID}", func(r chi.Router) {
			r.Get("/", h.GetIssue)
			r.Post("/assign", h.AssignIssue)
			r.Post("/status", h.ChangeStatus)
			r.Post("/escalate", h.Escalate)
			r.Post("/escalation/decision", h.DecideEscalation)
			r.Post("/proof", h.SubmitProof)
			r.Post("/proof/decision", h.DecideProof)
		})
	})

	return r
}

// --- Requests ---

// CreateIssueRequest is a citizen report entering the lifecycle. Department
// and priority are normally set by the classification service; the manual
// fields only apply when classification is disabled.
type CreateIssueRequest struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	ReportedBy     string         `json:"reported_by"`
	Location       types.Location `json:"location"`
	OriginalPostID string         `json:"original_post_id,omitempty"`

	Department string `json:"department,omitempty"`
	Priority   string `json:"priority,omitempty"`
}

// AssignRequest routes an issue to a worker
type AssignRequest struct {
	WorkerID types.ID `json:"worker_id"`
}

// ChangeStatusRequest requests a direct status transition
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// EscalateRequest raises an escalation on behalf of the assigned worker
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// DecisionRequest carries an approve-or-reject review decision
type DecisionRequest struct {
	Decision string `json:"decision"` // approved, rejected
}

// SubmitProofRequest carries the worker's proof-of-work evidence
type SubmitProofRequest struct {
	MediaURL  string                 `json:"media_url"`
	MediaType string                 `json:"media_type"`
	Notes     string                 `json:"notes,omitempty"`
	Geo       *types.GeoVerification `json:"geo,omitempty"`
}

// --- Handlers ---

// CreateIssue registers a classified citizen report and opens its lifecycle
func (h *Handler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	var req CreateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Title == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"title": "title is required",
		}))
		return
	}

	department := domain.Department(req.Department)
	priority := domain.Priority(req.Priority)

	if h.classifier != nil {
		result, err := h.classifier.Classify(r.Context(), req.Title+"\n"+req.Description)
		if err != nil {
			// A rejection is final. An unreachable classifier still lets a
			// manually routed report through.
			if errors.Is(err, errors.ErrValidation) || !department.IsValid() {
				metrics.RecordClassifierRequest(classifierOutcome(err))
				writeError(w, err)
				return
			}
			metrics.RecordClassifierRequest("failed")
		} else {
			metrics.RecordClassifierRequest("classified")
			department = result.Department
			priority = result.Priority
			if req.Category == "" {
				req.Category = result.Summary
			}
		}
	}

	issue, err := domain.NewIssue(
		req.Title, req.Description, req.Category,
		department, priority,
		req.ReportedBy, req.Location, req.OriginalPostID,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Save(r.Context(), issue); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordIssueCreated(string(issue.Department), string(issue.Priority))
	h.publishEvents(r, issue)
	h.mirrorStatus(r, issue)

	writeJSON(w, http.StatusCreated, issueResponse(issue))
}

// ClassifyRequest carries raw report text for routing
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyReport routes raw report text through the classification service
// so the reporting flow can preview department and priority before filing
func (h *Handler) ClassifyReport(w http.ResponseWriter, r *http.Request) {
	if h.classifier == nil {
		writeError(w, errors.Unavailable(nil, "classification service is not configured"))
		return
	}

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Text == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"text": "text is required",
		}))
		return
	}

	result, err := h.classifier.Classify(r.Context(), req.Text)
	if err != nil {
		metrics.RecordClassifierRequest(classifierOutcome(err))
		writeError(w, err)
		return
	}

	metrics.RecordClassifierRequest("classified")
	writeJSON(w, http.StatusOK, result)
}

// GetIssue gets an issue by ID
func (h *Handler) GetIssue(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, issueResponse(issue))
}

// ListIssues lists issues with optional filters
func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		Search: r.URL.Query().Get("search"),
	}

	if d := r.URL.Query().Get("department"); d != "" {
		dept := domain.Department(d)
		filter.Department = &dept
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.Status(s)
		filter.Status = &status
	}
	if p := r.URL.Query().Get("priority"); p != "" {
		priority := domain.Priority(p)
		filter.Priority = &priority
	}
	if a := r.URL.Query().Get("assignee"); a != "" {
		id, err := types.ParseID(a)
		if err != nil {
			writeError(w, errors.BadRequest("invalid assignee ID"))
			return
		}
		filter.Assignee = &id
	}

	issues, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]any, 0, len(issues))
	for idx := range issues {
		data = append(data, issueResponse(&issues[idx]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": total,
	})
}

// AssignIssue routes an issue to a department worker
func (h *Handler) AssignIssue(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if _, err := h.resolveWorker(r, req.WorkerID); err != nil {
		writeError(w, err)
		return
	}

	if err := issue.Assign(req.WorkerID, actorID(r)); err != nil {
		metrics.RecordTransitionRejected("assign")
		writeError(w, err)
		return
	}

	if !h.persistTransition(w, r, issue) {
		return
	}

	writeJSON(w, http.StatusOK, issueResponse(issue))
}

// ChangeStatus applies a direct status transition
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	from := issue.Status
	if err := issue.ChangeStatus(domain.Status(req.Status), actorID(r)); err != nil {
		metrics.RecordTransitionRejected("change_status")
		writeError(w, err)
		return
	}

	if !h.persistTransition(w, r, issue) {
		return
	}

	metrics.RecordStatusChange(string(from), string(issue.Status))
	writeJSON(w, http.StatusOK, issueResponse(issue))
}

// Escalate raises a worker-initiated escalation request
func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	var req EscalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	from := issue.Status
	if err := issue.Escalate(req.Reason, actorID(r)); err != nil {
		metrics.RecordTransitionRejected("escalate")
		writeError(w, err)
		return
	}

	if !h.persistTransition(w, r, issue) {
		return
	}

	metrics.RecordStatusChange(string(from), string(issue.Status))
	metrics.RecordEscalation("requested")
	writeJSON(w, http.StatusOK, issueResponse(issue))
}

// DecideEscalation applies the department's decision on an escalation.
// Approval freezes the issue; rejection returns it to the worker's queue.
func (h *Handler) DecideEscalation(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	decision := domain.EscalationStatus(req.Decision)
	if err := issue.ResolveEscalation(decision, actorID(r)); err != nil {
		metrics.RecordTransitionRejected("decide_escalation")
		writeError(w, err)
		return
	}

	if !h.persistTransition(w, r, issue) {
		return
	}

	metrics.RecordEscalation(string(decision))
	writeJSON(w, http.StatusOK, issueResponse(issue))
}

// SubmitProof records proof-of-work evidence and moves the issue into review
func (h *Handler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	var req SubmitProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	from := issue.Status
	proof := &domain.ProofOfWork{
		MediaURL:  req.MediaURL,
		MediaType: domain.MediaType(req.MediaType),
		Notes:     req.Notes,
		Geo:       req.Geo,
	}
	if err := issue.SubmitProof(proof); err != nil {
		metrics.RecordTransitionRejected("submit_proof")
		writeError(w, err)
		return
	}

	if !h.persistTransition(w, r, issue) {
		return
	}

	metrics.RecordStatusChange(string(from), string(issue.Status))
	writeJSON(w, http.StatusOK, issueResponse(issue))
}

// DecideProof applies the department's review decision on submitted proof.
// Approval completes the issue and counts toward the worker's score.
func (h *Handler) DecideProof(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadIssue(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	decision := domain.ProofStatus(req.Decision)
	from := issue.Status
	if err := issue.ResolveProof(decision, actorID(r)); err != nil {
		metrics.RecordTransitionRejected("decide_proof")
		writeError(w, err)
		return
	}

	if !h.persistTransition(w, r, issue) {
		return
	}

	if issue.Status != from {
		metrics.RecordStatusChange(string(from), string(issue.Status))
	}
	metrics.RecordProofDecision(string(decision))
	writeJSON(w, http.StatusOK, issueResponse(issue))
}

// --- Orchestration helpers ---

// loadIssue parses the path ID and fetches the issue snapshot a transition
// starts from
func (h *Handler) loadIssue(w http.ResponseWriter, r *http.Request) (*domain.Issue, bool) {
	id, err := types.ParseID(chi.URLParam(r, "issueID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid issue ID"))
		return nil, false
	}

	issue, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return issue, true
}

// persistTransition writes the staged changes of a completed transition under
// compare-and-set, then fans out the side effects. Returns false after
// writing the error response.
func (h *Handler) persistTransition(w http.ResponseWriter, r *http.Request, issue *domain.Issue) bool {
	changes := issue.PendingChanges()
	if len(changes) == 0 {
		return true
	}

	if err := h.repo.UpdateFields(r.Context(), issue.ID, changes, issue.Version); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			metrics.RecordWriteConflict()
		}
		writeError(w, err)
		return false
	}
	issue.Version++

	h.publishEvents(r, issue)
	h.mirrorStatus(r, issue)
	h.invalidateScore(r, issue)

	return true
}

// publishEvents drains the transition's domain events onto the bus.
// Best effort; a publish failure never fails the request.
func (h *Handler) publishEvents(r *http.Request, issue *domain.Issue) {
	domainEvents := issue.DomainEvents()
	if h.bus == nil || len(domainEvents) == 0 {
		return
	}

	user := auth.GetUser(r.Context())
	for _, de := range domainEvents {
		data := map[string]any{
			"issue_id":       issue.ID,
			"title":          issue.Title,
			"department":     issue.Department,
			"priority":       issue.Priority,
			"display_status": issue.DisplayStatus(),
		}
		if issue.AssignedPersonnel != nil {
			data["assigned_personnel"] = *issue.AssignedPersonnel
		}
		for k, v := range de.Data {
			data[k] = v
		}

		event := events.NewEvent("issue."+string(de.Type), "issue", data)
		if user != nil {
			event = event.WithActor(user.ID, user.UserType, user.Department)
		} else {
			event = event.WithActor(de.ActorID, "system", "")
		}

		if err := h.bus.Publish(r.Context(), event); err != nil {
			log.Printf("issue api: failed to publish %s: %v", event.Type, err)
		}
	}
}

// mirrorStatus pushes the derived display status back to the citizen portal
// post the issue was raised from. Best effort by contract.
func (h *Handler) mirrorStatus(r *http.Request, issue *domain.Issue) {
	if h.mirror == nil || issue.OriginalPostID == "" {
		return
	}
	h.mirror.MirrorStatus(r.Context(), issue.OriginalPostID, issue.DisplayStatus())
}

// invalidateScore drops the assignee's cached score after a transition that
// may have changed their metrics
func (h *Handler) invalidateScore(r *http.Request, issue *domain.Issue) {
	if h.cache == nil || issue.AssignedPersonnel == nil {
		return
	}
	if err := h.cache.InvalidateScore(r.Context(), issue.AssignedPersonnel.String()); err != nil {
		log.Printf("issue api: failed to invalidate score cache for %s: %v", *issue.AssignedPersonnel, err)
	}
}

// resolveWorker checks the worker referenced by an assignment exists before
// the transition runs. Returns nil without error when no worker repository
// is wired.
func (h *Handler) resolveWorker(r *http.Request, id types.ID) (*worker.Worker, error) {
	if h.workers == nil || id.IsZero() {
		return nil, nil
	}
	return h.workers.Get(r.Context(), id)
}

func actorID(r *http.Request) types.ID {
	if user := auth.GetUser(r.Context()); user != nil {
		return user.ID
	}
	return ""
}

// issueResponse decorates the stored snapshot with the derived display status
func issueResponse(issue *domain.Issue) map[string]any {
	return map[string]any{
		"issue":          issue,
		"display_status": issue.DisplayStatus(),
	}
}

func classifierOutcome(err error) string {
	if errors.Is(err, errors.ErrValidation) {
		return "rejected"
	}
	return "failed"
}

// --- Helpers ---

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
