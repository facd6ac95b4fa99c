package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/api/middleware"
	"github.com/dvloznov/sales-dashboard/internal/charts"
	"github.com/dvloznov/sales-dashboard/internal/dashboard"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/dvloznov/sales-dashboard/internal/jobs"
	"github.com/dvloznov/sales-dashboard/internal/selection"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Renderer renders the dashboard for one selector state.
type Renderer interface {
	Render(ctx context.Context, req selection.Request) (*dashboard.View, error)
}

// ParseSelection reads client, year and course from query parameters. An
// absent year parameter leaves the default in effect; an empty one clears it.
func ParseSelection(query url.Values) (selection.Request, error) {
	req := selection.Request{
		Client: query.Get("client"),
		Course: query.Get("course"),
	}
	if _, ok := query["year"]; ok {
		year, err := selection.ParseYear(query.Get("year"))
		if err != nil {
			return req, err
		}
		req.Year = year
	}
	return req, nil
}

// StatusFor maps render errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrQuery):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrMalformedDate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrConnection):
		return "Sales data store is unreachable"
	case errors.Is(err, domain.ErrQuery):
		return "Sales query failed"
	case errors.Is(err, domain.ErrMalformedDate):
		return err.Error()
	default:
		return "Failed to render dashboard"
	}
}

// DashboardHandler handles the dashboard view and chart image endpoints.
type DashboardHandler struct {
	renderer Renderer
	log      zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(renderer Renderer, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		renderer: renderer,
		log:      log,
	}
}

func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request) (*dashboard.View, bool) {
	req, err := ParseSelection(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
		return nil, false
	}

	view, err := h.renderer.Render(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("Failed to render dashboard")
		middleware.WriteError(w, StatusFor(err), errorMessage(err))
		return nil, false
	}
	return view, true
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	view, ok := h.render(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, view)
}

// GetChartPNG handles GET /api/charts/{kind}.png
func (h *DashboardHandler) GetChartPNG(w http.ResponseWriter, r *http.Request) {
	kind := charts.Kind(mux.Vars(r)["kind"])
	if !knownKind(kind) {
		middleware.WriteError(w, http.StatusNotFound, "Unknown chart")
		return
	}
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	height, _ := strconv.Atoi(r.URL.Query().Get("height"))

	view, ok := h.render(w, r)
	if !ok {
		return
	}
	spec := view.Charts.Get(kind)
	if spec == nil {
		middleware.WriteError(w, http.StatusNotFound, "Chart is not shown for this selection")
		return
	}

	var buf bytes.Buffer
	if err := charts.RenderPNG(spec, &buf, width, height); err != nil {
		if errors.Is(err, charts.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.log.Error().Err(err).Str("chart", string(kind)).Msg("Failed to draw chart")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to draw chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func knownKind(kind charts.Kind) bool {
	for _, k := range charts.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// SnapshotsHandler enqueues snapshot exports.
type SnapshotsHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSnapshotsHandler creates a new snapshots handler.
func NewSnapshotsHandler(publisher jobs.Publisher, log zerolog.Logger) *SnapshotsHandler {
	return &SnapshotsHandler{
		publisher: publisher,
		log:       log,
	}
}

// CreateSnapshot handles POST /api/snapshots
func (h *SnapshotsHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Client string `json:"client"`
		Year   *int   `json:"year"`
		Course string `json:"course"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Year != nil && *req.Year < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
		return
	}

	job := &jobs.SnapshotJob{
		Client: req.Client,
		Year:   req.Year,
		Course: req.Course,
	}

	if err := h.publisher.PublishSnapshot(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue snapshot job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue snapshot job")
		return
	}

	jobID, status := job.JobID, job.Status
	h.log.Info().Str("job_id", jobID).Str("client", req.Client).Msg("Snapshot job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Client: query.Get("client"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
