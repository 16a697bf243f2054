// Package handlers implements the JSON HTTP surface of the finance bot.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/export"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/logger"
)

// maxMessageBytes bounds the body of POST /api/messages.
const maxMessageBytes = 16 << 10

// Dispatcher answers one chat message.
type Dispatcher interface {
	Handle(ctx context.Context, ownerID int64, name, text string) domain.Reply
}

// MessagesHandler handles POST /api/messages.
type MessagesHandler struct {
	dispatcher Dispatcher
}

// NewMessagesHandler creates a messages handler.
func NewMessagesHandler(d Dispatcher) *MessagesHandler {
	return &MessagesHandler{dispatcher: d}
}

// MessageRequest is the body of POST /api/messages.
type MessageRequest struct {
	Text string `json:"text"`
	Name string `json:"name,omitempty"`
}

// Post handles POST /api/messages. Business failures are still 200 with
// ok=false; only malformed requests get an error status.
func (h *MessagesHandler) Post(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unknown owner")
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Text is required")
		return
	}

	reply := h.dispatcher.Handle(r.Context(), ownerID, req.Name, req.Text)
	middleware.WriteJSON(w, http.StatusOK, reply)
}

// Exporter renders and publishes month exports.
type Exporter interface {
	MonthCSV(ctx context.Context, ownerID int64, year, month int) (*export.File, error)
	Publish(ctx context.Context, f *export.File) (string, error)
}

// ExportHandler handles GET /api/export.
type ExportHandler struct {
	exporter Exporter
}

// NewExportHandler creates an export handler.
func NewExportHandler(e Exporter) *ExportHandler {
	return &ExportHandler{exporter: e}
}

// Get streams the month as CSV, or with publish=true uploads it and returns
// the gs:// URI.
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := middleware.OwnerFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unknown owner")
		return
	}

	query := r.URL.Query()
	year, errY := optionalInt(query.Get("year"))
	month, errM := optionalInt(query.Get("month"))
	if errY != nil || errM != nil {
		middleware.WriteError(w, http.StatusBadRequest, "year and month must be numbers")
		return
	}

	f, err := h.exporter.MonthCSV(ctx, ownerID, year, month)
	if err != nil {
		writeServiceError(ctx, w, "export", err)
		return
	}

	if publish, _ := strconv.ParseBool(query.Get("publish")); publish {
		uri, err := h.exporter.Publish(ctx, f)
		if errors.Is(err, export.ErrPublishDisabled) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Export publishing is not configured")
			return
		}
		if err != nil {
			writeServiceError(ctx, w, "export", err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"uri":  uri,
			"rows": f.Rows,
		})
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.Name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(f.Data)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}. Jobs of other owners are reported as
// not found.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, _ := middleware.OwnerFromContext(ctx)
	jobID := r.PathValue("id")
	if jobID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) || (err == nil && job.OwnerID != ownerID) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs for the calling owner.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, _ := middleware.OwnerFromContext(ctx)

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		OwnerID: ownerID,
		Type:    jobs.JobType(query.Get("type")),
		Status:  jobs.JobStatus(query.Get("status")),
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

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.NotificationJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Pinger reports whether the primary store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /health.
type HealthHandler struct {
	db    Pinger
	clock clock.Clock
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db Pinger, c clock.Clock) *HealthHandler {
	return &HealthHandler{db: db, clock: c}
}

// Get reports healthy, or 503 when the database does not answer.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Health check failed")
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	middleware.WriteJSON(w, code, map[string]string{
		"status": status,
		"time":   h.clock.Now().Format(time.RFC3339),
	})
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// writeServiceError maps the domain taxonomy onto HTTP statuses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	reply := domain.Failure(ctx, op, err)
	switch {
	case errors.Is(err, domain.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, reply.Text())
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, reply.Text())
	case errors.Is(err, domain.ErrTransient):
		middleware.WriteError(w, http.StatusServiceUnavailable, reply.Text())
	default:
		middleware.WriteError(w, http.StatusInternalServerError, reply.Text())
	}
}

// Routes registers every API endpoint on mux. The caller wraps /api/ routes
// with authentication.
func Routes(mux *http.ServeMux, m *MessagesHandler, e *ExportHandler, j *JobsHandler) {
	mux.HandleFunc("POST /api/messages", m.Post)
	mux.HandleFunc("GET /api/export", e.Get)
	mux.HandleFunc("GET /api/jobs", j.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", j.GetJob)
}
