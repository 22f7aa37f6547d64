package reportshandler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"timetrack/internal/domain/reports"
	"timetrack/internal/platform/apperr"
	"timetrack/internal/transport/http/api"
	"timetrack/internal/transport/http/middleware"
	"timetrack/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
}

func NewHandler(service *reports.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/jobs", h.handleJobRuns)
}

func (h *Handler) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	q := r.URL.Query()
	filter := reports.JobRunFilter{
		JobType: strings.TrimSpace(q.Get("jobType")),
		Status:  strings.TrimSpace(q.Get("status")),
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := shared.ParseDate(raw)
		if err != nil {
			api.FailError(w, r, apperr.Validation("invalid_date", "dates must be YYYY-MM-DD").WithField("from", "must be a valid date in YYYY-MM-DD format"), reqID)
			return
		}
		filter.StartedFrom = &from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := shared.ParseDate(raw)
		if err != nil {
			api.FailError(w, r, apperr.Validation("invalid_date", "dates must be YYYY-MM-DD").WithField("to", "must be a valid date in YYYY-MM-DD format"), reqID)
			return
		}
		filter.StartedTo = &to
	}

	page := shared.ParsePagination(r, 50, 200)
	runs, total, err := h.Service.JobRuns(r.Context(), user.UserID, chi.URLParam(r, "orgID"), filter, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, runs, reqID)
}
