package timesheetshandler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"timetrack/internal/domain/audit"
	"timetrack/internal/domain/timesheet"
	"timetrack/internal/platform/apperr"
	"timetrack/internal/platform/optional"
	"timetrack/internal/transport/http/api"
	"timetrack/internal/transport/http/middleware"
	"timetrack/internal/transport/http/shared"
)

// PDFRenderer renders a timesheet the actor may view.
type PDFRenderer interface {
	TimesheetPDF(ctx context.Context, actorID, orgID, id string) ([]byte, timesheet.Summary, error)
}

type Handler struct {
	Service *timesheet.Service
	Reports PDFRenderer
	Audit   shared.AuditRecorder
}

func NewHandler(service *timesheet.Service, reports PDFRenderer, recorder shared.AuditRecorder) *Handler {
	return &Handler{Service: service, Reports: reports, Audit: recorder}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/timesheets", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleListOrg)
		r.Get("/mine", h.handleListMine)
		r.Get("/pending", h.handleListPending)
		r.Route("/{timesheetID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/submit", h.handleSubmit)
			r.Post("/approve", h.handleApprove)
			r.Post("/reject", h.handleReject)
			r.Get("/export.pdf", h.handleExportPDF)
			r.Get("/entries", h.handleListEntries)
			r.Post("/entries", h.handleCreateEntry)
			r.Patch("/entries/{entryID}", h.handleUpdateEntry)
			r.Delete("/entries/{entryID}", h.handleDeleteEntry)
		})
	})
}

type createRequest struct {
	WeekStartDate string `json:"weekStartDate" validate:"required"`
}

type commentRequest struct {
	Comment string `json:"comment" validate:"max=2000"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type entryRequest struct {
	ProjectID       string               `json:"projectId"`
	WorkDate        string               `json:"workDate"`
	StartTime       *timesheet.ClockTime `json:"startTime"`
	EndTime         *timesheet.ClockTime `json:"endTime"`
	DurationMinutes *int                 `json:"durationMinutes"`
	Notes           *string              `json:"notes" validate:"omitempty,max=2000"`
}

type entryPatchRequest struct {
	ProjectID       optional.Value[string]              `json:"projectId"`
	WorkDate        optional.Value[string]              `json:"workDate"`
	StartTime       optional.Value[timesheet.ClockTime] `json:"startTime"`
	EndTime         optional.Value[timesheet.ClockTime] `json:"endTime"`
	DurationMinutes optional.Value[int]                 `json:"durationMinutes"`
	Notes           optional.Value[string]              `json:"notes"`
	IsDeleted       optional.Value[bool]                `json:"isDeleted"`
}

func invalidDate(field string) error {
	return apperr.Validation("invalid_date", "dates must be YYYY-MM-DD").WithField(field, "must be a valid date in YYYY-MM-DD format")
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload createRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	weekStart, err := shared.ParseDate(strings.TrimSpace(payload.WeekStartDate))
	if err != nil {
		api.FailError(w, r, invalidDate("weekStartDate"), reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	ts, err := h.Service.Create(r.Context(), user.UserID, orgID, weekStart)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionTimesheetCreate, "timesheet", ts.ID, ts)
	api.Created(w, ts, reqID)
}

type listFunc func(ctx context.Context, actorID, orgID string, weeks timesheet.WeekRange) ([]timesheet.Summary, error)

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fn listFunc) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	weeks, err := shared.ParseWeekRange(r)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	items, err := fn(r.Context(), user.UserID, chi.URLParam(r, "orgID"), weeks)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	if items == nil {
		items = []timesheet.Summary{}
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleListOrg(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListOrg)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListMine)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListPendingApproval)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	ts, err := h.Service.Get(r.Context(), user.UserID, chi.URLParam(r, "orgID"), chi.URLParam(r, "timesheetID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, ts, reqID)
}

type transitionFunc func(ctx context.Context, actorID, orgID, id, text string) (timesheet.Summary, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, text func() (string, error), fn transitionFunc) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	value, err := text()
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	ts, err := fn(r.Context(), user.UserID, orgID, chi.URLParam(r, "timesheetID"), value)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, action, "timesheet", ts.ID, ts)
	api.Success(w, ts, reqID)
}

func commentFrom(r *http.Request) func() (string, error) {
	return func() (string, error) {
		var payload commentRequest
		if err := shared.DecodeAndValidate(r, &payload); err != nil {
			return "", err
		}
		return payload.Comment, nil
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, audit.ActionTimesheetSubmit, commentFrom(r), h.Service.Submit)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, audit.ActionTimesheetApprove, commentFrom(r), h.Service.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, audit.ActionTimesheetReject, func() (string, error) {
		var payload rejectRequest
		if err := shared.DecodeAndValidate(r, &payload); err != nil {
			return "", err
		}
		return payload.Reason, nil
	}, h.Service.Reject)
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	body, ts, err := h.Reports.TimesheetPDF(r.Context(), user.UserID, chi.URLParam(r, "orgID"), chi.URLParam(r, "timesheetID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	filename := fmt.Sprintf("timesheet-%s.pdf", ts.WeekStartDate.Format(time.DateOnly))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	entries, err := h.Service.ListEntries(r.Context(), user.UserID, chi.URLParam(r, "orgID"), chi.URLParam(r, "timesheetID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, entries, reqID)
}

func (h *Handler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload entryRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	workDate, err := shared.ParseDate(strings.TrimSpace(payload.WorkDate))
	if err != nil {
		api.FailError(w, r, invalidDate("workDate"), reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	entry, err := h.Service.CreateEntry(r.Context(), user.UserID, orgID, chi.URLParam(r, "timesheetID"), timesheet.EntryInput{
		ProjectID:       payload.ProjectID,
		WorkDate:        workDate,
		StartTime:       payload.StartTime,
		EndTime:         payload.EndTime,
		DurationMinutes: payload.DurationMinutes,
		Notes:           payload.Notes,
	})
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionEntryCreate, "timesheet_entry", entry.ID, entry)
	api.Created(w, entry, reqID)
}

func (h *Handler) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload entryPatchRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	patch := timesheet.EntryPatch{
		ProjectID:       payload.ProjectID,
		StartTime:       payload.StartTime,
		EndTime:         payload.EndTime,
		DurationMinutes: payload.DurationMinutes,
		Notes:           payload.Notes,
		IsDeleted:       payload.IsDeleted,
	}
	if payload.WorkDate.IsNull() {
		patch.WorkDate = optional.Null[time.Time]()
	} else if raw, ok := payload.WorkDate.Get(); ok {
		workDate, err := shared.ParseDate(strings.TrimSpace(raw))
		if err != nil || workDate.IsZero() {
			api.FailError(w, r, invalidDate("workDate"), reqID)
			return
		}
		patch.WorkDate = optional.Some(workDate)
	}

	orgID := chi.URLParam(r, "orgID")
	entry, err := h.Service.UpdateEntry(r.Context(), user.UserID, orgID, chi.URLParam(r, "timesheetID"), chi.URLParam(r, "entryID"), patch)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	action := audit.ActionEntryUpdate
	if entry.IsDeleted {
		action = audit.ActionEntryDelete
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, action, "timesheet_entry", entry.ID, entry)
	api.Success(w, entry, reqID)
}

func (h *Handler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	entryID := chi.URLParam(r, "entryID")
	if err := h.Service.DeleteEntry(r.Context(), user.UserID, orgID, chi.URLParam(r, "timesheetID"), entryID); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionEntryDelete, "timesheet_entry", entryID, nil)
	w.WriteHeader(http.StatusNoContent)
}
