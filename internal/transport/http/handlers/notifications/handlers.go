package notificationshandler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"timetrack/internal/domain/notifications"
	"timetrack/internal/transport/http/api"
	"timetrack/internal/transport/http/middleware"
	"timetrack/internal/transport/http/shared"
)

type Handler struct {
	Service *notifications.Service
}

func NewHandler(service *notifications.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/unread-count", h.handleUnreadCount)
		r.Post("/read", h.handleMarkRead)
		r.Post("/read-all", h.handleMarkAllRead)
		r.Post("/remind", h.handleRemind)
	})
}

type markReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"
	take, _ := strconv.Atoi(r.URL.Query().Get("take"))
	page, err := h.Service.List(r.Context(), user.UserID, chi.URLParam(r, "orgID"), unreadOnly, take)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, page, reqID)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	count, err := h.Service.UnreadCount(r.Context(), user.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]int{"unreadCount": count}, reqID)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload markReadRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	updated, err := h.Service.MarkRead(r.Context(), user.UserID, chi.URLParam(r, "orgID"), payload.IDs)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]int64{"updated": updated}, reqID)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	updated, err := h.Service.MarkAllRead(r.Context(), user.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]int64{"updated": updated}, reqID)
}

// handleRemind answers 200 with a null notification when nothing is
// pending or a recent reminder is still unread.
func (h *Handler) handleRemind(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	n, err := h.Service.Remind(r.Context(), user.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]any{"created": n != nil, "notification": n}, reqID)
}
