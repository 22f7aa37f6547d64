package audithandler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"timetrack/internal/domain/audit"
	"timetrack/internal/transport/http/api"
	"timetrack/internal/transport/http/middleware"
	"timetrack/internal/transport/http/shared"
)

const exportPageSize = 500

type Handler struct {
	Service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.handleListEvents)
		r.Get("/export", h.handleExportEvents)
	})
}

func filterFrom(r *http.Request) audit.Filter {
	q := r.URL.Query()
	return audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		ActorUser:  q.Get("actorUserId"),
	}
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	events, total, err := h.Service.List(r.Context(), user.UserID, chi.URLParam(r, "orgID"), filterFrom(r), page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, events, reqID)
}

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	filter := filterFrom(r)
	events, total, err := h.Service.List(r.Context(), user.UserID, orgID, filter, exportPageSize, 0)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "actor_user_id", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}); err != nil {
		log.Warn().Err(err).Msg("audit export header failed")
	}
	for offset := 0; ; {
		for _, evt := range events {
			if err := writer.Write([]string{evt.ID, deref(evt.ActorID), evt.Action, evt.EntityType, evt.EntityID, deref(evt.RequestID), deref(evt.IP), evt.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
				log.Warn().Err(err).Msg("audit export row failed")
			}
		}
		offset += len(events)
		if len(events) == 0 || offset >= total {
			break
		}
		events, _, err = h.Service.List(r.Context(), user.UserID, orgID, filter, exportPageSize, offset)
		if err != nil {
			log.Error().Err(err).Str("request_id", reqID).Msg("audit export page failed")
			break
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Warn().Err(err).Msg("audit export flush failed")
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
