package authhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"timetrack/internal/domain/auth"
	"timetrack/internal/transport/http/api"
	"timetrack/internal/transport/http/middleware"
	"timetrack/internal/transport/http/shared"
)

type Handler struct {
	Service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
		r.With(middleware.RequireUser).Post("/logout", h.HandleLogout)
	})
}

type registerRequest struct {
	Email       string `json:"email" validate:"max=320"`
	Password    string `json:"password" validate:"max=128"`
	DisplayName string `json:"displayName" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload registerRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	user, err := h.Service.Register(r.Context(), payload.Email, payload.Password, payload.DisplayName)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, user, reqID)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	session, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, session, reqID)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	if err := h.Service.Logout(r.Context(), user); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, map[string]string{"status": "logged_out"}, reqID)
}
