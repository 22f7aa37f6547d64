package organizationshandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"timetrack/internal/domain/audit"
	"timetrack/internal/domain/membership"
	"timetrack/internal/domain/organization"
	"timetrack/internal/transport/http/api"
	"timetrack/internal/transport/http/middleware"
	"timetrack/internal/transport/http/shared"
)

type Handler struct {
	Service *organization.Service
	Audit   shared.AuditRecorder
}

func NewHandler(service *organization.Service, recorder shared.AuditRecorder) *Handler {
	return &Handler{Service: service, Audit: recorder}
}

// RegisterRoutes mounts the collection routes under /organizations.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
}

// RegisterOrgRoutes mounts routes scoped to /organizations/{orgID}.
func (h *Handler) RegisterOrgRoutes(r chi.Router) {
	r.Get("/", h.handleGet)
	r.Patch("/", h.handleUpdate)
	r.Route("/members", func(r chi.Router) {
		r.Get("/", h.handleListMembers)
		r.Post("/", h.handleAddMember)
		r.Post("/create-user", h.handleCreateUser)
		r.Patch("/{userID}", h.handleUpdateMember)
	})
}

type createRequest struct {
	Name string `json:"name"`
}

type updateRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"isActive"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role" validate:"required"`
}

type updateMemberRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Service.ListMine(r.Context(), user.UserID)
	if err != nil {
		api.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
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

	org, err := h.Service.Create(r.Context(), user.UserID, payload.Name)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, org.ID, user.UserID, audit.ActionOrgCreate, "organization", org.ID, org)
	api.Created(w, org, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	org, err := h.Service.Get(r.Context(), user.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, org, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload updateRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	org, err := h.Service.Update(r.Context(), user.UserID, orgID, organization.Update{Name: payload.Name, IsActive: payload.IsActive})
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionOrgUpdate, "organization", orgID, org)
	api.Success(w, org, reqID)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	members, err := h.Service.ListMembers(r.Context(), user.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, members, reqID)
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload addMemberRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	role, err := membership.ParseRole(payload.Role)
	if err != nil {
		api.FailError(w, r, organization.ErrInvalidRole, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	m, err := h.Service.AddMember(r.Context(), user.UserID, orgID, payload.Email, role)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionMemberAdd, "membership", m.ID, m)
	api.Created(w, m, reqID)
}

// handleCreateUser is the admin path for onboarding someone without a
// self-service registration.
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload createUserRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	role, err := membership.ParseRole(strings.TrimSpace(payload.Role))
	if err != nil {
		api.FailError(w, r, organization.ErrInvalidRole, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	m, err := h.Service.CreateUser(r.Context(), user.UserID, orgID, organization.NewUser{
		Email:       payload.Email,
		Password:    payload.Password,
		DisplayName: payload.DisplayName,
		Role:        role,
	})
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionMemberCreateUser, "membership", m.ID, m.Membership)
	api.Created(w, m, reqID)
}

func (h *Handler) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload updateMemberRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	update := membership.MemberUpdate{IsActive: payload.IsActive}
	if payload.Role != nil {
		role, err := membership.ParseRole(strings.TrimSpace(*payload.Role))
		if err != nil {
			api.FailError(w, r, organization.ErrInvalidRole, reqID)
			return
		}
		update.Role = &role
	}

	orgID := chi.URLParam(r, "orgID")
	m, err := h.Service.UpdateMember(r.Context(), user.UserID, orgID, chi.URLParam(r, "userID"), update)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionMemberUpdate, "membership", m.ID, m)
	api.Success(w, m, reqID)
}
