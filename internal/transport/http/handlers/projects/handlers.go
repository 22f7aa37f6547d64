package projectshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"timetrack/internal/domain/audit"
	"timetrack/internal/domain/project"
	"timetrack/internal/platform/optional"
	"timetrack/internal/transport/http/api"
	"timetrack/internal/transport/http/middleware"
	"timetrack/internal/transport/http/shared"
)

type Handler struct {
	Service *project.Service
	Audit   shared.AuditRecorder
}

func NewHandler(service *project.Service, recorder shared.AuditRecorder) *Handler {
	return &Handler{Service: service, Audit: recorder}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.handleListClients)
		r.Post("/", h.handleCreateClient)
		r.Get("/{clientID}", h.handleGetClient)
		r.Patch("/{clientID}", h.handleUpdateClient)
		r.Delete("/{clientID}", h.handleDeleteClient)
	})
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.handleListProjects)
		r.Post("/", h.handleCreateProject)
		r.Get("/{projectID}", h.handleGetProject)
		r.Patch("/{projectID}", h.handleUpdateProject)
		r.Route("/{projectID}/assignments", func(r chi.Router) {
			r.Get("/", h.handleListAssignments)
			r.Post("/", h.handleAssign)
			r.Delete("/{userID}", h.handleUnassign)
		})
	})
}

type createClientRequest struct {
	Name string `json:"name"`
}

type updateClientRequest struct {
	Name     optional.Value[string] `json:"name"`
	IsActive optional.Value[bool]   `json:"isActive"`
}

type assignRequest struct {
	UserID string `json:"userId"`
}

type createProjectRequest struct {
	Name     string  `json:"name"`
	Code     *string `json:"code" validate:"omitempty,max=50"`
	ClientID *string `json:"clientId"`
}

type updateProjectRequest struct {
	Name     optional.Value[string] `json:"name"`
	Code     optional.Value[string] `json:"code"`
	ClientID optional.Value[string] `json:"clientId"`
	IsActive optional.Value[bool]   `json:"isActive"`
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	clients, err := h.Service.ListClients(r.Context(), user.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, clients, reqID)
}

func (h *Handler) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload createClientRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	client, err := h.Service.CreateClient(r.Context(), user.UserID, orgID, payload.Name)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionClientCreate, "client", client.ID, client)
	api.Created(w, client, reqID)
}

func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	client, err := h.Service.GetClient(r.Context(), user.UserID, chi.URLParam(r, "orgID"), chi.URLParam(r, "clientID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, client, reqID)
}

func (h *Handler) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload updateClientRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	client, err := h.Service.UpdateClient(r.Context(), user.UserID, orgID, chi.URLParam(r, "clientID"), project.ClientPatch{
		Name:     payload.Name,
		IsActive: payload.IsActive,
	})
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionClientUpdate, "client", client.ID, client)
	api.Success(w, client, reqID)
}

func (h *Handler) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	orgID := chi.URLParam(r, "orgID")
	clientID := chi.URLParam(r, "clientID")
	if err := h.Service.DeleteClient(r.Context(), user.UserID, orgID, clientID); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionClientDelete, "client", clientID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	activeOnly := r.URL.Query().Get("activeOnly") == "true"
	projects, err := h.Service.ListProjects(r.Context(), user.UserID, chi.URLParam(r, "orgID"), activeOnly)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, projects, reqID)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	p, err := h.Service.GetProject(r.Context(), user.UserID, chi.URLParam(r, "orgID"), chi.URLParam(r, "projectID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, p, reqID)
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload createProjectRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	p, err := h.Service.CreateProject(r.Context(), user.UserID, orgID, project.Input{
		Name:     payload.Name,
		Code:     payload.Code,
		ClientID: payload.ClientID,
	})
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionProjectCreate, "project", p.ID, p)
	api.Created(w, p, reqID)
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload updateProjectRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	p, err := h.Service.UpdateProject(r.Context(), user.UserID, orgID, chi.URLParam(r, "projectID"), project.Patch{
		Name:     payload.Name,
		Code:     payload.Code,
		ClientID: payload.ClientID,
		IsActive: payload.IsActive,
	})
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionProjectUpdate, "project", p.ID, p)
	api.Success(w, p, reqID)
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	items, err := h.Service.ListAssignments(r.Context(), user.UserID, chi.URLParam(r, "orgID"), chi.URLParam(r, "projectID"))
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	var payload assignRequest
	if err := shared.DecodeAndValidate(r, &payload); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}

	orgID := chi.URLParam(r, "orgID")
	a, err := h.Service.AssignUser(r.Context(), user.UserID, orgID, chi.URLParam(r, "projectID"), payload.UserID)
	if err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionProjectAssign, "project_assignment", a.ID, a)
	api.Created(w, a, reqID)
}

func (h *Handler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	orgID := chi.URLParam(r, "orgID")
	projectID := chi.URLParam(r, "projectID")
	if err := h.Service.UnassignUser(r.Context(), user.UserID, orgID, projectID, chi.URLParam(r, "userID")); err != nil {
		api.FailError(w, r, err, reqID)
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, orgID, user.UserID, audit.ActionProjectUnassign, "project", projectID, map[string]string{"userId": chi.URLParam(r, "userID")})
	w.WriteHeader(http.StatusNoContent)
}
