package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenboard/lumenboard/domains/workspaces/be/service"
	platformlogging "github.com/lumenboard/lumenboard/platform/go/logging"
	"github.com/lumenboard/lumenboard/platform/go/problems"
)

// Handler exposes the slug availability and workspace provisioning endpoints.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("workspaces service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the fast routes; the provisioning route is mounted
// separately by the API wiring so it can carry a longer timeout budget.
func (h *Handler) Register(r chi.Router) {
	r.Get("/signup/slug-availability", h.CheckSlugAvailability)
}

// RegisterProvisioning mounts the long-running provisioning route.
func (h *Handler) RegisterProvisioning(r chi.Router) {
	r.Post("/signup/workspaces", h.CreateWorkspace)
}

// CheckSlugAvailability implements GET /signup/slug-availability.
func (h *Handler) CheckSlugAvailability(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if strings.TrimSpace(slug) == "" {
		problems.Write(w, problems.New(problems.TypeValidation, "Invalid request", http.StatusBadRequest, "slug query parameter is required"))
		return
	}

	avail, err := h.svc.CheckAvailability(r.Context(), slug)
	if err != nil {
		platformlogging.FromRequest(r, h.logger).Error("slug availability check failed", zap.Error(err))
		problems.Write(w, problems.New(problems.TypeInternal, "Internal error", http.StatusInternalServerError, "could not check slug availability"))
		return
	}

	body := map[string]any{"available": avail.Available}
	if avail.Reason != "" {
		body["reason"] = avail.Reason
	}
	writeJSON(w, http.StatusOK, body)
}

type createWorkspaceRequest struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	Slug              string `json:"slug"`
	VerificationToken string `json:"verificationToken"`
}

type createWorkspaceResponse struct {
	Success     bool      `json:"success"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	Slug        string    `json:"slug"`
	RedirectURL string    `json:"redirectUrl"`
}

// CreateWorkspace implements POST /signup/workspaces. The request blocks for
// the whole provisioning saga and only returns once the tenant is usable.
func (h *Handler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problems.Write(w, problems.New(problems.TypeValidation, "Invalid request body", http.StatusBadRequest, err.Error()))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		problems.Write(w, problems.New(problems.TypeValidation, "Invalid email", http.StatusBadRequest, "a valid email address is required"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		problems.Write(w, problems.New(problems.TypeValidation, "Invalid request", http.StatusBadRequest, "workspace name is required"))
		return
	}

	result, err := h.svc.Create(r.Context(), service.CreateInput{
		Email:             email,
		Name:              req.Name,
		Slug:              req.Slug,
		VerificationToken: req.VerificationToken,
	})
	if err != nil {
		h.writeCreateError(w, platformlogging.FromRequest(r, h.logger), err)
		return
	}

	writeJSON(w, http.StatusCreated, createWorkspaceResponse{
		Success:     true,
		WorkspaceID: result.WorkspaceID,
		Slug:        result.Slug,
		RedirectURL: result.RedirectURL,
	})
}

func (h *Handler) writeCreateError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		problems.Write(w, problems.New(problems.TypeValidation, "Invalid token", http.StatusBadRequest, "the provisioning token is invalid or expired; verify your email again"))
	case errors.Is(err, service.ErrSlugTaken):
		problems.Write(w, problems.New(problems.TypeConflict, "Slug unavailable", http.StatusConflict, "the requested workspace address is not available"))
	case errors.Is(err, service.ErrProvisioningTimeout):
		log.Error("workspace provisioning timed out", zap.Error(err))
		problems.Write(w, problems.New(problems.TypeUpstream, "Provisioning timeout", http.StatusGatewayTimeout, "the workspace database did not become ready in time"))
	case errors.Is(err, service.ErrProvisioningFailed):
		log.Error("workspace provisioning failed", zap.Error(err))
		problems.Write(w, problems.New(problems.TypeUpstream, "Provisioning failed", http.StatusBadGateway, "the database provider rejected the request"))
	default:
		log.Error("workspace creation failed", zap.Error(err))
		problems.Write(w, problems.New(problems.TypeInternal, "Internal error", http.StatusInternalServerError, "workspace creation failed"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
