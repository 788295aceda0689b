package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lumenboard/lumenboard/domains/signup/be/service"
	platformlogging "github.com/lumenboard/lumenboard/platform/go/logging"
	"github.com/lumenboard/lumenboard/platform/go/problems"
)

// Handler exposes the email verification endpoints.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("signup service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the signup routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/signup/verification-code", h.SendVerificationCode)
	r.Post("/signup/verify", h.VerifyCode)
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

// SendVerificationCode implements POST /signup/verification-code.
func (h *Handler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	email, ok := normalizeEmail(w, req.Email)
	if !ok {
		return
	}

	if err := h.svc.SendCode(r.Context(), email); err != nil {
		platformlogging.FromRequest(r, h.logger).Error("send verification code failed", zap.Error(err))
		problems.Write(w, problems.New(problems.TypeInternal, "Internal error", http.StatusInternalServerError, "could not send verification code"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyCode implements POST /signup/verify.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	email, ok := normalizeEmail(w, req.Email)
	if !ok {
		return
	}

	token, err := h.svc.VerifyCode(r.Context(), email, strings.TrimSpace(req.Code))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			problems.Write(w, problems.New(problems.TypeValidation, "Invalid code", http.StatusBadRequest, "the verification code is wrong or has expired"))
			return
		}
		platformlogging.FromRequest(r, h.logger).Error("verify code failed", zap.Error(err))
		problems.Write(w, problems.New(problems.TypeInternal, "Internal error", http.StatusInternalServerError, "could not verify code"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problems.Write(w, problems.New(problems.TypeValidation, "Invalid request body", http.StatusBadRequest, err.Error()))
		return false
	}
	return true
}

func normalizeEmail(w http.ResponseWriter, raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if _, err := mail.ParseAddress(email); err != nil {
		problems.Write(w, problems.New(problems.TypeValidation, "Invalid email", http.StatusBadRequest, "a valid email address is required"))
		return "", false
	}
	return email, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
