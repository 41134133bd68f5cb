package handler

import (
	"net/http"

	"github.com/school-notify-api/internal/application/auth"
	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/transport/http/middleware"
)

// AuthHandler handles registration, login and credential rotation.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	identity, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, IdentityEnvelope{
		Message: "User registered successfully",
		UserID:  identity.ID,
		Kind:    identity.Kind,
	})
}

func (h *AuthHandler) RegisterParent(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterParentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	identity, err := h.svc.RegisterParent(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, IdentityEnvelope{
		Message: "Parent registered successfully",
		UserID:  identity.ID,
		Kind:    identity.Kind,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{
		Message: "Login successful",
		Token:   res.Token,
		UserID:  res.Identity.ID,
		Kind:    res.Identity.Kind,
	})
}

func (h *AuthHandler) ChangeCredential(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.ChangeCredentialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ChangeCredential(r.Context(), claims.IdentityID, req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password updated successfully"})
}
