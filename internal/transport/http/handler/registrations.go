package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/school-notify-api/internal/application/registration"
	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/transport/http/middleware"
)

// RegistrationHandler handles push tokens and parent-student links.
type RegistrationHandler struct {
	svc registration.Service
}

func NewRegistrationHandler(svc registration.Service) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

func (h *RegistrationHandler) SavePushToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.SavePushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if id := strings.TrimSpace(req.ID); id != "" && id != claims.IdentityID {
		writeError(w, http.StatusForbidden, "cannot save a push token for another user")
		return
	}
	if err := h.svc.SavePushToken(r.Context(), req); err != nil {
		// An address owned by someone else is a bad request on this endpoint.
		if errors.Is(err, domain.ErrConflict) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Push token saved successfully"})
}

func (h *RegistrationHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	children, err := h.svc.ListStudents(r.Context(), claims.IdentityID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StudentsEnvelope{Students: children})
}

func (h *RegistrationHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.AddStudentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	children, err := h.svc.AddStudent(r.Context(), claims.IdentityID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StudentsEnvelope{Message: "Student added successfully", Students: children})
}

func (h *RegistrationHandler) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	children, err := h.svc.RemoveStudent(r.Context(), claims.IdentityID, chi.URLParam(r, "studentId"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StudentsEnvelope{Message: "Student removed successfully", Students: children})
}
