package handler

import (
	"net/http"

	"github.com/school-notify-api/internal/application/dispatch"
	"github.com/school-notify-api/internal/domain"
)

// DispatchHandler handles the notification send endpoints.
type DispatchHandler struct {
	svc dispatch.Service
}

func NewDispatchHandler(svc dispatch.Service) *DispatchHandler { return &DispatchHandler{svc: svc} }

func (h *DispatchHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.svc.SendToRecipients(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDispatchEnvelope("Notifications sent", report))
}

func (h *DispatchHandler) NotifyAll(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.svc.NotifyAllSchoolUsers(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	env := newDispatchEnvelope("Notifications sent to all school users", report.Report)
	env.TotalSchoolUsers = &report.TotalSchoolUsers
	env.TotalRegisteredUsers = &report.TotalRegisteredUsers
	writeJSON(w, http.StatusOK, env)
}

func (h *DispatchHandler) NotifyGuardians(w http.ResponseWriter, r *http.Request) {
	var req domain.GuardianRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.svc.NotifyGuardians(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDispatchEnvelope("Notifications sent to guardians", report))
}
