package handler

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/school-notify-api/internal/application/dispatch"
	"github.com/school-notify-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IdentityEnvelope wraps register responses.
type IdentityEnvelope struct {
	Message string              `json:"message"`
	UserID  string              `json:"userId"`
	Kind    domain.IdentityKind `json:"kind"`
}

// LoginEnvelope wraps login responses.
type LoginEnvelope struct {
	Message string              `json:"message"`
	Token   string              `json:"token"`
	UserID  string              `json:"userId"`
	Kind    domain.IdentityKind `json:"kind"`
}

// StudentsEnvelope wraps the students linked to a parent.
type StudentsEnvelope struct {
	Message  string         `json:"message,omitempty"`
	Students []domain.Child `json:"students"`
}

// InvalidIDsEnvelope rejects an explicit dispatch and names the offending ids.
type InvalidIDsEnvelope struct {
	Error      string   `json:"error"`
	InvalidIDs []string `json:"invalidIds"`
}

// DispatchEnvelope reports the outcome of a dispatch batch. The totals are
// only set for broadcasts.
type DispatchEnvelope struct {
	Message              string                   `json:"message"`
	SentTo               int                      `json:"sentTo"`
	Delivered            int                      `json:"delivered"`
	Skipped              int                      `json:"skipped"`
	Failed               int                      `json:"failed"`
	Recorded             int                      `json:"recorded"`
	TotalSchoolUsers     *int                     `json:"totalSchoolUsers,omitempty"`
	TotalRegisteredUsers *int                     `json:"totalRegisteredUsers,omitempty"`
	Outcomes             []domain.DeliveryOutcome `json:"outcomes"`
}

func newDispatchEnvelope(msg string, r *dispatch.Report) DispatchEnvelope {
	outcomes := r.Outcomes
	if outcomes == nil {
		outcomes = []domain.DeliveryOutcome{}
	}
	return DispatchEnvelope{
		Message:   msg,
		SentTo:    r.Resolved,
		Delivered: r.Delivered,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		Recorded:  r.Recorded,
		Outcomes:  outcomes,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v, writing a 400 and returning false
// on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
