package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/school-notify-api/internal/domain"
)

// httpError maps service errors onto status codes. Unrecognised errors are
// logged and hidden behind a generic 500.
func httpError(w http.ResponseWriter, err error) {
	var invalid *domain.InvalidRecipientsError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, InvalidIDsEnvelope{Error: invalid.Error(), InvalidIDs: invalid.IDs})
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUpstream):
		slog.Error("upstream failure", "err", err)
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
