package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUpstream     = errors.New("upstream unavailable")
)

// InvalidRecipientsError rejects an explicit-list dispatch in which some ids
// have no registered delivery address. It unwraps to ErrBadRequest.
type InvalidRecipientsError struct {
	IDs []string
}

func (e *InvalidRecipientsError) Error() string {
	return fmt.Sprintf("%d recipient(s) do not have registered push tokens", len(e.IDs))
}

func (e *InvalidRecipientsError) Unwrap() error { return ErrBadRequest }
