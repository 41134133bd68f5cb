package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/school-notify-api/internal/domain"
	jwtinfra "github.com/school-notify-api/internal/infrastructure/jwt"
	"github.com/school-notify-api/internal/transport/http/middleware"
)

func jsonRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func withClaims(r *http.Request, id string, kind domain.IdentityKind) *http.Request {
	return r.WithContext(middleware.ContextWithClaims(r.Context(), &jwtinfra.Claims{IdentityID: id, Kind: kind}))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(rr *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(rr.Body.Bytes(), v)
}
