package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/school-notify-api/internal/domain"
	jwtinfra "github.com/school-notify-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
)

func requestWithKind(kind domain.IdentityKind) *http.Request {
	ctx := ContextWithClaims(context.Background(), &jwtinfra.Claims{IdentityID: "x", Kind: kind})
	return httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
}

func TestRequireKind_NoClaimsInContext(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireKind(domain.KindParent)(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireKind_WrongKind(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireKind(domain.KindParent)(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestWithKind(domain.KindStudent))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireKind_CorrectKind(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireKind(domain.KindParent)(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestWithKind(domain.KindParent))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireKind_MultipleAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireKind(domain.KindParent, domain.KindStudent)(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestWithKind(domain.KindStudent))
	assert.Equal(t, http.StatusOK, rr.Code)
}
