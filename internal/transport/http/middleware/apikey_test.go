package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKey_OpenWhenUnconfigured(t *testing.T) {
	rr := httptest.NewRecorder()
	APIKey(nil)(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPIKey(t *testing.T) {
	mw := APIKey([]string{"k1", " k2 "})(http.HandlerFunc(okHandler))
	cases := map[string]int{"": http.StatusUnauthorized, "nope": http.StatusUnauthorized, "k1": http.StatusOK, "k2": http.StatusOK}
	for key, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, "key %q", key)
	}
}
