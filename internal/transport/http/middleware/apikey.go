package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

const apiKeyHeader = "X-API-Key"

// APIKey guards machine-to-machine endpoints with a static key sent in the
// X-API-Key header. With no keys configured the endpoints stay open; config
// refuses that outside development.
func APIKey(keys []string) func(http.Handler) http.Handler {
	var accepted [][]byte
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			accepted = append(accepted, []byte(k))
		}
	}
	if len(accepted) == 0 {
		slog.Warn("no dispatch API keys configured, send endpoints are unauthenticated")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(accepted) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			got := []byte(r.Header.Get(apiKeyHeader))
			for _, k := range accepted {
				if subtle.ConstantTimeCompare(got, k) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusUnauthorized, "invalid API key")
		})
	}
}
