package middleware

import (
	"net/http"

	"github.com/school-notify-api/internal/domain"
)

// RequireKind allows access only to identities whose token kind is one of
// allowed.
func RequireKind(allowed ...domain.IdentityKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, k := range allowed {
				if claims.Kind == k {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}
