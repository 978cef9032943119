package httptransport

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// requireAuth validates a bearer JWT signed with the shared HMAC key. Claims
// beyond validity are not inspected; the surface has a single access level.
func requireAuth(key []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token")
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
				}
				return key, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token", "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
