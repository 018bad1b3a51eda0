package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"inventory/internal/logs"
	"inventory/internal/models"
)

// SharedSecretAuth: Authorization: Bearer <secret>. Пустой secret — без проверки.
func SharedSecretAuth(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			const p = "Bearer "
			auth := r.Header.Get("Authorization")
			got := strings.TrimPrefix(auth, p)
			if !strings.HasPrefix(auth, p) || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logs.Logger.WithField("reqid", GetRequestID(r)).Warn("shared secret auth failed")
				models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid or missing bearer token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
