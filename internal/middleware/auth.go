package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/unclebandit/contractor-followups/internal/controller"
	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
)

// BearerSecret rejects requests whose Authorization header is not "Bearer <secret>".
// An empty secret rejects everything.
func BearerSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validBearer(r.Header.Get("Authorization"), secret) {
				controller.WriteError(w, appErrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validBearer(header, secret string) bool {
	if secret == "" || !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
