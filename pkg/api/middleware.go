package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// requireReadToken gates read endpoints behind the configured bearer
// token when anonymous reads are disabled.
func (s *server) requireReadToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"authentication required"})

			return
		}

		token := authHeader[7:]
		if subtle.ConstantTimeCompare(
			[]byte(token), []byte(s.cfg.Auth.ReadToken),
		) != 1 {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"invalid read token"})

			return
		}

		next.ServeHTTP(w, r)
	})
}
