package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// WithAdminToken requires "Authorization: Bearer <token>" on every /v1 route, the agent
// websocket included. An empty token leaves the API open.
func WithAdminToken(token string) Option {
	return func(s *Server) { s.token = []byte(token) }
}

func (s *Server) guard(next http.Handler) http.Handler {
	if len(s.token) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), s.token) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
