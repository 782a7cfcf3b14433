package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authorize checks the bearer credential on a command request. It writes the
// 401 envelope itself and reports whether the handler may proceed. The token
// comparison is constant-time.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if auth == "" || !ok {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized",
			"Missing or malformed Authorization header")
		return false
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid bearer token")
		return false
	}

	return true
}
