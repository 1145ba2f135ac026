package httpx

import (
	"net/http"

	"github.com/harborline/avvance-bridge/pkg/cryptox"
	"github.com/harborline/avvance-bridge/pkg/slogx"
)

// BasicAuth returns a middleware enforcing HTTP Basic authentication against
// a single credential pair. Both the username and the password are compared
// in constant time, and every failure mode (missing header, wrong username,
// wrong password) produces the identical response so the caller learns
// nothing about which part was wrong. An empty configured username or
// password rejects every request rather than matching empty client
// credentials.
func BasicAuth(realm, username, password string) Middleware {
	configured := username != "" && password != ""
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !configured {
				slogx.FromContext(r.Context()).Warn("basic auth credentials not configured")
				writeBasicAuthError(w, realm)
				return
			}

			user, pass, ok := r.BasicAuth()

			// Evaluate both comparisons unconditionally to keep timing flat.
			userOK := cryptox.SecureCompare(user, username)
			passOK := cryptox.SecureCompare(pass, password)

			if !ok || !userOK || !passOK {
				slogx.FromContext(r.Context()).Warn("basic auth rejected")
				writeBasicAuthError(w, realm)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeBasicAuthError(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
	WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
}
