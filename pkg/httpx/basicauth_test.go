package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicAuth(t *testing.T) {
	newProtected := func(user, pass string) (http.Handler, *bool) {
		reached := false
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			w.WriteHeader(http.StatusOK)
		})
		return BasicAuth("test", user, pass)(h), &reached
	}

	t.Run("accepts the configured credential pair", func(t *testing.T) {
		h, reached := newProtected("ops", "secret")

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.SetBasicAuth("ops", "secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, *reached)
	})

	t.Run("rejects wrong credentials and missing header alike", func(t *testing.T) {
		h, reached := newProtected("ops", "secret")

		for name, setup := range map[string]func(*http.Request){
			"wrong user":     func(r *http.Request) { r.SetBasicAuth("nope", "secret") },
			"wrong password": func(r *http.Request) { r.SetBasicAuth("ops", "nope") },
			"no header":      func(r *http.Request) {},
		} {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code, name)
			require.False(t, *reached, name)
		}
	})

	t.Run("unconfigured credentials reject everything", func(t *testing.T) {
		// Empty configured values must never match empty client values.
		h, reached := newProtected("", "")

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.SetBasicAuth("", "")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.False(t, *reached)

		req = httptest.NewRequest(http.MethodPost, "/", nil)
		req.SetBasicAuth("ops", "secret")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.False(t, *reached)
	})
}
