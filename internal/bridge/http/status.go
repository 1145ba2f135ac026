package http

import (
	"errors"
	"net/http"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/metrics"
	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/httpx"
	"github.com/harborline/avvance-bridge/pkg/idx"
	"github.com/harborline/avvance-bridge/pkg/polltoken"
)

// FinancingStatusHandler serves GET /v1/financing/status. The landing page
// the shopper returns to holds a signed poll token; this endpoint is the
// manual fallback when the webhook hasn't arrived yet.
type FinancingStatusHandler struct {
	Financing  *service.FinancingService
	PollTokens *polltoken.Signer
}

type financingStatusResponse struct {
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	// Retry tells the landing page to poll again shortly.
	Retry bool `json:"retry,omitempty"`
}

func (h *FinancingStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_token", "token query parameter is required")
		return
	}

	sessionRef, err := h.PollTokens.Verify(token)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "poll token is invalid or expired")
		return
	}

	id, err := idx.Parse(sessionRef)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "poll token is invalid or expired")
		return
	}

	httpx.NoCache(w)

	sess, err := h.Financing.PollStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.StatusPolls.WithLabelValues("not_found").Inc()
			httpx.WriteError(w, http.StatusNotFound, "unknown_session", "no such financing session")
			return
		}
		// The remote poll failed; the stored state is still authoritative,
		// and the shopper only needs to know to try again.
		metrics.StatusPolls.WithLabelValues("remote_error").Inc()
		httpx.WriteJSON(w, http.StatusOK, financingStatusResponse{State: stateFor(sess.Status), Retry: true})
		return
	}

	metrics.StatusPolls.WithLabelValues("ok").Inc()

	resp := financingStatusResponse{State: stateFor(sess.Status)}
	if sess.Status.IsSuccess() {
		resp.RedirectURL = sess.ReturnURL
	}
	if resp.State == "pending" {
		resp.Retry = true
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// stateFor collapses the internal lifecycle onto the three outcomes the
// landing page distinguishes.
func stateFor(s domain.Status) string {
	switch {
	case s.IsSuccess():
		return "approved"
	case s.IsFailure():
		return "declined"
	default:
		return "pending"
	}
}
