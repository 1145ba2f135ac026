package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/cryptox"
	"github.com/harborline/avvance-bridge/pkg/httpx"
)

// fingerprintHeader carries the anonymous browser identity across requests.
// The server mints one on first contact and the client echoes it back.
const fingerprintHeader = "X-Fingerprint"

// PreApprovalHandler serves the anonymous pre-qualification surface.
type PreApprovalHandler struct {
	PreApproval *service.PreApprovalService
}

type createPreApprovalResponse struct {
	Fingerprint   string `json:"fingerprint"`
	RequestID     string `json:"requestId"`
	OnboardingURL string `json:"onboardingUrl"`
}

type latestLeadResponse struct {
	Status         string    `json:"status"`
	MaxAmountCents *int64    `json:"maxAmountCents,omitempty"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// HandleCreate serves POST /v1/preapproval.
func (h *PreApprovalHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.Header.Get(fingerprintHeader)
	if fingerprint == "" {
		fingerprint = cryptox.MustGenerateToken(16)
	}

	offer, err := h.PreApproval.Create(r.Context(), fingerprint)
	if err != nil {
		writeRemoteError(w, r, "create pre-approval", err)
		return
	}

	w.Header().Set(fingerprintHeader, fingerprint)
	httpx.WriteJSON(w, http.StatusCreated, createPreApprovalResponse{
		Fingerprint:   fingerprint,
		RequestID:     offer.Lead.RequestID,
		OnboardingURL: offer.OnboardingURL,
	})
}

// HandleLatest serves GET /v1/preapproval/latest.
func (h *PreApprovalHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.Header.Get(fingerprintHeader)
	if fingerprint == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_fingerprint", fingerprintHeader+" header is required")
		return
	}

	lead, err := h.PreApproval.Latest(r.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "no_offer", "no presentable offer for this fingerprint")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "request could not be processed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, latestLeadResponse{
		Status:         string(lead.Status),
		MaxAmountCents: lead.MaxAmountCents,
		ExpiresAt:      lead.ExpiresAt,
	})
}
