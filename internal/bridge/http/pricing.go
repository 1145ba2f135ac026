package http

import (
	"net/http"
	"strconv"

	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/pkg/httpx"
)

// PriceBreakdownHandler serves GET /v1/financing/price-breakdown. Stateless:
// product pages call it to render installment options before any session
// exists.
type PriceBreakdownHandler struct {
	Financing *service.FinancingService
}

func (h *PriceBreakdownHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amountCents"), 10, 64)
	if err != nil || amount <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "amountCents must be a positive integer")
		return
	}

	breakdown, err := h.Financing.PriceBreakdown(r.Context(), amount)
	if err != nil {
		writeRemoteError(w, r, "price breakdown", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, breakdown)
}
