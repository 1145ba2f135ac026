package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/httpx"
	"github.com/harborline/avvance-bridge/pkg/idx"
)

// AdminHandler serves the operator-only void and refund endpoints.
type AdminHandler struct {
	Financing *service.FinancingService
}

type refundPayload struct {
	AmountCents int64 `json:"amountCents"`
}

type transactionResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
}

// HandleVoid serves POST /v1/financing/{ref}/void.
func (h *AdminHandler) HandleVoid(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionRef(w, r)
	if !ok {
		return
	}

	res, err := h.Financing.Void(r.Context(), id)
	if err != nil {
		h.writeOpError(w, r, "void", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, transactionResponse{
		Status:        res.Status,
		TransactionID: res.TransactionID,
	})
}

// HandleRefund serves POST /v1/financing/{ref}/refund.
func (h *AdminHandler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionRef(w, r)
	if !ok {
		return
	}

	var payload refundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.AmountCents <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "amountCents must be a positive integer")
		return
	}

	res, err := h.Financing.Refund(r.Context(), id, payload.AmountCents)
	if err != nil {
		h.writeOpError(w, r, "refund", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, transactionResponse{
		Status:        res.Status,
		TransactionID: res.TransactionID,
	})
}

func (h *AdminHandler) sessionRef(w http.ResponseWriter, r *http.Request) (idx.ID, bool) {
	id, err := idx.Parse(r.PathValue("ref"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "unknown_session", "no such financing session")
		return idx.Zero, false
	}
	return id, true
}

func (h *AdminHandler) writeOpError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "unknown_session", "no such financing session")
	case errors.Is(err, service.ErrNoTransaction):
		httpx.WriteError(w, http.StatusConflict, "no_transaction", "session has no transaction to "+op)
	default:
		writeRemoteError(w, r, op, err)
	}
}
