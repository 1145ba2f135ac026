package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/pkg/avvance"
	"github.com/harborline/avvance-bridge/pkg/httpx"
	"github.com/harborline/avvance-bridge/pkg/polltoken"
	"github.com/harborline/avvance-bridge/pkg/slogx"
)

var validate = validator.New()

// CreateFinancingHandler serves POST /v1/financing.
type CreateFinancingHandler struct {
	Financing  *service.FinancingService
	PollTokens *polltoken.Signer
}

type addressPayload struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
}

type consumerPayload struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
}

type createFinancingPayload struct {
	OrderRef    string          `json:"orderRef" validate:"required"`
	AmountCents int64           `json:"amountCents" validate:"required,gt=0"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	ReturnURL   string          `json:"returnUrl" validate:"required,url"`
	Consumer    consumerPayload `json:"consumer" validate:"required"`
	Billing     addressPayload  `json:"billingAddress" validate:"required"`
	Shipping    addressPayload  `json:"shippingAddress" validate:"required"`
}

type createFinancingResponse struct {
	SessionRef    string `json:"sessionRef"`
	OnboardingURL string `json:"onboardingUrl"`
	PollToken     string `json:"pollToken"`
}

func (h *CreateFinancingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload createFinancingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	if err := validate.Struct(payload); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := h.Financing.CreateFinancing(r.Context(), avvance.CreateFinancingRequest{
		OrderRef:    payload.OrderRef,
		AmountCents: payload.AmountCents,
		Currency:    payload.Currency,
		ReturnURL:   payload.ReturnURL,
		Consumer: avvance.Consumer{
			FirstName: payload.Consumer.FirstName,
			LastName:  payload.Consumer.LastName,
			Email:     payload.Consumer.Email,
			Phone:     payload.Consumer.Phone,
		},
		Billing:  addressFromPayload(payload.Billing),
		Shipping: addressFromPayload(payload.Shipping),
	})
	if err != nil {
		writeRemoteError(w, r, "create financing", err)
		return
	}

	token, err := h.PollTokens.Sign(sess.ID.String())
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to sign poll token",
			slog.String("session_id", sess.ID.String()), slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "failed to issue poll token")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, createFinancingResponse{
		SessionRef:    sess.ID.String(),
		OnboardingURL: sess.OnboardingURL,
		PollToken:     token,
	})
}

func addressFromPayload(a addressPayload) avvance.Address {
	return avvance.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// writeRemoteError maps outbound client failures onto responses that never
// leak remote detail to the shopper.
func writeRemoteError(w http.ResponseWriter, r *http.Request, op string, err error) {
	l := slogx.FromContext(r.Context())

	var apiErr *avvance.APIError
	switch {
	case avvance.IsAuth(err) || avvance.IsTransport(err) || avvance.IsMalformed(err):
		l.Error(op+" failed upstream", slog.Any("error", err))
		httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable", "financing provider is unavailable, try again")
	case errors.As(err, &apiErr):
		l.Warn(op+" rejected upstream",
			slog.Int("status", apiErr.StatusCode), slog.String("code", apiErr.Code))
		httpx.WriteError(w, http.StatusUnprocessableEntity, "financing_rejected", "financing request was not accepted")
	default:
		l.Error(op+" failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "request could not be processed")
	}
}
