package avvance

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// CreateFinancing opens a new financing application. A fresh partner session
// id is generated for every attempt; it and the remote application id become
// the correlation keys for later webhooks and polls.
//
// Success is exactly HTTP 201 with a non-empty onboarding URL. On a timeout
// the remote side may still have created the application — callers must not
// blindly retry the create; rely on a later status check instead.
func (c *Client) CreateFinancing(ctx context.Context, req CreateFinancingRequest) (*CreateFinancingResult, error) {
	const op = "create_financing"

	token, err := c.tokens.Token(ctx, c.credKey)
	if err != nil {
		return nil, err
	}

	partnerSessionID := uuid.NewString()
	payload := createFinancingPayload{
		PartnerSessionID: partnerSessionID,
		OrderRef:         req.OrderRef,
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		Consumer:         req.Consumer,
		BillingAddress:   req.Billing,
		ShippingAddress:  req.Shipping,
		ReturnURL:        req.ReturnURL,
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/financing/applications", token, false, payload)
	if err != nil {
		return nil, err
	}

	var body createFinancingResponse
	if err := decode(op, resp, &body, http.StatusCreated); err != nil {
		return nil, err
	}
	if body.OnboardingURL == "" {
		return nil, &MalformedResponseError{Op: op, Missing: "onboardingUrl"}
	}

	c.logger.Info("financing application created",
		"application_id", body.ApplicationID,
		"partner_session_id", partnerSessionID,
	)

	return &CreateFinancingResult{
		ApplicationID:    body.ApplicationID,
		PartnerSessionID: partnerSessionID,
		OnboardingURL:    body.OnboardingURL,
	}, nil
}

// NotificationStatus polls the remote status for a correlation id. This
// endpoint is observed to reject cached tokens sporadically, so it always
// uses a freshly fetched token; this asymmetry with the other operations is
// deliberate. A 401 still invalidates the cache before returning so the next
// caller re-authenticates.
func (c *Client) NotificationStatus(ctx context.Context, correlationID string) (*NotificationStatusResult, error) {
	const op = "notification_status"

	token, err := c.tokens.FreshToken(ctx, c.credKey)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v1/financing/applications/%s/status", correlationID)
	resp, err := c.do(ctx, http.MethodGet, path, token, true, nil)
	if err != nil {
		return nil, err
	}

	var body NotificationStatusResult
	if err := decode(op, resp, &body, http.StatusOK); err != nil {
		if IsAuth(err) {
			c.tokens.Invalidate(c.credKey)
		}
		return nil, err
	}
	if body.LoanStatus.Status == "" {
		return nil, &MalformedResponseError{Op: op, Missing: "loanStatus.status"}
	}

	return &body, nil
}

// Void cancels the full transaction for a partner session. Success is HTTP
// 200 or 201.
func (c *Client) Void(ctx context.Context, sessionID string) (*TransactionResult, error) {
	const op = "void_transaction"

	token, err := c.tokens.Token(ctx, c.credKey)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v1/financing/transactions/%s/void", sessionID)
	resp, err := c.do(ctx, http.MethodPost, path, token, false, nil)
	if err != nil {
		return nil, err
	}

	var body TransactionResult
	if err := decode(op, resp, &body, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return &body, nil
}

// Refund returns part or all of a settled amount. Success is HTTP 200 or 201.
func (c *Client) Refund(ctx context.Context, sessionID string, amountCents int64) (*TransactionResult, error) {
	const op = "refund_transaction"

	token, err := c.tokens.Token(ctx, c.credKey)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v1/financing/transactions/%s/refund", sessionID)
	resp, err := c.do(ctx, http.MethodPost, path, token, false, refundPayload{AmountCents: amountCents})
	if err != nil {
		return nil, err
	}

	var body TransactionResult
	if err := decode(op, resp, &body, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return &body, nil
}

// GetPriceBreakdown is a stateless lookup of the installment options for an
// amount; no session correlation is involved.
func (c *Client) GetPriceBreakdown(ctx context.Context, amountCents int64) (*PriceBreakdown, error) {
	const op = "price_breakdown"

	token, err := c.tokens.Token(ctx, c.credKey)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/financing/price-breakdown", token, true,
		priceBreakdownPayload{AmountCents: amountCents})
	if err != nil {
		return nil, err
	}

	var body PriceBreakdown
	if err := decode(op, resp, &body, http.StatusOK); err != nil {
		return nil, err
	}
	return &body, nil
}
