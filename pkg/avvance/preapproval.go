package avvance

import (
	"context"
	"net/http"
)

// CreatePreApproval opens an anonymous pre-qualification lead for the given
// client-generated session id. Success requires HTTP 200/201 with both the
// onboarding URL and the remote-assigned request id present; their absence
// is a malformed-response defect distinct from a transport failure.
//
// Response bodies from this endpoint may carry personal data, so they are
// never logged verbatim — status codes only.
func (c *Client) CreatePreApproval(ctx context.Context, sessionID string) (*PreApprovalResult, error) {
	const op = "create_preapproval"

	token, err := c.tokens.Token(ctx, c.credKey)
	if err != nil {
		return nil, err
	}

	payload := preApprovalPayload{
		SessionID:    sessionID,
		MerchantHash: c.merchantHash,
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/preapproval/leads", token, true, payload)
	if err != nil {
		return nil, err
	}

	var body preApprovalResponse
	if err := decode(op, resp, &body, http.StatusOK, http.StatusCreated); err != nil {
		c.logger.Warn("pre-approval create failed", "status", resp.StatusCode)
		return nil, err
	}
	if body.OnboardingURL == "" {
		return nil, &MalformedResponseError{Op: op, Missing: "onboardingUrl"}
	}
	if body.RequestID == "" {
		return nil, &MalformedResponseError{Op: op, Missing: "requestId"}
	}

	c.logger.Info("pre-approval lead created", "request_id", body.RequestID)

	return &PreApprovalResult{
		OnboardingURL: body.OnboardingURL,
		RequestID:     body.RequestID,
	}, nil
}
