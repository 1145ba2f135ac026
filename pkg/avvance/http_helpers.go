package avvance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// do performs one business call. Every request carries a freshly generated
// correlation id and the constant partner id; withRouting additionally sets
// the environment routing key header required by the pre-approval, price
// breakdown and notification-status endpoints.
func (c *Client) do(
	ctx context.Context,
	method, path, token string,
	withRouting bool,
	payload any,
) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("avvance: encode payload: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("avvance: build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(headerCorrelationID, uuid.NewString())
	req.Header.Set(headerPartnerID, c.partnerID)
	if withRouting {
		req.Header.Set(headerRoutingKey, c.routingKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	return resp, nil
}

// decode consumes resp. If the status code matches one of expected, the body
// is unmarshalled into target (which may be nil). Otherwise the body is
// parsed into a remote business error.
func decode(op string, resp *http.Response, target any, expected ...int) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	ok := false
	for _, code := range expected {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		return remoteError(op, resp.StatusCode, raw)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &MalformedResponseError{Op: op, Missing: "parseable JSON body"}
	}
	if keeper, ok := target.(interface{ setRaw([]byte) }); ok {
		keeper.setRaw(raw)
	}

	return nil
}

// remoteError maps a non-2xx response onto the error taxonomy. 401 is always
// an AuthError so callers know to invalidate and re-authenticate.
func remoteError(op string, status int, raw []byte) error {
	if status == http.StatusUnauthorized {
		return &AuthError{Op: op, StatusCode: status, Detail: "bearer token rejected"}
	}

	var body remoteErrorBody
	_ = json.Unmarshal(raw, &body)

	code := body.Code
	msg := body.Message
	if code == "" {
		code = body.Error.Code
	}
	if msg == "" {
		msg = body.Error.Message
	}

	return &APIError{Op: op, StatusCode: status, Code: code, Message: msg}
}

func (r *NotificationStatusResult) setRaw(raw []byte) { r.Raw = raw }
