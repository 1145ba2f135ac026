package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Orders is the storefront side of the bridge. Payment success or failure of
// a financing session lands here; implementations must be idempotent because
// the reconciler may repeat a call after a lost race.
type Orders interface {
	// MarkPaid records the financing transaction as the order's payment.
	// Calling it again for the same order and transaction is a no-op.
	MarkPaid(ctx context.Context, orderRef, transactionID string) error

	// Cancel releases the order after a failed financing attempt. Cancelling
	// an already-cancelled order is a no-op.
	Cancel(ctx context.Context, orderRef, reason string) error

	// IsPaid reports whether the order already has a recorded payment.
	IsPaid(ctx context.Context, orderRef string) (bool, error)
}

const ordersTimeout = 15 * time.Second

// HTTPOrders calls back into the storefront's internal order API.
type HTTPOrders struct {
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewHTTPOrders(baseURL string, logger *slog.Logger) *HTTPOrders {
	return &HTTPOrders{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: ordersTimeout},
		Logger:  logger,
	}
}

func (o *HTTPOrders) MarkPaid(ctx context.Context, orderRef, transactionID string) error {
	body := map[string]string{
		"method":        "installment_financing",
		"transactionId": transactionID,
	}
	return o.post(ctx, "/orders/"+orderRef+"/payment", body)
}

func (o *HTTPOrders) Cancel(ctx context.Context, orderRef, reason string) error {
	return o.post(ctx, "/orders/"+orderRef+"/cancel", map[string]string{"reason": reason})
}

func (o *HTTPOrders) IsPaid(ctx context.Context, orderRef string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/orders/"+orderRef+"/payment", nil)
	if err != nil {
		return false, err
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("orders: query payment: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			Paid bool `json:"paid"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
			return false, fmt.Errorf("orders: decode payment state: %w", err)
		}
		return out.Paid, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("orders: query payment: unexpected status %d", resp.StatusCode)
	}
}

func (o *HTTPOrders) post(ctx context.Context, path string, payload any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return fmt.Errorf("orders: %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	// 409 means the order is already in the requested state, which is the
	// idempotent outcome we want.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("orders: %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
