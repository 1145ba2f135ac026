package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/avvance"
	"github.com/harborline/avvance-bridge/pkg/polltoken"
)

// fakeRemote is a scripted service.FinancingClient.
type fakeRemote struct {
	statusResult *avvance.NotificationStatusResult
	statusErr    error
	createResult *avvance.CreateFinancingResult
	createErr    error
}

func (f *fakeRemote) CreateFinancing(_ context.Context, _ avvance.CreateFinancingRequest) (*avvance.CreateFinancingResult, error) {
	return f.createResult, f.createErr
}

func (f *fakeRemote) NotificationStatus(_ context.Context, _ string) (*avvance.NotificationStatusResult, error) {
	return f.statusResult, f.statusErr
}

func (f *fakeRemote) Void(_ context.Context, _ string) (*avvance.TransactionResult, error) {
	return &avvance.TransactionResult{Status: "VOIDED"}, nil
}

func (f *fakeRemote) Refund(_ context.Context, _ string, _ int64) (*avvance.TransactionResult, error) {
	return &avvance.TransactionResult{Status: "REFUNDED"}, nil
}

func (f *fakeRemote) GetPriceBreakdown(_ context.Context, amountCents int64) (*avvance.PriceBreakdown, error) {
	return &avvance.PriceBreakdown{AmountCents: amountCents}, nil
}

func newStatusHandler(st store.Store, remote service.FinancingClient, signer *polltoken.Signer) *FinancingStatusHandler {
	financing := &service.FinancingService{
		Store:      st,
		Client:     remote,
		Reconciler: &service.ReconcilerService{Store: st, Orders: newFakeOrders(), Logger: testLogger()},
		Logger:     testLogger(),
	}
	return &FinancingStatusHandler{Financing: financing, PollTokens: signer}
}

func pollToken(t *testing.T, signer *polltoken.Signer, ref string) string {
	t.Helper()
	token, err := signer.Sign(ref)
	require.NoError(t, err)
	return token
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) financingStatusResponse {
	t.Helper()
	var out financingStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestFinancingStatusHandler(t *testing.T) {
	signer := &polltoken.Signer{Secret: []byte("test-secret"), TTL: time.Hour}

	t.Run("authorized session returns the redirect target", func(t *testing.T) {
		st := newTestStore(t)
		remote := &fakeRemote{statusResult: &avvance.NotificationStatusResult{
			LoanStatus: avvance.LoanStatus{Status: domain.RemoteTransactionAuthorized, TransactionID: "txn-1"},
		}}
		h := newStatusHandler(st, remote, signer)

		sess := seedSession(t, st, "order-1", domain.StatusPendingCustomerAction)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/financing/status?token="+pollToken(t, signer, sess.ID.String()), nil)
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		out := decodeStatus(t, rec)
		require.Equal(t, "approved", out.State)
		require.Equal(t, "https://shop.example/return", out.RedirectURL)
		require.False(t, out.Retry)
	})

	t.Run("denied session reads as declined", func(t *testing.T) {
		st := newTestStore(t)
		remote := &fakeRemote{statusResult: &avvance.NotificationStatusResult{
			LoanStatus: avvance.LoanStatus{Status: domain.RemoteApplicationDenied},
		}}
		h := newStatusHandler(st, remote, signer)

		sess := seedSession(t, st, "order-1", domain.StatusApplicationStarted)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/financing/status?token="+pollToken(t, signer, sess.ID.String()), nil)
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		out := decodeStatus(t, rec)
		require.Equal(t, "declined", out.State)
		require.Empty(t, out.RedirectURL)
	})

	t.Run("remote failure surfaces as a retryable pending, never the raw error", func(t *testing.T) {
		st := newTestStore(t)
		remote := &fakeRemote{statusErr: &avvance.APIError{Op: "notification_status", StatusCode: 500, Message: "internal stack trace"}}
		h := newStatusHandler(st, remote, signer)

		sess := seedSession(t, st, "order-1", domain.StatusApplicationStarted)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/financing/status?token="+pollToken(t, signer, sess.ID.String()), nil)
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		out := decodeStatus(t, rec)
		require.Equal(t, "pending", out.State)
		require.True(t, out.Retry)
		require.NotContains(t, rec.Body.String(), "stack trace")
	})

	t.Run("bad tokens are unauthorized", func(t *testing.T) {
		st := newTestStore(t)
		h := newStatusHandler(st, &fakeRemote{}, signer)

		for _, token := range []string{
			"",
			"garbage",
			pollToken(t, &polltoken.Signer{Secret: []byte("other-secret"), TTL: time.Hour}, "ref"),
		} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/v1/financing/status?token="+token, nil)
			h.ServeHTTP(rec, req)

			if token == "" {
				require.Equal(t, http.StatusBadRequest, rec.Code)
			} else {
				require.Equal(t, http.StatusUnauthorized, rec.Code)
			}
		}
	})
}

func TestCreateFinancingHandler(t *testing.T) {
	signer := &polltoken.Signer{Secret: []byte("test-secret"), TTL: time.Hour}

	validBody := `{
		"orderRef": "order-1",
		"amountCents": 125000,
		"currency": "USD",
		"returnUrl": "https://shop.example/return",
		"consumer": {"firstName":"Jane","lastName":"Doe","email":"jane@example.com","phone":"5558675309"},
		"billingAddress": {"line1":"1 Main St","city":"Springfield","region":"IL","postalCode":"62701","country":"US"},
		"shippingAddress": {"line1":"1 Main St","city":"Springfield","region":"IL","postalCode":"62701","country":"US"}
	}`

	newHandler := func(st store.Store, remote service.FinancingClient) *CreateFinancingHandler {
		financing := &service.FinancingService{
			Store:      st,
			Client:     remote,
			Reconciler: &service.ReconcilerService{Store: st, Orders: newFakeOrders(), Logger: testLogger()},
			Logger:     testLogger(),
		}
		return &CreateFinancingHandler{Financing: financing, PollTokens: signer}
	}

	t.Run("creates a session and returns a poll token", func(t *testing.T) {
		st := newTestStore(t)
		remote := &fakeRemote{createResult: &avvance.CreateFinancingResult{
			ApplicationID:    "app-1",
			PartnerSessionID: "psid-1",
			OnboardingURL:    "https://onboard.example/abc",
		}}
		h := newHandler(st, remote)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/financing", strings.NewReader(validBody))
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var out createFinancingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Equal(t, "https://onboard.example/abc", out.OnboardingURL)
		require.NotEmpty(t, out.SessionRef)

		ref, err := signer.Verify(out.PollToken)
		require.NoError(t, err)
		require.Equal(t, out.SessionRef, ref)
	})

	t.Run("validation failures are a bad request", func(t *testing.T) {
		st := newTestStore(t)
		h := newHandler(st, &fakeRemote{})

		for _, body := range []string{
			`not json`,
			`{}`,
			`{"orderRef":"order-1","amountCents":-5,"currency":"USD","returnUrl":"https://shop.example/r"}`,
			`{"orderRef":"order-1","amountCents":100,"currency":"USDX","returnUrl":"https://shop.example/r"}`,
		} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/financing", strings.NewReader(body))
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
		}
	})

	t.Run("upstream outage maps to a bad gateway", func(t *testing.T) {
		st := newTestStore(t)
		h := newHandler(st, &fakeRemote{createErr: &avvance.TransportError{Op: "create_financing"}})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/financing", strings.NewReader(validBody))
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("upstream rejection maps to unprocessable", func(t *testing.T) {
		st := newTestStore(t)
		h := newHandler(st, &fakeRemote{createErr: &avvance.APIError{Op: "create_financing", StatusCode: 422, Code: "AMOUNT_TOO_LOW"}})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/financing", strings.NewReader(validBody))
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotContains(t, rec.Body.String(), "AMOUNT_TOO_LOW")
	})
}
