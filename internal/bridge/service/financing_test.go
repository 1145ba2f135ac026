package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/avvance"
	"github.com/harborline/avvance-bridge/pkg/idx"
)

func newFinancing(st store.Store, client FinancingClient, orders Orders) *FinancingService {
	return &FinancingService{
		Store:      st,
		Client:     client,
		Reconciler: newReconciler(st, orders),
		Logger:     testLogger(),
	}
}

func TestCreateFinancing(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the session before returning the onboarding url", func(t *testing.T) {
		st := newTestStore(t)
		client := &fakeClient{createResult: &avvance.CreateFinancingResult{
			ApplicationID:    "app-1",
			PartnerSessionID: "psid-1",
			OnboardingURL:    "https://onboard.example/abc",
		}}
		svc := newFinancing(st, client, newFakeOrders())

		sess, err := svc.CreateFinancing(ctx, avvance.CreateFinancingRequest{
			OrderRef:    "order-1",
			AmountCents: 125_000,
			Currency:    "USD",
			ReturnURL:   "https://shop.example/return",
		})
		require.NoError(t, err)
		require.Equal(t, domain.StatusCreated, sess.Status)
		require.Equal(t, "https://onboard.example/abc", sess.OnboardingURL)

		got, err := st.Sessions().GetSessionByCorrelation(ctx, "app-1")
		require.NoError(t, err)
		require.Equal(t, sess.ID, got.ID)
		require.Equal(t, "order-1", got.OrderRef)

		events, err := st.Events().ListEventsBySession(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "session created", events[0].Note)
	})

	t.Run("remote failure leaves nothing behind", func(t *testing.T) {
		st := newTestStore(t)
		client := &fakeClient{createErr: &avvance.APIError{Op: "create_financing", StatusCode: 422, Message: "amount too low"}}
		svc := newFinancing(st, client, newFakeOrders())

		_, err := svc.CreateFinancing(ctx, avvance.CreateFinancingRequest{OrderRef: "order-1"})
		require.Error(t, err)

		_, err = st.Sessions().GetSessionByOrderRef(ctx, "order-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPollStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("feeds the remote status through reconciliation", func(t *testing.T) {
		st := newTestStore(t)
		orders := newFakeOrders()
		client := &fakeClient{statusResult: &avvance.NotificationStatusResult{
			LoanStatus: avvance.LoanStatus{
				Status:        domain.RemoteTransactionAuthorized,
				TransactionID: "txn-7",
			},
		}}
		svc := newFinancing(st, client, orders)

		sess := seedSession(t, st, "order-1", domain.StatusPendingCustomerAction)

		got, err := svc.PollStatus(ctx, sess.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusAuthorized, got.Status)
		require.Equal(t, "txn-7", got.TransactionID)
		require.Equal(t, 1, orders.markPaidCalls)
	})

	t.Run("terminal sessions never hit the remote", func(t *testing.T) {
		st := newTestStore(t)
		client := &fakeClient{}
		svc := newFinancing(st, client, newFakeOrders())

		sess := seedSession(t, st, "order-1", domain.StatusSettled)

		got, err := svc.PollStatus(ctx, sess.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusSettled, got.Status)
		require.Equal(t, 0, client.statusCalls)
	})

	t.Run("poll after webhook is a duplicate, order paid once", func(t *testing.T) {
		st := newTestStore(t)
		orders := newFakeOrders()
		client := &fakeClient{statusResult: &avvance.NotificationStatusResult{
			LoanStatus: avvance.LoanStatus{
				Status:        domain.RemoteTransactionAuthorized,
				TransactionID: "txn-7",
			},
		}}
		svc := newFinancing(st, client, orders)

		sess := seedSession(t, st, "order-1", domain.StatusPendingCustomerAction)

		ev := loanEvent(sess.ApplicationID, domain.RemoteTransactionAuthorized)
		ev.TransactionID = "txn-7"
		require.NoError(t, svc.Reconciler.ApplyLoanStatus(ctx, ev))

		got, err := svc.PollStatus(ctx, sess.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusAuthorized, got.Status)
		require.Equal(t, 1, orders.markPaidCalls)
	})

	t.Run("a failed poll returns the stored session with the error", func(t *testing.T) {
		st := newTestStore(t)
		client := &fakeClient{statusErr: &avvance.TransportError{Op: "notification_status"}}
		svc := newFinancing(st, client, newFakeOrders())

		sess := seedSession(t, st, "order-1", domain.StatusApplicationStarted)

		got, err := svc.PollStatus(ctx, sess.ID)
		require.Error(t, err)
		require.True(t, avvance.IsTransport(err))
		require.Equal(t, domain.StatusApplicationStarted, got.Status)
	})
}

func TestVoidAndRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("void requires a transaction", func(t *testing.T) {
		st := newTestStore(t)
		svc := newFinancing(st, &fakeClient{}, newFakeOrders())

		sess := seedSession(t, st, "order-1", domain.StatusApplicationStarted)

		_, err := svc.Void(ctx, sess.ID)
		require.ErrorIs(t, err, ErrNoTransaction)
	})

	t.Run("void records an operator action", func(t *testing.T) {
		st := newTestStore(t)
		client := &fakeClient{voidResult: &avvance.TransactionResult{Status: "VOIDED", TransactionID: "txn-1"}}
		svc := newFinancing(st, client, newFakeOrders())

		sess := seedSession(t, st, "order-1", domain.StatusAuthorized)
		_, err := st.Sessions().UpdateSessionStatusIf(ctx, sess.ID,
			domain.StatusAuthorized, domain.StatusAuthorized,
			store.SessionUpdate{TransactionID: "txn-1"})
		require.NoError(t, err)

		res, err := svc.Void(ctx, sess.ID)
		require.NoError(t, err)
		require.Equal(t, "VOIDED", res.Status)

		events, err := st.Events().ListEventsBySession(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "transaction voided", events[0].Note)
	})

	t.Run("refund records an operator action", func(t *testing.T) {
		st := newTestStore(t)
		client := &fakeClient{refundResult: &avvance.TransactionResult{Status: "REFUNDED", TransactionID: "txn-1"}}
		svc := newFinancing(st, client, newFakeOrders())

		sess := seedSession(t, st, "order-1", domain.StatusSettled)
		_, err := st.Sessions().UpdateSessionStatusIf(ctx, sess.ID,
			domain.StatusSettled, domain.StatusSettled,
			store.SessionUpdate{TransactionID: "txn-1"})
		require.NoError(t, err)

		res, err := svc.Refund(ctx, sess.ID, 50_000)
		require.NoError(t, err)
		require.Equal(t, "REFUNDED", res.Status)

		events, err := st.Events().ListEventsBySession(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "transaction refunded", events[0].Note)
	})
}

func TestPreApprovalService(t *testing.T) {
	ctx := context.Background()

	t.Run("create persists a pending lead and returns the url", func(t *testing.T) {
		st := newTestStore(t)
		client := &fakeClient{preApprovalResult: &avvance.PreApprovalResult{
			OnboardingURL: "https://onboard.example/lead",
			RequestID:     "req-1",
		}}
		svc := &PreApprovalService{Store: st, Client: client, Logger: testLogger()}

		offer, err := svc.Create(ctx, "fp-1")
		require.NoError(t, err)
		require.Equal(t, "https://onboard.example/lead", offer.OnboardingURL)
		require.Equal(t, domain.LeadPending, offer.Lead.Status)
		require.NotEmpty(t, offer.Lead.SessionID)

		got, err := st.Leads().GetLeadByRequestID(ctx, "req-1")
		require.NoError(t, err)
		require.Equal(t, "fp-1", got.Fingerprint)
	})

	t.Run("latest ignores expired offers", func(t *testing.T) {
		st := newTestStore(t)
		svc := &PreApprovalService{Store: st, Client: &fakeClient{}, Logger: testLogger()}

		now := time.Now().UTC()
		expired := domain.Lead{
			ID:          idx.New(),
			RequestID:   "req-old",
			Fingerprint: "fp-1",
			Status:      domain.LeadApproved,
			ExpiresAt:   now.Add(-time.Hour),
			CreatedAt:   now.Add(-31 * 24 * time.Hour),
			UpdatedAt:   now.Add(-31 * 24 * time.Hour),
		}
		require.NoError(t, st.Leads().CreateLead(ctx, expired))

		_, err := svc.Latest(ctx, "fp-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
