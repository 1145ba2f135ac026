package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/internal/bridge/store/drivers/sqlite"
	"github.com/harborline/avvance-bridge/pkg/avvance"
	"github.com/harborline/avvance-bridge/pkg/idx"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeOrders is an in-memory, idempotent order gateway that counts calls.
type fakeOrders struct {
	mu            sync.Mutex
	paid          map[string]string
	cancelled     map[string]string
	markPaidCalls int
	cancelCalls   int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		paid:      make(map[string]string),
		cancelled: make(map[string]string),
	}
}

func (f *fakeOrders) MarkPaid(_ context.Context, orderRef, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markPaidCalls++
	f.paid[orderRef] = transactionID
	return nil
}

func (f *fakeOrders) Cancel(_ context.Context, orderRef, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	f.cancelled[orderRef] = reason
	return nil
}

func (f *fakeOrders) IsPaid(_ context.Context, orderRef string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.paid[orderRef]
	return ok, nil
}

// fakeClient is a scripted remote API client.
type fakeClient struct {
	createResult *avvance.CreateFinancingResult
	createErr    error

	statusResult *avvance.NotificationStatusResult
	statusErr    error
	statusCalls  int

	voidResult   *avvance.TransactionResult
	refundResult *avvance.TransactionResult

	preApprovalResult *avvance.PreApprovalResult
	preApprovalErr    error
}

func (f *fakeClient) CreateFinancing(_ context.Context, _ avvance.CreateFinancingRequest) (*avvance.CreateFinancingResult, error) {
	return f.createResult, f.createErr
}

func (f *fakeClient) NotificationStatus(_ context.Context, _ string) (*avvance.NotificationStatusResult, error) {
	f.statusCalls++
	return f.statusResult, f.statusErr
}

func (f *fakeClient) Void(_ context.Context, _ string) (*avvance.TransactionResult, error) {
	return f.voidResult, nil
}

func (f *fakeClient) Refund(_ context.Context, _ string, _ int64) (*avvance.TransactionResult, error) {
	return f.refundResult, nil
}

func (f *fakeClient) GetPriceBreakdown(_ context.Context, amountCents int64) (*avvance.PriceBreakdown, error) {
	return &avvance.PriceBreakdown{AmountCents: amountCents}, nil
}

func (f *fakeClient) CreatePreApproval(_ context.Context, _ string) (*avvance.PreApprovalResult, error) {
	return f.preApprovalResult, f.preApprovalErr
}

// seedSession persists a session in the given status and returns it.
func seedSession(t *testing.T, st store.Store, orderRef string, status domain.Status) domain.Session {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	sess := domain.Session{
		ID:               idx.New(),
		ApplicationID:    "app-" + string(idx.New()),
		PartnerSessionID: "psid-" + string(idx.New()),
		OrderRef:         orderRef,
		Status:           status,
		OnboardingURL:    "https://onboard.example/start",
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(domain.SessionTTL),
	}
	require.NoError(t, st.Sessions().CreateSession(context.Background(), sess))
	return sess
}

// seedStaleSession persists a session whose creation lies age in the past.
func seedStaleSession(t *testing.T, st store.Store, orderRef string, status domain.Status, age time.Duration) domain.Session {
	t.Helper()

	created := time.Now().UTC().Add(-age).Truncate(time.Second)
	sess := domain.Session{
		ID:               idx.NewAt(created),
		ApplicationID:    "app-" + string(idx.New()),
		PartnerSessionID: "psid-" + string(idx.New()),
		OrderRef:         orderRef,
		Status:           status,
		CreatedAt:        created,
		UpdatedAt:        created,
		ExpiresAt:        created.Add(domain.SessionTTL),
	}
	require.NoError(t, st.Sessions().CreateSession(context.Background(), sess))
	return sess
}

func loanEvent(correlationID, remoteStatus string) domain.LoanStatusEvent {
	return domain.LoanStatusEvent{
		CorrelationID: correlationID,
		RemoteStatus:  remoteStatus,
		ReceivedAt:    time.Now().UTC(),
	}
}
