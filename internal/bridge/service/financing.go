package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/metrics"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/avvance"
	"github.com/harborline/avvance-bridge/pkg/idx"
	"github.com/harborline/avvance-bridge/pkg/slogx"
)

var ErrNoTransaction = errors.New("no_transaction")

// FinancingClient is the outbound remote surface the financing service
// depends on; *avvance.Client satisfies it.
type FinancingClient interface {
	CreateFinancing(ctx context.Context, req avvance.CreateFinancingRequest) (*avvance.CreateFinancingResult, error)
	NotificationStatus(ctx context.Context, correlationID string) (*avvance.NotificationStatusResult, error)
	Void(ctx context.Context, transactionID string) (*avvance.TransactionResult, error)
	Refund(ctx context.Context, transactionID string, amountCents int64) (*avvance.TransactionResult, error)
	GetPriceBreakdown(ctx context.Context, amountCents int64) (*avvance.PriceBreakdown, error)
}

// FinancingService owns the financing-session lifecycle: creation at
// checkout, the manual status poll fallback, and the operator-facing void
// and refund paths.
type FinancingService struct {
	Store      store.Store
	Client     FinancingClient
	Reconciler *ReconcilerService
	Logger     *slog.Logger
}

// CreateFinancing starts a financing attempt for an order and persists the
// session before the onboarding URL is handed to the shopper, so a webhook
// can never arrive for a session we don't know.
func (s *FinancingService) CreateFinancing(ctx context.Context, req avvance.CreateFinancingRequest) (domain.Session, error) {
	l := slogx.FromContext(ctx)

	res, err := s.Client.CreateFinancing(ctx, req)
	if err != nil {
		return domain.Session{}, err
	}

	now := time.Now().UTC()
	sess := domain.Session{
		ID:               idx.New(),
		ApplicationID:    res.ApplicationID,
		PartnerSessionID: res.PartnerSessionID,
		OrderRef:         req.OrderRef,
		Status:           domain.StatusCreated,
		OnboardingURL:    res.OnboardingURL,
		ReturnURL:        req.ReturnURL,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(domain.SessionTTL),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
			return err
		}
		return tx.Events().AppendEvent(ctx, domain.StatusEvent{
			ID:         idx.New(),
			SessionID:  sess.ID,
			Status:     domain.StatusCreated,
			Note:       "session created",
			ReceivedAt: now,
		})
	})
	if err != nil {
		return domain.Session{}, err
	}

	metrics.SessionsCreated.Inc()
	l.Info("financing session created",
		slog.String("session_id", sess.ID.String()),
		slog.String("order_ref", sess.OrderRef),
		slog.String("application_id", sess.ApplicationID))
	return sess, nil
}

// PollStatus fetches the remote status for a session and feeds it through
// the same reconciliation path a webhook delivery takes. Terminal sessions
// skip the remote call entirely.
func (s *FinancingService) PollStatus(ctx context.Context, id idx.ID) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSessionByID(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.Status.IsTerminal() {
		return sess, nil
	}

	correlation := sess.ApplicationID
	if correlation == "" {
		correlation = sess.PartnerSessionID
	}

	res, err := s.Client.NotificationStatus(ctx, correlation)
	if err != nil {
		// The stored state stays authoritative; the caller decides how to
		// present a failed poll.
		return sess, err
	}

	ev := domain.LoanStatusEvent{
		CorrelationID: correlation,
		RemoteStatus:  res.LoanStatus.Status,
		TransactionID: res.LoanStatus.TransactionID,
		ApprovalCode:  res.LoanStatus.ApprovalCode,
		Payload:       res.Raw,
		ReceivedAt:    time.Now().UTC(),
	}
	if err := s.Reconciler.ApplyLoanStatus(ctx, ev); err != nil {
		return sess, err
	}

	return s.Store.Sessions().GetSessionByID(ctx, id)
}

// SessionByID fetches a session by its internal id.
func (s *FinancingService) SessionByID(ctx context.Context, id idx.ID) (domain.Session, error) {
	return s.Store.Sessions().GetSessionByID(ctx, id)
}

// SessionByOrderRef fetches the most recent session for an order.
func (s *FinancingService) SessionByOrderRef(ctx context.Context, orderRef string) (domain.Session, error) {
	return s.Store.Sessions().GetSessionByOrderRef(ctx, orderRef)
}

// History returns a session's full event trail, oldest first.
func (s *FinancingService) History(ctx context.Context, id idx.ID) ([]domain.StatusEvent, error) {
	return s.Store.Events().ListEventsBySession(ctx, id)
}

// Void reverses an authorized transaction before settlement.
func (s *FinancingService) Void(ctx context.Context, id idx.ID) (*avvance.TransactionResult, error) {
	sess, err := s.Store.Sessions().GetSessionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.TransactionID == "" {
		return nil, fmt.Errorf("%w: session %s", ErrNoTransaction, id)
	}

	res, err := s.Client.Void(ctx, sess.TransactionID)
	if err != nil {
		return nil, err
	}

	s.recordOperatorAction(ctx, sess, "transaction voided", res.Status)
	return res, nil
}

// Refund returns funds on a settled transaction.
func (s *FinancingService) Refund(ctx context.Context, id idx.ID, amountCents int64) (*avvance.TransactionResult, error) {
	sess, err := s.Store.Sessions().GetSessionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.TransactionID == "" {
		return nil, fmt.Errorf("%w: session %s", ErrNoTransaction, id)
	}

	res, err := s.Client.Refund(ctx, sess.TransactionID, amountCents)
	if err != nil {
		return nil, err
	}

	s.recordOperatorAction(ctx, sess, "transaction refunded", res.Status)
	return res, nil
}

// PriceBreakdown lists the installment plans available for an amount.
func (s *FinancingService) PriceBreakdown(ctx context.Context, amountCents int64) (*avvance.PriceBreakdown, error) {
	return s.Client.GetPriceBreakdown(ctx, amountCents)
}

// recordOperatorAction appends a history row for a void or refund. A failed
// append is logged, not surfaced; the remote operation already happened.
func (s *FinancingService) recordOperatorAction(ctx context.Context, sess domain.Session, note, remoteStatus string) {
	err := s.Store.Events().AppendEvent(ctx, domain.StatusEvent{
		ID:           idx.New(),
		SessionID:    sess.ID,
		Status:       sess.Status,
		RemoteStatus: remoteStatus,
		Note:         note,
		ReceivedAt:   time.Now().UTC(),
	})
	if err != nil {
		slogx.FromContext(ctx).Error("failed to record operator action",
			slog.String("session_id", sess.ID.String()),
			slog.String("note", note),
			slog.Any("error", err))
	}
}
