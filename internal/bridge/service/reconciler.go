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
	"github.com/harborline/avvance-bridge/pkg/idx"
	"github.com/harborline/avvance-bridge/pkg/slogx"
)

var (
	ErrSessionNotFound = errors.New("session_not_found")
	ErrLeadNotFound    = errors.New("lead_not_found")
)

// maxCommitRetries bounds how often a status commit is retried after losing
// a compare-and-set race to a concurrent writer.
const maxCommitRetries = 3

// ReconcilerService applies inbound loan-status and pre-approval events to
// the local records. Webhook deliveries and manual status polls both land
// here, so the ordering rules live in exactly one place.
type ReconcilerService struct {
	Store  store.Store
	Orders Orders
	Logger *slog.Logger
}

// ApplyLoanStatus reconciles one loan-status event against its session.
//
// Duplicates and regressions are recorded in history and reported as
// success. An advance runs the order side effect first and then commits the
// status and the history row in one transaction; losing the commit race
// re-reads and re-classifies.
func (s *ReconcilerService) ApplyLoanStatus(ctx context.Context, ev domain.LoanStatusEvent) error {
	l := slogx.FromContext(ctx)

	sess, err := s.Store.Sessions().GetSessionByCorrelation(ctx, ev.CorrelationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: correlation %q", ErrSessionNotFound, ev.CorrelationID)
		}
		return err
	}

	next, known := domain.StatusFromRemote(ev.RemoteStatus)
	if !known {
		l.Warn("unknown remote loan status",
			slog.String("session_id", sess.ID.String()),
			slog.String("remote_status", ev.RemoteStatus))
		return s.appendHistory(ctx, sess.ID, sess.Status, ev, "unknown remote status")
	}

	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		switch domain.Classify(sess.Status, next) {
		case domain.TransitionDuplicate:
			return s.appendHistory(ctx, sess.ID, next, ev, "duplicate delivery")

		case domain.TransitionRegression:
			l.Warn("out-of-order loan status ignored",
				slog.String("session_id", sess.ID.String()),
				slog.String("current", string(sess.Status)),
				slog.String("received", string(next)))
			return s.appendHistory(ctx, sess.ID, next, ev, "regression ignored")

		case domain.TransitionAdvance:
			if err := s.runSideEffects(ctx, sess, next, ev); err != nil {
				return err
			}

			committed, err := s.commitAdvance(ctx, sess, next, ev)
			if err != nil {
				return err
			}
			if committed {
				metrics.StatusTransitions.WithLabelValues(string(next)).Inc()
				l.Info("loan status applied",
					slog.String("session_id", sess.ID.String()),
					slog.String("from", string(sess.Status)),
					slog.String("to", string(next)))
				return nil
			}

			// Another writer moved the session; re-read and re-decide.
			sess, err = s.Store.Sessions().GetSessionByID(ctx, sess.ID)
			if err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("reconcile: session %s: commit contention", sess.ID)
}

// runSideEffects drives the order gateway before the status commit. The
// gateway operations are idempotent, so repeating them after a lost race is
// safe; committing the status without them is not.
func (s *ReconcilerService) runSideEffects(ctx context.Context, sess domain.Session, next domain.Status, ev domain.LoanStatusEvent) error {
	switch {
	case next == domain.StatusAuthorized:
		// Authorization is the only transition that asserts payment; a later
		// settlement is recorded in history without touching the order again.
		txnID := ev.TransactionID
		if txnID == "" {
			txnID = sess.TransactionID
		}
		if err := s.Orders.MarkPaid(ctx, sess.OrderRef, txnID); err != nil {
			return fmt.Errorf("reconcile: mark order paid: %w", err)
		}

	case next.IsFailure():
		paid, err := s.Orders.IsPaid(ctx, sess.OrderRef)
		if err != nil {
			return fmt.Errorf("reconcile: query order payment: %w", err)
		}
		if paid {
			// A failure event after payment settled is an anomaly to flag,
			// never a reason to cancel a paid order.
			slogx.FromContext(ctx).Warn("failure event for a paid order",
				slog.String("session_id", sess.ID.String()),
				slog.String("order_ref", sess.OrderRef),
				slog.String("received", string(next)))
			return nil
		}
		if err := s.Orders.Cancel(ctx, sess.OrderRef, string(next)); err != nil {
			return fmt.Errorf("reconcile: cancel order: %w", err)
		}
	}
	return nil
}

// commitAdvance writes the new status and the history row atomically. It
// reports false when the compare-and-set found the session already moved.
func (s *ReconcilerService) commitAdvance(ctx context.Context, sess domain.Session, next domain.Status, ev domain.LoanStatusEvent) (bool, error) {
	committed := false
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.Sessions().UpdateSessionStatusIf(ctx, sess.ID, sess.Status, next, store.SessionUpdate{
			RemoteStatus:  ev.RemoteStatus,
			TransactionID: ev.TransactionID,
			ApprovalCode:  ev.ApprovalCode,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		committed = true
		return tx.Events().AppendEvent(ctx, s.historyEvent(sess.ID, next, ev, ""))
	})
	return committed, err
}

// ApplyPreApproval resolves a pre-approval lead from its webhook outcome.
// Resolution is one-shot: once a lead left pending, later events only add
// log noise, they never flip the stored outcome.
func (s *ReconcilerService) ApplyPreApproval(ctx context.Context, ev domain.PreApprovalEvent) error {
	l := slogx.FromContext(ctx)

	status, known := domain.LeadStatusFromRemote(ev.RemoteStatus)
	if !known {
		l.Warn("unknown pre-approval status",
			slog.String("request_id", ev.RequestID),
			slog.String("remote_status", ev.RemoteStatus))
		return nil
	}

	lead, err := s.Store.Leads().GetLeadByRequestID(ctx, ev.RequestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: request %q", ErrLeadNotFound, ev.RequestID)
		}
		return err
	}

	if lead.Status != domain.LeadPending {
		if lead.Status != status {
			l.Warn("conflicting pre-approval resolution ignored",
				slog.String("request_id", ev.RequestID),
				slog.String("stored", string(lead.Status)),
				slog.String("received", string(status)))
		}
		return nil
	}

	upd := store.LeadUpdate{
		Status:      status,
		LeadID:      ev.LeadID,
		EmailMasked: ev.EmailMasked,
		PhoneMasked: ev.PhoneMasked,
		ExpiresAt:   ev.ExpiresAt,
		Payload:     ev.Payload,
	}
	// The offer amount only exists while approved; a declined event carries
	// nil whatever the raw payload said.
	if status == domain.LeadApproved {
		upd.MaxAmountCents = ev.MaxAmountCents
		if ev.MaxAmountCents == nil {
			l.Warn("approved lead carries no offer amount",
				slog.String("request_id", ev.RequestID))
		}
	}
	if upd.ExpiresAt.IsZero() {
		upd.ExpiresAt = ev.ReceivedAt.Add(domain.LeadTTL)
	}

	if err := s.Store.Leads().ResolveLead(ctx, ev.RequestID, upd); err != nil {
		return err
	}

	l.Info("pre-approval lead resolved",
		slog.String("request_id", ev.RequestID),
		slog.String("status", string(status)))
	return nil
}

func (s *ReconcilerService) appendHistory(ctx context.Context, sessionID idx.ID, st domain.Status, ev domain.LoanStatusEvent, note string) error {
	return s.Store.Events().AppendEvent(ctx, s.historyEvent(sessionID, st, ev, note))
}

func (s *ReconcilerService) historyEvent(sessionID idx.ID, st domain.Status, ev domain.LoanStatusEvent, note string) domain.StatusEvent {
	receivedAt := ev.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	return domain.StatusEvent{
		ID:           idx.New(),
		SessionID:    sessionID,
		Status:       st,
		RemoteStatus: ev.RemoteStatus,
		Payload:      domain.RedactPayload(ev.Payload),
		Note:         note,
		ReceivedAt:   receivedAt,
	}
}
