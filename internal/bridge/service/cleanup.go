package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/metrics"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/idx"
)

// CleanupService periodically expires financing sessions that never reached
// a terminal state, so abandoned checkouts don't accumulate forever.
type CleanupService struct {
	Store    store.Store
	Orders   Orders
	Logger   *slog.Logger
	Interval time.Duration
	TTL      time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCleanupService creates the cleanup worker. A non-positive interval
// defaults to 24 hours; a non-positive TTL defaults to the session TTL.
func NewCleanupService(st store.Store, orders Orders, logger *slog.Logger, interval, ttl time.Duration) *CleanupService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if ttl <= 0 {
		ttl = domain.SessionTTL
	}

	return &CleanupService{
		Store:    st,
		Orders:   orders,
		Logger:   logger,
		Interval: interval,
		TTL:      ttl,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut it
// down gracefully.
func (s *CleanupService) Start() {
	go s.run()
	s.Logger.Info("cleanup service started", "interval", s.Interval, "ttl", s.TTL)
}

// Stop shuts down the background worker and blocks until any in-progress
// sweep has finished.
func (s *CleanupService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("cleanup service stopped")
}

func (s *CleanupService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep expires every sweepable session older than the TTL. Exported so
// tests and the poll path can trigger it directly.
//
// The expiry update re-checks the status at commit time, so a session that
// authorizes mid-sweep is left untouched. A session whose order somehow got
// paid is flagged and skipped rather than expired.
func (s *CleanupService) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.TTL)

	sessions, err := s.Store.Sessions().ListExpiredPending(ctx, cutoff)
	if err != nil {
		s.Logger.Error("cleanup: list expired sessions", "error", err)
		return
	}
	if len(sessions) == 0 {
		return
	}

	var expired int
	for _, sess := range sessions {
		paid, err := s.Orders.IsPaid(ctx, sess.OrderRef)
		if err != nil {
			s.Logger.Error("cleanup: query order payment",
				"session_id", sess.ID.String(), "error", err)
			continue
		}
		if paid {
			s.Logger.Warn("cleanup: pending session with a paid order",
				"session_id", sess.ID.String(), "order_ref", sess.OrderRef,
				"status", string(sess.Status))
			continue
		}

		ok, err := s.Store.Sessions().ExpireSessionIf(ctx, sess.ID)
		if err != nil {
			s.Logger.Error("cleanup: expire session",
				"session_id", sess.ID.String(), "error", err)
			continue
		}
		if !ok {
			// Moved to a protected state since the scan; leave it be.
			continue
		}

		if err := s.Store.Events().AppendEvent(ctx, domain.StatusEvent{
			ID:         idx.New(),
			SessionID:  sess.ID,
			Status:     domain.StatusLinkExpired,
			Note:       "expired by cleanup sweep",
			ReceivedAt: time.Now().UTC(),
		}); err != nil {
			s.Logger.Error("cleanup: append history",
				"session_id", sess.ID.String(), "error", err)
		}
		metrics.SessionsExpired.Inc()
		expired++
	}

	s.Logger.Info("cleanup sweep completed",
		"scanned", len(sessions), "expired", expired)
}
