package store

import (
	"context"
	"errors"
	"time"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface; the sqlite driver implements it.
// It exposes sub-repositories to keep concerns tidy and testable, and it is
// the single serialization point for concurrent updates to a session.
type Store interface {
	Sessions() Sessions
	Leads() Leads
	Events() Events

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction; rollback on error, commit on
	// nil. This is the recommended entry point for multi-step operations
	// that must be atomic (status commit + history append).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// SessionUpdate carries the optional fields applied alongside a status
// transition.
type SessionUpdate struct {
	RemoteStatus  string
	TransactionID string
	ApprovalCode  string
}

type Sessions interface {
	// CreateSession inserts a new record. A duplicate application id or
	// partner session id fails with ErrAlreadyExists; duplicate create
	// attempts must never silently overwrite.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID fetches by the internal record id.
	GetSessionByID(ctx context.Context, id idx.ID) (domain.Session, error)

	// GetSessionByCorrelation matches either the application id or the
	// partner session id; webhooks may supply only one of the two.
	GetSessionByCorrelation(ctx context.Context, correlationID string) (domain.Session, error)

	// GetSessionByOrderRef fetches the most recent session for an order.
	GetSessionByOrderRef(ctx context.Context, orderRef string) (domain.Session, error)

	// UpdateSessionStatusIf atomically moves a session from one status to
	// another, applying upd in the same statement. It reports whether a row
	// changed; false means another writer got there first and the caller
	// must re-read and re-decide.
	UpdateSessionStatusIf(ctx context.Context, id idx.ID, from, to domain.Status, upd SessionUpdate) (bool, error)

	// ListExpiredPending returns sweepable sessions created before cutoff.
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]domain.Session, error)

	// ExpireSessionIf moves a session to link_expired only if it is still
	// sweepable at commit time, so a concurrent authorize always wins.
	// Reports whether the row changed.
	ExpireSessionIf(ctx context.Context, id idx.ID) (bool, error)
}

// LeadUpdate is the idempotent one-shot resolution of a lead.
type LeadUpdate struct {
	Status         domain.LeadStatus
	LeadID         string
	MaxAmountCents *int64 // nil clears any previously stored amount
	EmailMasked    string
	PhoneMasked    string
	ExpiresAt      time.Time
	Payload        []byte
}

type Leads interface {
	// CreateLead inserts a new lead; duplicate request ids fail with
	// ErrAlreadyExists.
	CreateLead(ctx context.Context, l domain.Lead) error

	// GetLeadByRequestID is the webhook reconciliation lookup.
	GetLeadByRequestID(ctx context.Context, requestID string) (domain.Lead, error)

	// GetLatestLeadByFingerprint is the presentation-time lookup.
	GetLatestLeadByFingerprint(ctx context.Context, fingerprint string) (domain.Lead, error)

	// ResolveLead applies the webhook outcome keyed by request id.
	ResolveLead(ctx context.Context, requestID string, upd LeadUpdate) error
}

type Events interface {
	// AppendEvent writes one history row. History is append-only; there is
	// deliberately no update or delete.
	AppendEvent(ctx context.Context, ev domain.StatusEvent) error

	// ListEventsBySession returns a session's history oldest-first.
	ListEventsBySession(ctx context.Context, sessionID idx.ID) ([]domain.StatusEvent, error)
}
