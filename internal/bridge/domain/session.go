package domain

import (
	"time"

	"github.com/harborline/avvance-bridge/pkg/idx"
)

// SessionTTL is how long a financing session may stay non-terminal before
// the cleanup sweep expires it.
const SessionTTL = 30 * 24 * time.Hour

// Session is one checkout-financing attempt. After creation at least one of
// ApplicationID and PartnerSessionID is always present; webhooks may carry
// either, so both are correlation keys.
type Session struct {
	ID idx.ID

	ApplicationID    string
	PartnerSessionID string
	OrderRef         string // foreign id of the external order/cart entity

	Status           Status
	LastRemoteStatus string

	// Set once the session reaches authorized.
	TransactionID string
	ApprovalCode  string

	OnboardingURL string
	ReturnURL     string

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// StatusEvent is one row of a session's append-only history: every received
// event lands here, including duplicates and regressions, so the forensic
// trail survives whatever the state machine decided.
type StatusEvent struct {
	ID           idx.ID
	SessionID    idx.ID
	Status       Status
	RemoteStatus string
	Payload      []byte
	Note         string
	ReceivedAt   time.Time
}
