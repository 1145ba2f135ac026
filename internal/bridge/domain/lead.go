package domain

import (
	"time"

	"github.com/harborline/avvance-bridge/pkg/idx"
)

// LeadTTL bounds how long a pre-approval offer is considered presentable.
const LeadTTL = 30 * 24 * time.Hour

// Lead is one anonymous pre-qualification attempt. RequestID is assigned by
// the remote system and is the reconciliation key for the webhook;
// Fingerprint is the lookup key for presentation-time queries.
type Lead struct {
	ID idx.ID

	RequestID   string
	LeadID      string
	SessionID   string // ephemeral, client-generated
	Fingerprint string

	Status LeadStatus

	// MaxAmountCents is present only while approved. Declined leads always
	// carry nil here, whatever the raw event said.
	MaxAmountCents *int64

	// Masked contact fields; raw values never persist.
	EmailMasked string
	PhoneMasked string

	// Payload is the raw webhook body with PII fields redacted.
	Payload []byte

	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
