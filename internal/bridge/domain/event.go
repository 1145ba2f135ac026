package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Inbound webhook events are decoded exactly once at the ingress boundary
// into one of the variants below; the reconciler never touches raw JSON or
// dispatches on event-name strings.

// LoanStatusEvent is a loan lifecycle notification, sourced either from a
// webhook delivery or from a manual status poll. Both producers feed the
// same reconciler entry point.
type LoanStatusEvent struct {
	CorrelationID string // application id or partner session id
	RemoteStatus  string
	TransactionID string
	ApprovalCode  string
	Payload       []byte
	ReceivedAt    time.Time
}

// PreApprovalEvent is the one-shot resolution of a pre-approval lead.
type PreApprovalEvent struct {
	RequestID      string
	LeadID         string
	RemoteStatus   string
	MaxAmountCents *int64
	EmailMasked    string
	PhoneMasked    string
	ExpiresAt      time.Time
	Payload        []byte // already PII-redacted
	ReceivedAt     time.Time
}

// piiFields are the payload keys whose values never persist. Matching is
// case-insensitive on the key name.
var piiFields = map[string]struct{}{
	"email":       {},
	"phone":       {},
	"phonenumber": {},
	"firstname":   {},
	"lastname":    {},
	"dateofbirth": {},
	"ssn":         {},
	"address":     {},
}

const redactedPlaceholder = "[REDACTED]"

// RedactPayload returns a copy of a JSON payload with PII field values
// replaced, recursively. Non-JSON input is dropped entirely rather than
// stored unredacted.
func RedactPayload(raw []byte) []byte {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}

	redacted, _ := json.Marshal(redactValue(decoded))
	return redacted
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if _, hit := piiFields[strings.ToLower(k)]; hit {
				out[k] = redactedPlaceholder
				continue
			}
			out[k] = redactValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = redactValue(inner)
		}
		return out
	default:
		return v
	}
}

// MaskEmail keeps the first character and the domain: j***@example.com.
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return ""
	}
	return email[:1] + "***" + email[at:]
}

// MaskPhone keeps the last four digits.
func MaskPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) < 4 {
		return ""
	}
	return "***" + digits[len(digits)-4:]
}
