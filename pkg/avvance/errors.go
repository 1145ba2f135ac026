package avvance

import (
	"errors"
	"fmt"
)

// The client surfaces four distinct failure classes so callers can pick the
// right recovery:
//
//   - TransportError: the network failed or timed out. Retryable, but the
//     operation may still have happened remotely ("failed-unknown").
//   - AuthError: the authorization endpoint rejected us or a business call
//     returned 401. Callers invalidate the cache and retry once with a fresh
//     token, never in a loop.
//   - APIError: the remote API returned a structured non-2xx business error.
//     Not retried automatically.
//   - MalformedResponseError: a 2xx response was missing required fields.
//     Treated as a defect needing operator attention.

// TransportError wraps network-level failures (dial, TLS, timeout).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("avvance: %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError reports an authentication failure, either from the token
// endpoint itself or a 401 on a downstream business call.
type AuthError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("avvance: %s: authentication failed (status %d): %s", e.Op, e.StatusCode, e.Detail)
}

// APIError is a structured remote business error (non-2xx with a parseable
// body). Code and Message come from the remote payload when present.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("avvance: %s: remote error (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("avvance: %s: remote error (status %d)", e.Op, e.StatusCode)
}

// MalformedResponseError reports a 2xx response missing a required field.
type MalformedResponseError struct {
	Op      string
	Missing string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("avvance: %s: malformed response: missing %s", e.Op, e.Missing)
}

// IsTransport reports whether err is a retryable transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsMalformed reports whether err is a malformed-response defect.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
