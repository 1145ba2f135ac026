package domain

// Status is the local lifecycle position of a financing session. The happy
// path runs created → application_started → application_approved →
// pending_customer_action → authorized → settled; failure exits are
// reachable from any state before authorized.
type Status string

const (
	StatusCreated               Status = "created"
	StatusApplicationStarted    Status = "application_started"
	StatusApplicationApproved   Status = "application_approved"
	StatusPendingCustomerAction Status = "pending_customer_action"
	StatusAuthorized            Status = "authorized"
	StatusSettled               Status = "settled"

	StatusDenied      Status = "denied"
	StatusSystemError Status = "system_error"
	StatusCancelled   Status = "cancelled"
	// StatusLinkExpired is reached only by the cleanup sweep, never by a
	// remote event.
	StatusLinkExpired Status = "link_expired"
)

// statusRank orders the happy-path chain. Failure statuses are not ranked;
// they are exits, not positions.
var statusRank = map[Status]int{
	StatusCreated:               0,
	StatusApplicationStarted:    1,
	StatusApplicationApproved:   2,
	StatusPendingCustomerAction: 3,
	StatusAuthorized:            4,
	StatusSettled:               5,
}

// IsFailure reports whether s is a terminal-failure status.
func (s Status) IsFailure() bool {
	switch s {
	case StatusDenied, StatusSystemError, StatusCancelled, StatusLinkExpired:
		return true
	}
	return false
}

// IsSuccess reports whether s is a terminal-success status.
func (s Status) IsSuccess() bool {
	return s == StatusAuthorized || s == StatusSettled
}

// IsTerminal reports whether no further transition is applied from s.
// Authorized is terminal-success but may still advance to settled.
func (s Status) IsTerminal() bool {
	return s == StatusSettled || s.IsFailure()
}

// Sweepable reports whether the cleanup scheduler may expire a session in
// this status. Authorized sessions are never touched regardless of age.
func (s Status) Sweepable() bool {
	return !s.IsTerminal() && s != StatusAuthorized
}

// Transition classifies what applying next on top of current means.
type Transition int

const (
	// TransitionAdvance commits the new status and runs its side effects.
	TransitionAdvance Transition = iota
	// TransitionDuplicate is a repeat of the current status: recorded in
	// history, no state change, success to the caller.
	TransitionDuplicate
	// TransitionRegression would move the session backwards or out of a
	// terminal state: logged as an anomaly and recorded in history, but the
	// status is never changed.
	TransitionRegression
)

// Classify decides the transition class for an inbound status against the
// session's current status. Forward jumps along the chain are allowed (the
// remote may skip intermediate notifications); failure exits are allowed
// from any non-terminal state before authorized.
func Classify(current, next Status) Transition {
	if next == current {
		return TransitionDuplicate
	}

	// Nothing moves out of a terminal state.
	if current.IsTerminal() {
		return TransitionRegression
	}

	if next.IsFailure() {
		if current == StatusAuthorized {
			// An authorized session cannot be failed by a late event.
			return TransitionRegression
		}
		return TransitionAdvance
	}

	curRank, curOK := statusRank[current]
	nextRank, nextOK := statusRank[next]
	if !curOK || !nextOK {
		return TransitionRegression
	}
	if nextRank > curRank {
		return TransitionAdvance
	}
	return TransitionRegression
}

// Remote loan-status strings as delivered in webhook payloads and status
// polls.
const (
	RemoteApplicationStarted    = "APPLICATION_STARTED"
	RemoteApplicationApproved   = "APPLICATION_APPROVED"
	RemotePendingCustomerAction = "PENDING_CUSTOMER_ACTION"
	RemoteTransactionAuthorized = "INVOICE_PAYMENT_TRANSACTION_AUTHORIZED"
	RemoteTransactionSettled    = "INVOICE_PAYMENT_TRANSACTION_SETTLED"
	RemoteApplicationDenied     = "APPLICATION_DENIED"
	RemoteSystemError           = "SYSTEM_ERROR"
	RemoteCustomerCancelled     = "CUSTOMER_CANCELLED"
)

var remoteStatus = map[string]Status{
	RemoteApplicationStarted:    StatusApplicationStarted,
	RemoteApplicationApproved:   StatusApplicationApproved,
	RemotePendingCustomerAction: StatusPendingCustomerAction,
	RemoteTransactionAuthorized: StatusAuthorized,
	RemoteTransactionSettled:    StatusSettled,
	RemoteApplicationDenied:     StatusDenied,
	RemoteSystemError:           StatusSystemError,
	RemoteCustomerCancelled:     StatusCancelled,
}

// StatusFromRemote maps a remote loan status onto the local enum. Unknown
// strings are reported, not failed, so new remote statuses stay
// forward-compatible.
func StatusFromRemote(remote string) (Status, bool) {
	s, ok := remoteStatus[remote]
	return s, ok
}

// LeadStatus is the lifecycle of a pre-approval lead.
type LeadStatus string

const (
	LeadPending  LeadStatus = "pending"
	LeadApproved LeadStatus = "approved"
	LeadDeclined LeadStatus = "declined"
)

// LeadStatusFromRemote maps the remote leadstatus field. The provider has
// shipped more than one spelling of "approved" over time; the canonical set
// accepted here is PRE_APPROVED and APPROVED (decision recorded in
// DESIGN.md).
func LeadStatusFromRemote(remote string) (LeadStatus, bool) {
	switch remote {
	case "PRE_APPROVED", "APPROVED":
		return LeadApproved, true
	case "NOT_APPROVED", "DECLINED":
		return LeadDeclined, true
	case "PENDING":
		return LeadPending, true
	}
	return "", false
}
