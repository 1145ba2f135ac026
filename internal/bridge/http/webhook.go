package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/metrics"
	"github.com/harborline/avvance-bridge/internal/bridge/service"
	"github.com/harborline/avvance-bridge/pkg/httpx"
	"github.com/harborline/avvance-bridge/pkg/slogx"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler serves POST /v1/webhooks/avvance.
//
// The provider redelivers on any non-2xx, so the status code is the
// contract: 400 for payloads that will never parse, 500 for processing
// failures worth retrying, 200 for everything handled — including
// duplicates and event names we don't recognize.
type WebhookHandler struct {
	Reconciler *service.ReconcilerService
	Logger     *slog.Logger
}

type webhookEnvelope struct {
	EventName    string          `json:"eventName"`
	EventDetails json.RawMessage `json:"eventDetails"`
}

type loanStatusDetails struct {
	ApplicationID    string `json:"applicationId"`
	PartnerSessionID string `json:"partnerSessionId"`
	LoanStatus       string `json:"loanStatus"`
	TransactionID    string `json:"transactionId"`
	ApprovalCode     string `json:"approvalCode"`
}

type preApprovalDetails struct {
	RequestID         string `json:"requestId"`
	LeadID            string `json:"leadId"`
	LeadStatus        string `json:"leadstatus"`
	MaxApprovedAmount *int64 `json:"maxApprovedAmount"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	ExpirationDate    string `json:"expirationDate"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
		return
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.EventName == "" || len(env.EventDetails) == 0 {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		httpx.WriteError(w, http.StatusBadRequest, "invalid_event", "eventName and eventDetails are required")
		return
	}

	switch env.EventName {
	case "loanStatus":
		h.handleLoanStatus(w, r, env.EventDetails, body)
	case "preApprovalLead":
		h.handlePreApproval(w, r, env.EventDetails, body)
	default:
		// Unrecognized events are acknowledged so the provider stops
		// redelivering them.
		slogx.FromContext(r.Context()).Info("ignoring unrecognized webhook event",
			slog.String("event_name", env.EventName))
		metrics.WebhookEvents.WithLabelValues(env.EventName, "ignored").Inc()
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

func (h *WebhookHandler) handleLoanStatus(w http.ResponseWriter, r *http.Request, details json.RawMessage, body []byte) {
	var d loanStatusDetails
	if err := json.Unmarshal(details, &d); err != nil {
		metrics.WebhookEvents.WithLabelValues("loanStatus", "rejected").Inc()
		httpx.WriteError(w, http.StatusBadRequest, "invalid_event", "malformed loanStatus details")
		return
	}

	correlation := d.ApplicationID
	if correlation == "" {
		correlation = d.PartnerSessionID
	}
	if correlation == "" || d.LoanStatus == "" {
		metrics.WebhookEvents.WithLabelValues("loanStatus", "rejected").Inc()
		httpx.WriteError(w, http.StatusBadRequest, "invalid_event", "loanStatus requires a correlation id and a status")
		return
	}

	ev := domain.LoanStatusEvent{
		CorrelationID: correlation,
		RemoteStatus:  d.LoanStatus,
		TransactionID: d.TransactionID,
		ApprovalCode:  d.ApprovalCode,
		Payload:       body,
		ReceivedAt:    time.Now().UTC(),
	}

	if err := h.Reconciler.ApplyLoanStatus(r.Context(), ev); err != nil {
		// A session we don't know yet may just be a delivery racing the
		// create commit; 500 asks the provider to try again later.
		slogx.FromContext(r.Context()).Error("loan status processing failed",
			slog.String("correlation_id", correlation), slog.Any("error", err))
		metrics.WebhookEvents.WithLabelValues("loanStatus", "error").Inc()
		httpx.WriteError(w, http.StatusInternalServerError, "processing_failed", "event could not be processed")
		return
	}

	metrics.WebhookEvents.WithLabelValues("loanStatus", "applied").Inc()
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *WebhookHandler) handlePreApproval(w http.ResponseWriter, r *http.Request, details json.RawMessage, body []byte) {
	var d preApprovalDetails
	if err := json.Unmarshal(details, &d); err != nil || d.RequestID == "" {
		metrics.WebhookEvents.WithLabelValues("preApprovalLead", "rejected").Inc()
		httpx.WriteError(w, http.StatusBadRequest, "invalid_event", "preApprovalLead requires a requestId")
		return
	}

	ev := domain.PreApprovalEvent{
		RequestID:      d.RequestID,
		LeadID:         d.LeadID,
		RemoteStatus:   d.LeadStatus,
		MaxAmountCents: d.MaxApprovedAmount,
		EmailMasked:    domain.MaskEmail(d.Email),
		PhoneMasked:    domain.MaskPhone(d.Phone),
		Payload:        domain.RedactPayload(body),
		ReceivedAt:     time.Now().UTC(),
	}
	if d.ExpirationDate != "" {
		if ts, err := time.Parse(time.RFC3339, d.ExpirationDate); err == nil {
			ev.ExpiresAt = ts.UTC()
		}
	}

	if err := h.Reconciler.ApplyPreApproval(r.Context(), ev); err != nil {
		if errors.Is(err, service.ErrLeadNotFound) {
			// Lead creation may still be committing; redeliver.
			metrics.WebhookEvents.WithLabelValues("preApprovalLead", "error").Inc()
			httpx.WriteError(w, http.StatusInternalServerError, "unknown_lead", "no lead for this request id")
			return
		}
		slogx.FromContext(r.Context()).Error("pre-approval processing failed",
			slog.String("request_id", d.RequestID), slog.Any("error", err))
		metrics.WebhookEvents.WithLabelValues("preApprovalLead", "error").Inc()
		httpx.WriteError(w, http.StatusInternalServerError, "processing_failed", "event could not be processed")
		return
	}

	metrics.WebhookEvents.WithLabelValues("preApprovalLead", "applied").Inc()
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
