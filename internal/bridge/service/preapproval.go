package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/metrics"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/avvance"
	"github.com/harborline/avvance-bridge/pkg/idx"
	"github.com/harborline/avvance-bridge/pkg/slogx"
)

// PreApprovalClient is the outbound surface for lead creation;
// *avvance.Client satisfies it.
type PreApprovalClient interface {
	CreatePreApproval(ctx context.Context, sessionID string) (*avvance.PreApprovalResult, error)
}

// PreApprovalOffer pairs a persisted lead with the hosted onboarding URL,
// which is returned to the shopper but never stored.
type PreApprovalOffer struct {
	Lead          domain.Lead
	OnboardingURL string
}

// PreApprovalService manages anonymous pre-qualification leads keyed by a
// browser fingerprint.
type PreApprovalService struct {
	Store  store.Store
	Client PreApprovalClient
	Logger *slog.Logger
}

// Create starts a pre-approval flow. The ephemeral session id is minted
// fresh per attempt; the remote's request id becomes the reconciliation key
// for the eventual webhook.
func (s *PreApprovalService) Create(ctx context.Context, fingerprint string) (PreApprovalOffer, error) {
	sessionID := uuid.NewString()

	res, err := s.Client.CreatePreApproval(ctx, sessionID)
	if err != nil {
		return PreApprovalOffer{}, err
	}

	now := time.Now().UTC()
	lead := domain.Lead{
		ID:          idx.New(),
		RequestID:   res.RequestID,
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		Status:      domain.LeadPending,
		ExpiresAt:   now.Add(domain.LeadTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.Leads().CreateLead(ctx, lead); err != nil {
		return PreApprovalOffer{}, err
	}

	metrics.LeadsCreated.Inc()
	slogx.FromContext(ctx).Info("pre-approval lead created",
		slog.String("request_id", lead.RequestID),
		slog.String("fingerprint", fingerprint))
	return PreApprovalOffer{Lead: lead, OnboardingURL: res.OnboardingURL}, nil
}

// Latest returns the newest presentable lead for a fingerprint. An offer
// past its expiry reads as not found.
func (s *PreApprovalService) Latest(ctx context.Context, fingerprint string) (domain.Lead, error) {
	lead, err := s.Store.Leads().GetLatestLeadByFingerprint(ctx, fingerprint)
	if err != nil {
		return domain.Lead{}, err
	}
	if time.Now().UTC().After(lead.ExpiresAt) {
		return domain.Lead{}, store.ErrNotFound
	}
	return lead, nil
}
