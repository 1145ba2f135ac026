package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/idx"
)

type leadsRepo struct {
	q queryer
}

const leadColumns = `id, request_id, lead_id, session_id, fingerprint, status,
	max_amount_cents, email_masked, phone_masked, payload,
	expires_at, created_at, updated_at`

func (r *leadsRepo) CreateLead(ctx context.Context, l domain.Lead) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO preapproval_leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID.String(), l.RequestID, l.LeadID, l.SessionID, l.Fingerprint, string(l.Status),
		mapOptionalInt64(l.MaxAmountCents), l.EmailMasked, l.PhoneMasked, l.Payload,
		l.ExpiresAt, l.CreatedAt, l.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *leadsRepo) GetLeadByRequestID(ctx context.Context, requestID string) (domain.Lead, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+leadColumns+` FROM preapproval_leads WHERE request_id = ?`, requestID)
	return scanLead(row)
}

func (r *leadsRepo) GetLatestLeadByFingerprint(ctx context.Context, fingerprint string) (domain.Lead, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+leadColumns+` FROM preapproval_leads
		WHERE fingerprint = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, fingerprint)
	return scanLead(row)
}

func (r *leadsRepo) ResolveLead(ctx context.Context, requestID string, upd store.LeadUpdate) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE preapproval_leads
		SET status = ?,
			lead_id = COALESCE(NULLIF(?, ''), lead_id),
			max_amount_cents = ?,
			email_masked = COALESCE(NULLIF(?, ''), email_masked),
			phone_masked = COALESCE(NULLIF(?, ''), phone_masked),
			expires_at = ?,
			payload = ?,
			updated_at = ?
		WHERE request_id = ?`,
		string(upd.Status), upd.LeadID,
		mapOptionalInt64(upd.MaxAmountCents), upd.EmailMasked, upd.PhoneMasked,
		upd.ExpiresAt, upd.Payload, time.Now().UTC(), requestID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var (
		l      domain.Lead
		id     string
		st     string
		amount sql.NullInt64
	)
	err := row.Scan(
		&id, &l.RequestID, &l.LeadID, &l.SessionID, &l.Fingerprint, &st,
		&amount, &l.EmailMasked, &l.PhoneMasked, &l.Payload,
		&l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, mapNotFound(err)
	}
	l.ID = idx.ID(id)
	l.Status = domain.LeadStatus(st)
	l.MaxAmountCents = mapNullInt64Ptr(amount)
	return l, nil
}
