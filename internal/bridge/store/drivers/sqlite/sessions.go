package sqlite

import (
	"context"
	"time"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/internal/bridge/store"
	"github.com/harborline/avvance-bridge/pkg/idx"
)

type sessionsRepo struct {
	q queryer
}

const sessionColumns = `id, application_id, partner_session_id, order_ref, status,
	last_remote_status, transaction_id, approval_code, onboarding_url, return_url,
	created_at, updated_at, expires_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO financing_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.ApplicationID, s.PartnerSessionID, s.OrderRef, string(s.Status),
		s.LastRemoteStatus, s.TransactionID, s.ApprovalCode, s.OnboardingURL, s.ReturnURL,
		s.CreatedAt, s.UpdatedAt, s.ExpiresAt,
	)
	return mapConflict(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id idx.ID) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM financing_sessions WHERE id = ?`, id.String())
	return scanSession(row)
}

func (r *sessionsRepo) GetSessionByCorrelation(ctx context.Context, correlationID string) (domain.Session, error) {
	// Webhooks may carry either identifier; empty string never matches
	// because the partial unique indexes exclude it.
	row := r.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM financing_sessions
		WHERE (application_id = ?1 AND application_id <> '')
		   OR (partner_session_id = ?1 AND partner_session_id <> '')
		LIMIT 1`, correlationID)
	return scanSession(row)
}

func (r *sessionsRepo) GetSessionByOrderRef(ctx context.Context, orderRef string) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM financing_sessions
		WHERE order_ref = ?
		ORDER BY created_at DESC
		LIMIT 1`, orderRef)
	return scanSession(row)
}

func (r *sessionsRepo) UpdateSessionStatusIf(
	ctx context.Context,
	id idx.ID,
	from, to domain.Status,
	upd store.SessionUpdate,
) (bool, error) {
	// Compare-and-set on the current status: the WHERE clause is what
	// serializes a webhook and a manual poll racing on the same session.
	res, err := r.q.ExecContext(ctx, `
		UPDATE financing_sessions
		SET status = ?,
			last_remote_status = COALESCE(NULLIF(?, ''), last_remote_status),
			transaction_id     = COALESCE(NULLIF(?, ''), transaction_id),
			approval_code      = COALESCE(NULLIF(?, ''), approval_code),
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), upd.RemoteStatus, upd.TransactionID, upd.ApprovalCode,
		time.Now().UTC(), id.String(), string(from),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *sessionsRepo) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]domain.Session, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM financing_sessions
		WHERE created_at < ?
		  AND status NOT IN ('authorized', 'settled', 'denied', 'system_error', 'cancelled', 'link_expired')
		ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) ExpireSessionIf(ctx context.Context, id idx.ID) (bool, error) {
	// The status filter is re-evaluated at commit time, not scan time: a
	// session authorized between the sweep's scan and this update is left
	// alone.
	res, err := r.q.ExecContext(ctx, `
		UPDATE financing_sessions
		SET status = 'link_expired', updated_at = ?
		WHERE id = ?
		  AND status NOT IN ('authorized', 'settled', 'denied', 'system_error', 'cancelled', 'link_expired')`,
		time.Now().UTC(), id.String(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		s  domain.Session
		id string
		st string
	)
	err := row.Scan(
		&id, &s.ApplicationID, &s.PartnerSessionID, &s.OrderRef, &st,
		&s.LastRemoteStatus, &s.TransactionID, &s.ApprovalCode, &s.OnboardingURL, &s.ReturnURL,
		&s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.ID = idx.ID(id)
	s.Status = domain.Status(st)
	return s, nil
}

func scanSessionRows(rows rowScanner) (domain.Session, error) {
	return scanSession(rows)
}
