package sqlite

import (
	"context"

	"github.com/harborline/avvance-bridge/internal/bridge/domain"
	"github.com/harborline/avvance-bridge/pkg/idx"
)

type eventsRepo struct {
	q queryer
}

func (r *eventsRepo) AppendEvent(ctx context.Context, ev domain.StatusEvent) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO session_events (id, session_id, status, remote_status, payload, note, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.SessionID.String(), string(ev.Status), ev.RemoteStatus,
		ev.Payload, ev.Note, ev.ReceivedAt,
	)
	return mapConflict(err)
}

func (r *eventsRepo) ListEventsBySession(ctx context.Context, sessionID idx.ID) ([]domain.StatusEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, status, remote_status, payload, note, received_at
		FROM session_events
		WHERE session_id = ?
		ORDER BY received_at, id`, sessionID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StatusEvent
	for rows.Next() {
		var (
			ev  domain.StatusEvent
			id  string
			sid string
			st  string
		)
		if err := rows.Scan(&id, &sid, &st, &ev.RemoteStatus, &ev.Payload, &ev.Note, &ev.ReceivedAt); err != nil {
			return nil, err
		}
		ev.ID = idx.ID(id)
		ev.SessionID = idx.ID(sid)
		ev.Status = domain.Status(st)
		out = append(out, ev)
	}
	return out, rows.Err()
}
