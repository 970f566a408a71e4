package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

func (s *Store) InsertSession(ctx context.Context, sess *store.UsageSession) apperrors.Error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_sessions (id, resource_id, user_id, start_time, end_time, start_notes, end_notes)
		VALUES ($1, $2, $3, $4, NULL, $5, '')`,
		sess.ID, sess.ResourceID, sess.UserID, sess.StartTime, sess.StartNotes)
	if err != nil {
		// Losing the race on the partial unique index means another open
		// session beat this insert.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrActiveSessionExists
		}
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	return nil
}

func (s *Store) CloseSession(ctx context.Context, sessionID uuid.UUID, endTime time.Time, endNotes string) apperrors.Error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE usage_sessions SET end_time = $2, end_notes = $3
		WHERE id = $1 AND end_time IS NULL`,
		sessionID, endTime, endNotes)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound.Msg("no open session")
	}
	return nil
}

func (s *Store) GetActiveSession(ctx context.Context, resourceID uuid.UUID) (*store.UsageSession, apperrors.Error) {
	sess, err := s.scanSession(ctx, `
		SELECT id, resource_id, user_id, start_time, end_time, start_notes, end_notes
		FROM usage_sessions WHERE resource_id = $1 AND end_time IS NULL`, resourceID)
	if err != nil {
		if err.Is(store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID uuid.UUID) (*store.UsageSession, apperrors.Error) {
	return s.scanSession(ctx, `
		SELECT id, resource_id, user_id, start_time, end_time, start_notes, end_notes
		FROM usage_sessions WHERE id = $1`, sessionID)
}

func (s *Store) scanSession(ctx context.Context, query string, arg any) (*store.UsageSession, apperrors.Error) {
	var sess store.UsageSession
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&sess.ID, &sess.ResourceID, &sess.UserID, &sess.StartTime, &sess.EndTime, &sess.StartNotes, &sess.EndNotes)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound.Msg("session not found"))
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context, resourceID uuid.UUID, filter store.SessionFilter) ([]store.UsageSession, int64, apperrors.Error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	where := `WHERE resource_id = $1`
	args := []any{resourceID}
	if filter.UserID != nil {
		where += ` AND user_id = $2`
		args = append(args, *filter.UserID)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM usage_sessions `+where, args...).Scan(&total); err != nil {
		return nil, 0, wrapErr(ctx, err, store.ErrNotFound)
	}

	argn := len(args)
	query := fmt.Sprintf(`
		SELECT id, resource_id, user_id, start_time, end_time, start_notes, end_notes
		FROM usage_sessions %s
		ORDER BY start_time DESC
		LIMIT $%d OFFSET $%d`, where, argn+1, argn+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, wrapErr(ctx, err, store.ErrNotFound)
	}
	defer rows.Close()
	out := []store.UsageSession{}
	for rows.Next() {
		var sess store.UsageSession
		if err := rows.Scan(&sess.ID, &sess.ResourceID, &sess.UserID, &sess.StartTime, &sess.EndTime, &sess.StartNotes, &sess.EndNotes); err != nil {
			return nil, 0, wrapErr(ctx, err, store.ErrNotFound)
		}
		out = append(out, sess)
	}
	return out, total, wrapErr(ctx, rows.Err(), store.ErrNotFound)
}
