package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

func (s *Store) AddIntroducer(ctx context.Context, i *store.Introducer) apperrors.Error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.GrantedAt.IsZero() {
		i.GrantedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO introducers (id, scope_kind, scope_id, user_id, granted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		i.ID, i.Scope.Kind, i.Scope.ID, i.UserID, i.GrantedAt)
	if aerr := wrapErr(ctx, err, store.ErrNotFound); aerr != nil {
		if aerr.Is(store.ErrAlreadyExists) {
			return store.ErrAlreadyExists.Msg("user is already an introducer")
		}
		return aerr
	}
	return nil
}

func (s *Store) RemoveIntroducer(ctx context.Context, scope store.Scope, userID uuid.UUID) apperrors.Error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM introducers WHERE scope_kind = $1 AND scope_id = $2 AND user_id = $3`,
		scope.Kind, scope.ID, userID)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound.Msg("introducer not found")
	}
	return nil
}

func (s *Store) IsIntroducer(ctx context.Context, scope store.Scope, userID uuid.UUID) (bool, apperrors.Error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM introducers
			WHERE scope_kind = $1 AND scope_id = $2 AND user_id = $3)`,
		scope.Kind, scope.ID, userID).Scan(&exists)
	if err != nil {
		return false, wrapErr(ctx, err, store.ErrNotFound)
	}
	return exists, nil
}

func (s *Store) ListIntroducers(ctx context.Context, scope store.Scope) ([]store.Introducer, apperrors.Error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope_kind, scope_id, user_id, granted_at FROM introducers
		WHERE scope_kind = $1 AND scope_id = $2 ORDER BY granted_at`,
		scope.Kind, scope.ID)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound)
	}
	defer rows.Close()
	out := []store.Introducer{}
	for rows.Next() {
		var i store.Introducer
		if err := rows.Scan(&i.ID, &i.Scope.Kind, &i.Scope.ID, &i.UserID, &i.GrantedAt); err != nil {
			return nil, wrapErr(ctx, err, store.ErrNotFound)
		}
		out = append(out, i)
	}
	return out, wrapErr(ctx, rows.Err(), store.ErrNotFound)
}

func (s *Store) InsertIntroduction(ctx context.Context, i *store.Introduction) apperrors.Error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO introductions (id, scope_kind, scope_id, receiver_user_id, tutor_user_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.Scope.Kind, i.Scope.ID, i.ReceiverUserID, i.TutorUserID, i.CompletedAt)
	if aerr := wrapErr(ctx, err, store.ErrNotFound); aerr != nil {
		if aerr.Is(store.ErrAlreadyExists) {
			return store.ErrAlreadyExists.Msg("receiver already has an introduction")
		}
		return aerr
	}
	return nil
}

func (s *Store) GetIntroduction(ctx context.Context, id uuid.UUID) (*store.Introduction, apperrors.Error) {
	return s.scanIntroduction(ctx, `
		SELECT id, scope_kind, scope_id, receiver_user_id, tutor_user_id, completed_at
		FROM introductions WHERE id = $1`, id)
}

func (s *Store) FindIntroduction(ctx context.Context, scope store.Scope, receiverUserID uuid.UUID) (*store.Introduction, apperrors.Error) {
	return s.scanIntroduction(ctx, `
		SELECT id, scope_kind, scope_id, receiver_user_id, tutor_user_id, completed_at
		FROM introductions WHERE scope_kind = $1 AND scope_id = $2 AND receiver_user_id = $3`,
		scope.Kind, scope.ID, receiverUserID)
}

func (s *Store) scanIntroduction(ctx context.Context, query string, args ...any) (*store.Introduction, apperrors.Error) {
	var i store.Introduction
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&i.ID, &i.Scope.Kind, &i.Scope.ID, &i.ReceiverUserID, &i.TutorUserID, &i.CompletedAt)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound.Msg("introduction not found"))
	}
	return &i, nil
}

func (s *Store) ListIntroductions(ctx context.Context, scope store.Scope) ([]store.Introduction, apperrors.Error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope_kind, scope_id, receiver_user_id, tutor_user_id, completed_at
		FROM introductions WHERE scope_kind = $1 AND scope_id = $2 ORDER BY id`,
		scope.Kind, scope.ID)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound)
	}
	defer rows.Close()
	out := []store.Introduction{}
	for rows.Next() {
		var i store.Introduction
		if err := rows.Scan(&i.ID, &i.Scope.Kind, &i.Scope.ID, &i.ReceiverUserID, &i.TutorUserID, &i.CompletedAt); err != nil {
			return nil, wrapErr(ctx, err, store.ErrNotFound)
		}
		out = append(out, i)
	}
	return out, wrapErr(ctx, rows.Err(), store.ErrNotFound)
}

func (s *Store) AppendHistory(ctx context.Context, item *store.IntroductionHistoryItem) apperrors.Error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO introduction_history (id, introduction_id, action, performed_by_user_id, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.IntroductionID, item.Action, item.PerformedByUserID, item.Comment, item.CreatedAt)
	return wrapErr(ctx, err, store.ErrNotFound.Msg("introduction not found"))
}

func (s *Store) ListHistory(ctx context.Context, introductionID uuid.UUID) ([]store.IntroductionHistoryItem, apperrors.Error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, introduction_id, action, performed_by_user_id, comment, created_at
		FROM introduction_history WHERE introduction_id = $1 ORDER BY created_at`,
		introductionID)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound)
	}
	defer rows.Close()
	out := []store.IntroductionHistoryItem{}
	for rows.Next() {
		var item store.IntroductionHistoryItem
		if err := rows.Scan(&item.ID, &item.IntroductionID, &item.Action, &item.PerformedByUserID, &item.Comment, &item.CreatedAt); err != nil {
			return nil, wrapErr(ctx, err, store.ErrNotFound)
		}
		out = append(out, item)
	}
	return out, wrapErr(ctx, rows.Err(), store.ErrNotFound)
}
