package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

func (s *Store) CreateResource(ctx context.Context, r *store.Resource) apperrors.Error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, name, description, group_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Name, r.Description, r.GroupID, r.CreatedAt, r.UpdatedAt)
	return wrapErr(ctx, err, store.ErrNotFound.Msg("resource not found"))
}

func (s *Store) GetResource(ctx context.Context, id uuid.UUID) (*store.Resource, apperrors.Error) {
	var r store.Resource
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, group_id, created_at, updated_at
		FROM resources WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Description, &r.GroupID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound.Msg("resource not found"))
	}
	return &r, nil
}

func (s *Store) UpdateResource(ctx context.Context, r *store.Resource) apperrors.Error {
	r.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE resources SET name = $2, description = $3, group_id = $4, updated_at = $5
		WHERE id = $1`,
		r.ID, r.Name, r.Description, r.GroupID, r.UpdatedAt)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound.Msg("resource not found"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound.Msg("resource not found")
	}
	return nil
}

func (s *Store) DeleteResource(ctx context.Context, id uuid.UUID) apperrors.Error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	defer tx.Rollback()

	// FK cascades cover sessions and notification configs; introducer and
	// introduction rows are scope-addressed and need explicit cleanup.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM introduction_history WHERE introduction_id IN
			(SELECT id FROM introductions WHERE scope_kind = $1 AND scope_id = $2)`,
		store.ScopeResource, id); err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM introductions WHERE scope_kind = $1 AND scope_id = $2`,
		store.ScopeResource, id); err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM introducers WHERE scope_kind = $1 AND scope_id = $2`,
		store.ScopeResource, id); err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound.Msg("resource not found")
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListResources(ctx context.Context, page, limit int) ([]store.Resource, apperrors.Error) {
	if limit <= 0 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, group_id, created_at, updated_at
		FROM resources ORDER BY created_at
		LIMIT $1 OFFSET $2`, limit, (page-1)*limit)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound)
	}
	defer rows.Close()
	out := []store.Resource{}
	for rows.Next() {
		var r store.Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.GroupID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, wrapErr(ctx, err, store.ErrNotFound)
		}
		out = append(out, r)
	}
	return out, wrapErr(ctx, rows.Err(), store.ErrNotFound)
}

func (s *Store) CreateGroup(ctx context.Context, g *store.ResourceGroup) apperrors.Error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resource_groups (id, name, created_at) VALUES ($1, $2, $3)`,
		g.ID, g.Name, g.CreatedAt)
	return wrapErr(ctx, err, store.ErrNotFound)
}

func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*store.ResourceGroup, apperrors.Error) {
	var g store.ResourceGroup
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM resource_groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound.Msg("resource group not found"))
	}
	return &g, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) apperrors.Error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM introduction_history WHERE introduction_id IN
			(SELECT id FROM introductions WHERE scope_kind = $1 AND scope_id = $2)`,
		store.ScopeGroup, id); err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM introductions WHERE scope_kind = $1 AND scope_id = $2`,
		store.ScopeGroup, id); err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM introducers WHERE scope_kind = $1 AND scope_id = $2`,
		store.ScopeGroup, id); err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM resource_groups WHERE id = $1`, id)
	if err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound.Msg("resource group not found")
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(ctx, err, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]store.ResourceGroup, apperrors.Error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM resource_groups ORDER BY created_at`)
	if err != nil {
		return nil, wrapErr(ctx, err, store.ErrNotFound)
	}
	defer rows.Close()
	out := []store.ResourceGroup{}
	for rows.Next() {
		var g store.ResourceGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, wrapErr(ctx, err, store.ErrNotFound)
		}
		out = append(out, g)
	}
	return out, wrapErr(ctx, rows.Err(), store.ErrNotFound)
}
