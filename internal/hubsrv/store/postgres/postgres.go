// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver. Schema migrations are embedded and run with goose at startup.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	uniqueViolation = "23505"
	fkViolation     = "23503"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, "migrations")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// wrapErr maps driver errors onto store sentinels.
func wrapErr(ctx context.Context, err error, notFound apperrors.Error) apperrors.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return store.ErrAlreadyExists.Err(err)
		case fkViolation:
			return notFound
		}
	}
	log.Ctx(ctx).Error().Err(err).Msg("database error")
	return store.ErrStore.Err(err)
}
