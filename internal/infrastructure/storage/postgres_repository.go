package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"CrewPublisher/internal/domain"
	"CrewPublisher/internal/ports"
)

const publicationsTable = "publications"

// Schema creates the publication log table when it is missing.
const Schema = `CREATE TABLE IF NOT EXISTS publications (
    id             BIGSERIAL PRIMARY KEY,
    run_id         TEXT        NOT NULL,
    slug           TEXT        NOT NULL,
    title          TEXT        NOT NULL,
    file_name      TEXT        NOT NULL,
    commit_message TEXT        NOT NULL,
    status         TEXT        NOT NULL,
    error          TEXT        NOT NULL DEFAULT '',
    published_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists publication attempts into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.PublicationRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the publications table.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SlugExists reports whether a successful publication already used slug.
func (r *PostgresRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	if r.db == nil {
		return false, nil
	}

	query, args, err := slugExistsQuery(slug)
	if err != nil {
		return false, fmt.Errorf("build slug query: %w", err)
	}

	var found int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query slug: %w", err)
	}
	return true, nil
}

// SavePublication appends the publication attempt to the log.
func (r *PostgresRepository) SavePublication(ctx context.Context, publication domain.Publication) error {
	if r.db == nil {
		return nil
	}

	query, args, err := insertPublicationQuery(publication)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert publication: %w", err)
	}
	return nil
}

func slugExistsQuery(slug string) (string, []any, error) {
	return psql.Select("1").
		From(publicationsTable).
		Where(sq.Eq{"slug": slug, "status": string(domain.StatusPublished)}).
		Limit(1).
		ToSql()
}

func insertPublicationQuery(p domain.Publication) (string, []any, error) {
	publishedAt := p.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now().UTC()
	}
	return psql.Insert(publicationsTable).
		Columns("run_id", "slug", "title", "file_name", "commit_message", "status", "error", "published_at").
		Values(p.RunID, p.Slug, p.Title, p.FileName, p.CommitMessage, string(p.Status), p.Error, publishedAt).
		ToSql()
}
