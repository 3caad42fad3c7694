package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/estimator/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const pgUniqueViolation = "23505"

// PostgresOptions configures the connection pool.
type PostgresOptions struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// PostgresStore is the Postgres-backed template store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ TemplateStore = (*PostgresStore)(nil)

// NewPostgresStore connects, verifies the connection and runs migrations.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = RunMigrations(db, DialectPostgres)
	db.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) GetTemplate(ctx context.Context, jobTypeID string) (*types.TemplateRow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM job_templates WHERE job_type_id = $1`, jobTypeID)

	tmpl, err := scanPostgresTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", jobTypeID, err)
	}
	return tmpl, nil
}

func (s *PostgresStore) InsertTemplate(ctx context.Context, row types.TemplateRow) error {
	cols, err := encodeColumns(row)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO job_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		row.ID, row.JobTypeID, row.TradeID, row.TradeName, row.JobTypeName,
		string(cols.BaseScope), string(cols.ScopeSections), string(cols.Options),
		row.BasePriceLow, row.BasePriceHigh, cols.estimatedDaysArg(), row.Warranty,
		string(cols.Exclusions), row.IsDefault, row.IsActive, row.CreatedBy,
		row.UsageCount, row.CreatedAt.UTC(), row.UpdatedAt.UTC(),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("insert template %s: %w", row.JobTypeID, ErrDuplicateTemplate)
	}
	if err != nil {
		return fmt.Errorf("insert template %s: %w", row.JobTypeID, err)
	}
	return nil
}

func (s *PostgresStore) SetTemplateActive(ctx context.Context, jobTypeID string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_templates SET is_active = $1, updated_at = now() WHERE job_type_id = $2`,
		active, jobTypeID)
	if err != nil {
		return fmt.Errorf("set template %s active: %w", jobTypeID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]types.TemplateRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM job_templates ORDER BY trade_id, job_type_id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []types.TemplateRow
	for rows.Next() {
		tmpl, err := scanPostgresTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		out = append(out, *tmpl)
	}
	return out, rows.Err()
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, jobTypeID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_templates SET usage_count = usage_count + 1 WHERE job_type_id = $1 AND is_active`,
		jobTypeID)
	if err != nil {
		return fmt.Errorf("increment usage %s: %w", jobTypeID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPostgresTemplate(sc pgx.Row) (*types.TemplateRow, error) {
	var (
		row  types.TemplateRow
		cols jsonColumns
	)
	err := sc.Scan(
		&row.ID, &row.JobTypeID, &row.TradeID, &row.TradeName, &row.JobTypeName,
		&cols.BaseScope, &cols.ScopeSections, &cols.Options, &row.BasePriceLow, &row.BasePriceHigh,
		&cols.EstimatedDays, &row.Warranty, &cols.Exclusions, &row.IsDefault, &row.IsActive, &row.CreatedBy,
		&row.UsageCount, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeColumns(&row, cols); err != nil {
		return nil, err
	}
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()
	return &row, nil
}
