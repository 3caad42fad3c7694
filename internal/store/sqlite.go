package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/estimator/internal/types"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore is the SQLite-backed template store.
type SQLiteStore struct {
	db *sql.DB
}

var _ TemplateStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db, DialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// DB exposes the underlying handle for migrations and diagnostics.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetTemplate returns the template row for a job-type id.
func (s *SQLiteStore) GetTemplate(ctx context.Context, jobTypeID string) (*types.TemplateRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM job_templates WHERE job_type_id = ?`, jobTypeID)

	tmpl, err := scanSQLiteTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", jobTypeID, err)
	}
	return tmpl, nil
}

// InsertTemplate writes a new template row.
func (s *SQLiteStore) InsertTemplate(ctx context.Context, row types.TemplateRow) error {
	cols, err := encodeColumns(row)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.JobTypeID, row.TradeID, row.TradeName, row.JobTypeName,
		string(cols.BaseScope), string(cols.ScopeSections), string(cols.Options),
		row.BasePriceLow, row.BasePriceHigh, cols.estimatedDaysArg(), row.Warranty,
		string(cols.Exclusions), boolToInt(row.IsDefault), boolToInt(row.IsActive), row.CreatedBy,
		row.UsageCount, formatTime(row.CreatedAt), formatTime(row.UpdatedAt),
	)
	if isSQLiteUniqueViolation(err) {
		return fmt.Errorf("insert template %s: %w", row.JobTypeID, ErrDuplicateTemplate)
	}
	if err != nil {
		return fmt.Errorf("insert template %s: %w", row.JobTypeID, err)
	}
	return nil
}

// SetTemplateActive sets is_active for a job-type id.
func (s *SQLiteStore) SetTemplateActive(ctx context.Context, jobTypeID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_templates SET is_active = ?, updated_at = ? WHERE job_type_id = ?`,
		boolToInt(active), formatTime(time.Now().UTC()), jobTypeID)
	if err != nil {
		return fmt.Errorf("set template %s active: %w", jobTypeID, err)
	}
	return requireOneRow(res)
}

// ListTemplates returns every template row ordered by trade then job type.
func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]types.TemplateRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM job_templates ORDER BY trade_id, job_type_id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []types.TemplateRow
	for rows.Next() {
		tmpl, err := scanSQLiteTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		out = append(out, *tmpl)
	}
	return out, rows.Err()
}

// IncrementUsage bumps usage_count on an active row. Inactive or missing rows yield ErrNotFound.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, jobTypeID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_templates SET usage_count = usage_count + 1 WHERE job_type_id = ? AND is_active = 1`,
		jobTypeID)
	if err != nil {
		return fmt.Errorf("increment usage %s: %w", jobTypeID, err)
	}
	return requireOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTemplate(sc rowScanner) (*types.TemplateRow, error) {
	var (
		row                  types.TemplateRow
		cols                 jsonColumns
		estimatedDays        sql.NullString
		isDefault, isActive  int
		createdAt, updatedAt string
	)
	var baseScope, sections, options, exclusions string
	err := sc.Scan(
		&row.ID, &row.JobTypeID, &row.TradeID, &row.TradeName, &row.JobTypeName,
		&baseScope, &sections, &options, &row.BasePriceLow, &row.BasePriceHigh,
		&estimatedDays, &row.Warranty, &exclusions, &isDefault, &isActive, &row.CreatedBy,
		&row.UsageCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	cols.BaseScope = []byte(baseScope)
	cols.ScopeSections = []byte(sections)
	cols.Options = []byte(options)
	cols.Exclusions = []byte(exclusions)
	if estimatedDays.Valid {
		cols.EstimatedDays = []byte(estimatedDays.String)
	}
	if err := decodeColumns(&row, cols); err != nil {
		return nil, err
	}

	row.IsDefault = isDefault != 0
	row.IsActive = isActive != 0
	if row.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if row.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &row, nil
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
