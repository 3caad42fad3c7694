package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/hyperengineering/estimator/migrations"
	"github.com/pressly/goose/v3"
)

// Supported dialects. Each maps to a directory in the migrations FS.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

// RunMigrations applies all pending migrations for the dialect using goose.
// It uses the embedded SQL files from the migrations package.
func RunMigrations(db *sql.DB, dialect string) error {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, dialect); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// SchemaVersion reports the applied goose version.
func SchemaVersion(db *sql.DB, dialect string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}
