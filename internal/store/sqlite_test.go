package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "templates.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	runTemplateStoreTests(t, func(t *testing.T) TemplateStore {
		return newTestSQLiteStore(t)
	})
}

func TestNewSQLiteStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "templates.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestSQLiteStore_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := s.InsertTemplate(ctx, sampleRow("tub-to-shower")); err != nil {
		t.Fatalf("InsertTemplate() error = %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	if _, err := s.GetTemplate(ctx, "tub-to-shower"); err != nil {
		t.Errorf("GetTemplate() after reopen error = %v", err)
	}
}

func TestSQLiteStore_RejectsInvertedPriceRange(t *testing.T) {
	s := newTestSQLiteStore(t)
	row := sampleRow("tub-to-shower")
	row.BasePriceLow, row.BasePriceHigh = 12000, 8500

	err := s.InsertTemplate(context.Background(), row)
	if err == nil {
		t.Fatal("InsertTemplate() error = nil, want CHECK violation")
	}
	if errors.Is(err, ErrDuplicateTemplate) {
		t.Error("CHECK violation reported as duplicate")
	}
}

func TestIsSQLiteUniqueViolation(t *testing.T) {
	if isSQLiteUniqueViolation(nil) {
		t.Error("nil error reported as unique violation")
	}
	if !isSQLiteUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: job_templates.job_type_id (2067)")) {
		t.Error("message fallback not recognised")
	}
	if isSQLiteUniqueViolation(errors.New("CHECK constraint failed")) {
		t.Error("CHECK violation reported as unique violation")
	}
}
