// Package sqlite provides a SQLite-backed questionnaire storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/alranel/GlobaLeaks/internal/platform/id"
	sqlitemigrate "github.com/alranel/GlobaLeaks/internal/platform/storage/sqlitemigrate"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/storage"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists questionnaire state in SQLite.
type Store struct {
	sqlDB       *sql.DB
	clock       func() time.Time
	idGenerator func() (string, error)
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite questionnaire store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{
		sqlDB:       sqlDB,
		clock:       time.Now,
		idGenerator: id.NewID,
	}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) now() time.Time {
	if s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) newID() (string, error) {
	if s.idGenerator != nil {
		return s.idGenerator()
	}
	return id.NewID()
}

// withTx runs fn inside one transaction, rolling back on any error.
func (s *Store) withTx(ctx context.Context, label string, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", label, err)
	}
	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback %s: %v", err, label, rollbackErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", label, err)
	}
	return nil
}

var (
	_ storage.StepStore  = (*Store)(nil)
	_ storage.FieldStore = (*Store)(nil)
)
