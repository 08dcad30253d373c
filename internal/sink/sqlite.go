package sink

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteConfig holds archive database configuration.
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
}

// DefaultSQLiteConfig returns default archive configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:         "./data/telemetry.db",
		MaxOpenConns: 1, // SQLite doesn't handle concurrent writes well
	}
}

// SQLiteSink archives every record of every batch into telemetry_records.
type SQLiteSink struct {
	DB   *sql.DB
	Path string
}

// NewSQLiteSink opens (creating if needed) the archive and applies the
// embedded schema.
func NewSQLiteSink(cfg SQLiteConfig) (*SQLiteSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite archive path is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteSink{DB: db, Path: cfg.Path}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) initializeSchema() error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.DB.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

// Send inserts the batch in one transaction.
func (s *SQLiteSink) Send(ctx context.Context, dataset string, set model.EntitySet) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO telemetry_records
			(dataset, identity, kind, timestamp_ms, x, y, z, attrs)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i := range set.Entities {
			e := &set.Entities[i]
			attrs, err := json.Marshal(e.Attrs)
			if err != nil {
				return fmt.Errorf("encode attrs of %q: %w", e.Identity, err)
			}
			pos := e.Position()
			if _, err := stmt.ExecContext(ctx, dataset, e.Identity, e.Kind, e.TimestampMs,
				pos.X, pos.Y, pos.Z, string(attrs)); err != nil {
				return fmt.Errorf("insert %q: %w", e.Identity, err)
			}
		}
		return nil
	})
}

// Count returns the number of archived records for dataset.
func (s *SQLiteSink) Count(ctx context.Context, dataset string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM telemetry_records WHERE dataset = ?`, dataset).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *SQLiteSink) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
