package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the single-writer SQLite backing store for the normalized
// email corpus.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and initializes
// the schema. Failure here is fatal to the run.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection; the pipeline is a
	// single logical writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a new write batch. All inserts and upserts run inside a
// batch; Commit makes them durable together.
func (s *Store) Begin() (*Batch, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch: %w", err)
	}
	return &Batch{tx: tx}, nil
}

// Batch groups all writes between two commit points in one transaction.
// A batch is the unit of atomicity: a crash mid-batch loses only its
// uncommitted rows, and every insert path is idempotent on re-run.
type Batch struct {
	tx *sqlx.Tx
}

// Commit makes the batch durable.
func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Rollback discards the batch. Safe to call after Commit.
func (b *Batch) Rollback() error {
	return b.tx.Rollback()
}

// TableCounts reports row counts across the four corpus tables.
type TableCounts struct {
	Persons    int64
	Domains    int64
	Emails     int64
	Recipients int64
}

// Counts returns current row counts, mainly for summaries and
// idempotence checks.
func (s *Store) Counts() (TableCounts, error) {
	var c TableCounts
	queries := []struct {
		table string
		dest  *int64
	}{
		{"persons", &c.Persons},
		{"domains", &c.Domains},
		{"emails", &c.Emails},
		{"email_recipients", &c.Recipients},
	}
	for _, q := range queries {
		if err := s.db.Get(q.dest, "SELECT COUNT(*) FROM "+q.table); err != nil {
			return TableCounts{}, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	return c, nil
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
