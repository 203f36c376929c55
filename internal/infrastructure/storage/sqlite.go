package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/crypto_intel/internal/domain"
)

// JournalStore is a bounded error journal backed by SQLite. Only the newest
// maxEntries rows are kept.
type JournalStore struct {
	db         *sql.DB
	maxEntries int
}

func NewJournalStore(dsn string, maxEntries int) (*JournalStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if maxEntries < 1 {
		maxEntries = 500
	}
	store := &JournalStore{db: db, maxEntries: maxEntries}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *JournalStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS error_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			details TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_error_log_type ON error_log(type);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// Append stores entry, sets its ID and trims the journal to its bound.
func (s *JournalStore) Append(ctx context.Context, entry *domain.ErrorLogEntry) error {
	var details sql.NullString
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO error_log (type, severity, message, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.Type, string(entry.Severity), entry.Message, details, entry.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read entry id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM error_log WHERE id NOT IN (
			SELECT id FROM error_log ORDER BY id DESC LIMIT ?
		)`, s.maxEntries); err != nil {
		return fmt.Errorf("failed to rotate journal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entry: %w", err)
	}
	entry.ID = id
	return nil
}

// Recent returns at most limit of the newest entries, oldest first.
func (s *JournalStore) Recent(ctx context.Context, limit int) ([]*domain.ErrorLogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, severity, message, details, created_at FROM (
			SELECT * FROM error_log ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ErrorLogEntry
	for rows.Next() {
		var (
			e         domain.ErrorLogEntry
			severity  string
			details   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Type, &severity, &e.Message, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Severity = domain.Severity(severity)
		e.Timestamp = time.Unix(0, createdAt)
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details of entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *JournalStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM error_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (s *JournalStore) Close() error {
	return s.db.Close()
}
