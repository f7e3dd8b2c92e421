// Package reference persists reference distributions per signal. The rank
// pipeline draws its populations from here when a request does not carry a
// distribution inline.
package reference

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a sqlite-backed reference distribution store. It implements
// score.ReferenceSource.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the reference database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "reference.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open reference database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Reference store opened", "path", dbPath)
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reference_values (
		signal_id TEXT NOT NULL,
		value     REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reference_signal
		ON reference_values (signal_id, value);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate reference schema: %w", err)
	}
	return nil
}

// Reference returns the stored distribution for a signal in ascending order.
// An unknown signal yields an empty distribution, which the engine treats as
// insufficient data.
func (s *Store) Reference(ctx context.Context, signalID string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM reference_values WHERE signal_id = ? ORDER BY value`, signalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference values for %s: %w", signalID, err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan reference value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reference values for %s: %w", signalID, err)
	}
	return values, nil
}

// Replace swaps the stored distribution for a signal atomically.
func (s *Store) Replace(ctx context.Context, signalID string, values []float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reference_values WHERE signal_id = ?`, signalID); err != nil {
		return fmt.Errorf("failed to clear reference values for %s: %w", signalID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO reference_values (signal_id, value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, signalID, v); err != nil {
			return fmt.Errorf("failed to insert reference value for %s: %w", signalID, err)
		}
	}
	return tx.Commit()
}

// Append adds one observation to a signal's distribution.
func (s *Store) Append(ctx context.Context, signalID string, value float64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO reference_values (signal_id, value) VALUES (?, ?)`, signalID, value); err != nil {
		return fmt.Errorf("failed to append reference value for %s: %w", signalID, err)
	}
	return nil
}

// PopulationSize reports how many observations a signal's distribution holds.
func (s *Store) PopulationSize(ctx context.Context, signalID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reference_values WHERE signal_id = ?`, signalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reference values for %s: %w", signalID, err)
	}
	return n, nil
}

// HealthCheck pings the underlying database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
