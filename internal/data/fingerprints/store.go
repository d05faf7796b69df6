package fingerprints

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	// Fixed-width UTC layout so timestamps sort as text.
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("fingerprint history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("fingerprint history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL keep watch-mode verification from tripping over CLI runs.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record persists a run and its records in one transaction.
func (s *Store) Record(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := uuid.Parse(run.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	runTS := run.Timestamp.UTC().Format(tsLayout)

	return s.withRetry("record run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO runs (run_id, ts_utc, grammars_path, issue_count) VALUES (?, ?, ?, ?)`,
			run.ID, runTS, run.GrammarsPath, run.IssueCount,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, rec := range run.Records {
			ts := rec.Timestamp
			if ts.IsZero() {
				ts = run.Timestamp
			}
			if _, err := tx.Exec(`
INSERT INTO fingerprints (
  run_id, language, abi_version, symbol_count, field_count, production_count,
  fingerprint, artifact_hash, ts_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, rec.Language, rec.ABIVersion, rec.SymbolCount, rec.FieldCount, rec.ProductionCount,
				rec.Fingerprint, rec.ArtifactHash, ts.UTC().Format(tsLayout),
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

const selectRecord = `
SELECT run_id, language, abi_version, symbol_count, field_count, production_count,
  fingerprint, artifact_hash, ts_utc
FROM fingerprints
`

// Latest returns the most recent record of a language.
func (s *Store) Latest(language string) (Record, bool, error) {
	records, err := s.List(language, 1)
	if err != nil || len(records) == 0 {
		return Record{}, false, err
	}
	return records[0], true, nil
}

// List returns the records of a language, newest first. limit <= 0 means all.
func (s *Store) List(language string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := selectRecord + " WHERE language = ? ORDER BY ts_utc DESC, id DESC"
	args := []any{strings.ToLower(strings.TrimSpace(language))}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list fingerprints", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			rec   Record
			tsRaw string
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Language,
			&rec.ABIVersion,
			&rec.SymbolCount,
			&rec.FieldCount,
			&rec.ProductionCount,
			&rec.Fingerprint,
			&rec.ArtifactHash,
			&tsRaw,
		); err != nil {
			return nil, fmt.Errorf("scan fingerprint row: %w", err)
		}
		ts, err := time.Parse(tsLayout, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse fingerprint timestamp %q: %w", tsRaw, err)
		}
		rec.Timestamp = ts.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprint rows: %w", err)
	}
	return records, nil
}

// Drift compares current records against the latest persisted ones. Languages
// with no history are not reported.
func (s *Store) Drift(current []Record) ([]Drift, error) {
	var drift []Drift
	for _, rec := range current {
		prev, ok, err := s.Latest(rec.Language)
		if err != nil {
			return nil, err
		}
		if ok && prev.Fingerprint != rec.Fingerprint {
			drift = append(drift, Drift{Language: rec.Language, Previous: prev, Current: rec})
		}
	}
	return drift, nil
}

// Prune deletes runs older than cutoff and returns how many were removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	err := s.withRetry("prune runs", func() error {
		res, err := s.db.Exec(`DELETE FROM runs WHERE ts_utc < ?`, cutoff.UTC().Format(tsLayout))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
