// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	ledgerDir  = ".xsfetch"
	ledgerFile = "ledger.db"
)

// Record is one completed download.
type Record struct {
	LocalFile    string
	URL          string
	Library      string
	Size         int64
	Digest       string // BLAKE3, hex encoded
	DownloadedAt time.Time
}

// Ledger records completed downloads in a SQLite database kept in the
// destination directory. It backs the size and digest skip checks.
type Ledger struct {
	db *sql.DB
}

// LedgerPath returns the ledger location for a destination directory.
func LedgerPath(destination string) string {
	return filepath.Join(destination, ledgerDir, ledgerFile)
}

// OpenLedger opens or creates the ledger for destination.
func OpenLedger(destination string) (*Ledger, error) {
	path := LedgerPath(destination)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// Workers share one connection; sqlite serialises writers anyway.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS downloads (
			local_file TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			library TEXT NOT NULL,
			size INTEGER NOT NULL,
			digest TEXT NOT NULL,
			downloaded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_library ON downloads(library)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces the record for rec.LocalFile.
func (l *Ledger) Put(ctx context.Context, rec Record) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO downloads (local_file, url, library, size, digest, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.LocalFile, rec.URL, rec.Library, rec.Size, rec.Digest,
		rec.DownloadedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", rec.LocalFile, err)
	}
	return nil
}

// Get returns the record for localFile. ok is false when none exists.
func (l *Ledger) Get(ctx context.Context, localFile string) (rec Record, ok bool, err error) {
	var at string
	err = l.db.QueryRowContext(ctx,
		`SELECT local_file, url, library, size, digest, downloaded_at FROM downloads WHERE local_file = ?`,
		localFile,
	).Scan(&rec.LocalFile, &rec.URL, &rec.Library, &rec.Size, &rec.Digest, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading ledger record %s: %w", localFile, err)
	}
	if t, parseErr := time.Parse(time.RFC3339Nano, at); parseErr == nil {
		rec.DownloadedAt = t
	}
	return rec, true, nil
}

// Delete removes the record for localFile, if any.
func (l *Ledger) Delete(ctx context.Context, localFile string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM downloads WHERE local_file = ?`, localFile); err != nil {
		return fmt.Errorf("deleting ledger record %s: %w", localFile, err)
	}
	return nil
}

// Records returns every record ordered by local file name.
func (l *Ledger) Records(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT local_file, url, library, size, digest, downloaded_at FROM downloads ORDER BY local_file`)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var at string
		if err := rows.Scan(&rec.LocalFile, &rec.URL, &rec.Library, &rec.Size, &rec.Digest, &at); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, at); parseErr == nil {
			rec.DownloadedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
