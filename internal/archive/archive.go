// Package archive keeps a local SQLite index of past runs and their papers,
// backing the status and serve commands. The JSON batch files remain the
// source of truth; the archive is a queryable view over them.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

// DB wraps the archive database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the archive database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Run is one recorded pipeline run.
type Run struct {
	Date       string
	Source     string
	PaperCount int
	Failed     int
	CreatedAt  string
}

// RecordRun stores run metadata and the enriched papers for a date,
// replacing any earlier record for the same date so re-runs stay idempotent.
func (db *DB) RecordRun(date time.Time, source string, batch paper.Batch, failed int, reportMarkdown string) error {
	day := date.Format("2006-01-02")

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM papers WHERE run_date = ?", day); err != nil {
		return fmt.Errorf("clearing papers: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO runs (date, source, paper_count, failed_count, report_markdown)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			source = excluded.source,
			paper_count = excluded.paper_count,
			failed_count = excluded.failed_count,
			report_markdown = excluded.report_markdown,
			created_at = datetime('now')`,
		day, source, batch.Count(), failed, reportMarkdown,
	); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	for category, records := range batch {
		for _, r := range records {
			if _, err := tx.Exec(
				`INSERT INTO papers (paper_id, run_date, category, title, classifier, tldr, keywords, updated)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(paper_id) DO UPDATE SET
					run_date = excluded.run_date,
					category = excluded.category,
					title = excluded.title,
					classifier = excluded.classifier,
					tldr = excluded.tldr,
					keywords = excluded.keywords,
					updated = excluded.updated`,
				r.ID, day, category, r.Title, r.PrimaryClassifier(), r.TLDR,
				strings.Join(r.Keywords, ", "), r.Updated.Format(time.RFC3339),
			); err != nil {
				return fmt.Errorf("recording paper %s: %w", r.ID, err)
			}
		}
	}

	return tx.Commit()
}

// GetRun returns the run recorded for a date, or nil if none exists.
func (db *DB) GetRun(date string) (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT date, source, paper_count, failed_count, created_at FROM runs WHERE date = ?`, date,
	)
	var r Run
	err := row.Scan(&r.Date, &r.Source, &r.PaperCount, &r.Failed, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns all recorded runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.conn.Query(
		`SELECT date, source, paper_count, failed_count, created_at FROM runs ORDER BY date DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.Date, &r.Source, &r.PaperCount, &r.Failed, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetReportMarkdown returns the stored report body for a date, or "" if the
// date has no run.
func (db *DB) GetReportMarkdown(date string) (string, error) {
	row := db.conn.QueryRow(`SELECT report_markdown FROM runs WHERE date = ?`, date)
	var body string
	err := row.Scan(&body)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return body, err
}

// Stats summarizes the archive contents.
type Stats struct {
	Runs           int
	Papers         int
	FailedPapers   int
	FirstRun       string
	LastRun        string
	TopClassifiers []ClassifierCount
}

// ClassifierCount is one classifier with its paper count.
type ClassifierCount struct {
	Label string
	Count int
}

// GetStats computes archive statistics for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	row := db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(MIN(date), ''), COALESCE(MAX(date), '') FROM runs`,
	)
	if err := row.Scan(&s.Runs, &s.FirstRun, &s.LastRun); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM papers`).Scan(&s.Papers); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM papers WHERE classifier = 'error'`,
	).Scan(&s.FailedPapers); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		`SELECT classifier, COUNT(*) AS n FROM papers
		WHERE classifier != '' AND classifier != 'error'
		GROUP BY classifier ORDER BY n DESC LIMIT 10`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c ClassifierCount
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, err
		}
		s.TopClassifiers = append(s.TopClassifiers, c)
	}
	return s, rows.Err()
}
