// Package journal records every resolution in a SQLite database so past
// runs can be audited by ISBN.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lehigh-university-libraries/lccn-finder/internal/journal/migrations"
	"github.com/lehigh-university-libraries/lccn-finder/internal/lccn"
	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

const timeLayout = time.RFC3339Nano

// Journal is the resolution history database.
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Entry is one recorded resolution.
type Entry struct {
	ID         int64
	RunID      string
	ISBN       string
	Title      string
	LCCN       string
	Link       string
	Verified   bool
	Score      int
	Strategies []string
	CreatedAt  time.Time
	Attempts   []Attempt
}

// Run is one recorded enrichment run. FinishedAt is zero while the run is in
// progress or when the process died before finishing it.
type Run struct {
	ID         string
	InputPath  string
	StartedAt  time.Time
	FinishedAt time.Time
	Books      int
	Found      int
}

// Attempt is one recorded search of a resolution.
type Attempt struct {
	Strategy   string
	Query      string
	Results    int
	Candidates []lccn.Candidate
}

// Open creates or upgrades the journal at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path, now: time.Now}
	if err := j.migrate(context.Background(), migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Path returns the database file.
func (j *Journal) Path() string {
	return j.path
}

// migrate applies pending NNN_name.up.sql files in order.
func (j *Journal) migrate(ctx context.Context, fsys fs.FS) error {
	if _, err := j.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := j.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, j.now().UTC().Format(timeLayout)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// StartRun registers a run over inputPath and returns its id.
func (j *Journal) StartRun(ctx context.Context, inputPath string) (string, error) {
	id := uuid.NewString()
	if _, err := j.db.ExecContext(ctx,
		"INSERT INTO runs (id, input_path, started_at) VALUES (?, ?, ?)",
		id, inputPath, j.now().UTC().Format(timeLayout)); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end of a run with its totals.
func (j *Journal) FinishRun(ctx context.Context, runID string, books, found int) error {
	res, err := j.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, books = ?, found = ? WHERE id = ?",
		j.now().UTC().Format(timeLayout), books, found, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// Runs returns the recorded runs, newest first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, input_path, started_at, finished_at, books, found
		FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.InputPath, &startedAt, &finishedAt, &r.Books, &r.Found); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if finishedAt.Valid {
			r.FinishedAt, _ = time.Parse(timeLayout, finishedAt.String)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RecordResolution stores the outcome of resolving book, including every
// search attempted.
func (j *Journal) RecordResolution(ctx context.Context, runID string, book *models.Book, res *lccn.Resolution) error {
	strategies := make([]string, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		strategies = append(strategies, a.Strategy.String())
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolution tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO resolutions (run_id, isbn, title, lccn, link, verified, score, strategies, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, book.ISBN, book.Title, res.LCCN, res.Link, res.Verified, int(res.Score),
		strings.Join(strategies, ","), j.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert resolution: %w", err)
	}
	resolutionID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("resolution id: %w", err)
	}

	for i, a := range res.Attempts {
		candidates := a.Candidates
		if candidates == nil {
			candidates = []lccn.Candidate{}
		}
		encoded, err := json.Marshal(candidates)
		if err != nil {
			return fmt.Errorf("encode candidates: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attempts (resolution_id, seq, strategy, query, results, candidates)
			VALUES (?, ?, ?, ?, ?, ?)`,
			resolutionID, i, a.Strategy.String(), a.Query, a.Results, string(encoded)); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolution: %w", err)
	}
	return nil
}

// History returns the recorded resolutions of isbn, newest first.
func (j *Journal) History(ctx context.Context, isbn string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, isbn, title, lccn, link, verified, score, strategies, created_at
		FROM resolutions WHERE isbn = ? ORDER BY id DESC`, isbn)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			strategies string
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.ISBN, &e.Title, &e.LCCN, &e.Link, &e.Verified, &e.Score, &strategies, &createdAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if strategies != "" {
			e.Strategies = strings.Split(strategies, ",")
		}
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	_ = rows.Close()

	for i := range entries {
		attempts, err := j.attempts(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Attempts = attempts
	}
	return entries, nil
}

func (j *Journal) attempts(ctx context.Context, resolutionID int64) ([]Attempt, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT strategy, query, results, candidates
		FROM attempts WHERE resolution_id = ? ORDER BY seq`, resolutionID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a          Attempt
			candidates string
		)
		if err := rows.Scan(&a.Strategy, &a.Query, &a.Results, &candidates); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(candidates), &a.Candidates); err != nil {
			return nil, fmt.Errorf("decode candidates: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
