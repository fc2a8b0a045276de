package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/lorecrawl/internal/model"
)

// FileName is the ledger database file name inside the ledger directory.
const FileName = "lorecrawl.db"

// timeLayout is how timestamps are stored. Fixed width UTC so that string
// comparison in SQL orders correctly.
const timeLayout = "2006-01-02 15:04:05.000000"

// ErrLedgerNotFound is returned when opening a ledger that does not exist
// without CreateIfNotExists.
var ErrLedgerNotFound = errors.New("ledger not found")

// Ledger records fetched documents and finished runs.
type Ledger struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now returns the current time. Replaced in tests.
	now func() time.Time
}

// Options configures Ledger behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default ledger options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the ledger in dir.
func Open(dir string, opts Options) (*Ledger, error) {
	dbPath := filepath.Join(dir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLedgerNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check ledger path: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := l.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return l, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (l *Ledger) createTables() error {
	schema := `
	-- One row per cached document, replaced on every fetch
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		url TEXT NOT NULL,
		digest TEXT NOT NULL,
		size INTEGER NOT NULL,
		fetched_at TEXT NOT NULL,
		UNIQUE(kind, key)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_fetched ON documents(fetched_at);

	-- One row per finished run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mode TEXT NOT NULL,
		cache_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		category_count INTEGER NOT NULL,
		article_count INTEGER NOT NULL,
		exported_categories INTEGER NOT NULL,
		exported_articles INTEGER NOT NULL,
		fetches INTEGER NOT NULL,
		outputs TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// Digest returns the hex SHA3-256 digest of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DocumentRecord describes one fetched document.
type DocumentRecord struct {
	Kind      string
	Key       string
	URL       string
	Digest    string
	Size      int64
	FetchedAt time.Time
}

// NewDocumentRecord builds a record for data fetched from url now.
func NewDocumentRecord(kind, key, url string, data []byte) *DocumentRecord {
	return &DocumentRecord{
		Kind:   kind,
		Key:    key,
		URL:    url,
		Digest: Digest(data),
		Size:   int64(len(data)),
	}
}

// RecordDocument inserts or replaces the record for (kind, key).
// A zero FetchedAt is set to the current time.
func (l *Ledger) RecordDocument(ctx context.Context, rec *DocumentRecord) error {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = l.now()
	}

	query := `
	INSERT INTO documents (kind, key, url, digest, size, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(kind, key) DO UPDATE SET
		url = excluded.url,
		digest = excluded.digest,
		size = excluded.size,
		fetched_at = excluded.fetched_at
	`

	_, err := l.db.ExecContext(ctx, query,
		rec.Kind,
		rec.Key,
		rec.URL,
		rec.Digest,
		rec.Size,
		formatTimestamp(rec.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record document %s/%s: %w", rec.Kind, rec.Key, err)
	}
	return nil
}

// GetDocument returns the record for (kind, key), or nil when there is none.
func (l *Ledger) GetDocument(ctx context.Context, kind, key string) (*DocumentRecord, error) {
	query := `
	SELECT kind, key, url, digest, size, fetched_at
	FROM documents
	WHERE kind = ? AND key = ?
	`

	var rec DocumentRecord
	var fetchedAt string
	err := l.db.QueryRowContext(ctx, query, kind, key).Scan(
		&rec.Kind,
		&rec.Key,
		&rec.URL,
		&rec.Digest,
		&rec.Size,
		&fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", kind, key, err)
	}
	rec.FetchedAt = parseTimestamp(fetchedAt)
	return &rec, nil
}

// HasRecentFetch reports whether (kind, key) was fetched within maxAge.
func (l *Ledger) HasRecentFetch(ctx context.Context, kind, key string, maxAge time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM documents
	WHERE kind = ? AND key = ? AND fetched_at > ?
	`

	cutoff := formatTimestamp(l.now().Add(-maxAge))

	var count int
	if err := l.db.QueryRowContext(ctx, query, kind, key, cutoff).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent fetch: %w", err)
	}
	return count > 0, nil
}

// RunRecord is a stored run summary.
type RunRecord struct {
	ID                 int64     `json:"id"`
	Mode               string    `json:"mode"`
	CacheDir           string    `json:"cache_dir"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	CategoryCount      int       `json:"category_count"`
	ArticleCount       int       `json:"article_count"`
	ExportedCategories int       `json:"exported_categories"`
	ExportedArticles   int       `json:"exported_articles"`
	Fetches            int       `json:"fetches"`
	Outputs            []string  `json:"outputs,omitempty"`
	Error              string    `json:"error,omitempty"`
}

// Succeeded reports whether the run finished without error.
func (r *RunRecord) Succeeded() bool {
	return r.Error == ""
}

// Duration returns the elapsed run time.
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveRun stores a finished run and returns its id.
func (l *Ledger) SaveRun(ctx context.Context, report *model.RunReport) (int64, error) {
	outputsJSON, err := json.Marshal(report.Outputs)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize outputs: %w", err)
	}

	finished := report.FinishedAt
	if finished.IsZero() {
		finished = l.now()
	}

	errMsg := report.ErrorMessage
	if errMsg == "" && report.Error != nil {
		errMsg = report.Error.Error()
	}

	query := `
	INSERT INTO runs (mode, cache_dir, started_at, finished_at, category_count, article_count,
		exported_categories, exported_articles, fetches, outputs, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := l.db.ExecContext(ctx, query,
		report.Mode.String(),
		report.CacheDir,
		formatTimestamp(report.StartedAt),
		formatTimestamp(finished),
		report.CategoryCount,
		report.ArticleCount,
		report.ExportedCategories,
		report.ExportedArticles,
		report.Fetches,
		string(outputsJSON),
		errMsg,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return result.LastInsertId()
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns every run.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, mode, cache_dir, started_at, finished_at, category_count, article_count,
		exported_categories, exported_articles, fetches, outputs, error
	FROM runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun reads one runs row.
func scanRun(rows *sql.Rows) (*RunRecord, error) {
	var run RunRecord
	var startedAt, finishedAt string
	var outputs, errMsg sql.NullString

	if err := rows.Scan(
		&run.ID,
		&run.Mode,
		&run.CacheDir,
		&startedAt,
		&finishedAt,
		&run.CategoryCount,
		&run.ArticleCount,
		&run.ExportedCategories,
		&run.ExportedArticles,
		&run.Fetches,
		&outputs,
		&errMsg,
	); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	run.Error = errMsg.String
	if outputs.Valid && outputs.String != "" {
		if err := json.Unmarshal([]byte(outputs.String), &run.Outputs); err != nil {
			run.Outputs = nil
		}
	}
	return &run, nil
}

// formatTimestamp renders t for storage.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats accepted when reading.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	time.RFC3339Nano,
}

// parseTimestamp parses a stored timestamp as UTC. Unparseable values
// yield the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}
