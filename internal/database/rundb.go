package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/uiprobe/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "uiprobe.db"

// Artifact names whose digests are stored in their own columns.
const (
	resultsArtifact    = "results"
	rawResultsArtifact = "raw_results"
)

// sortableTime formats timestamps so that lexical order is time order.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

// RunDB provides SQLite-based storage for verification runs.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		target TEXT NOT NULL,
		scenario TEXT,
		driver TEXT,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER,
		results_digest TEXT,
		raw_results_digest TEXT,
		run_json TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished run and returns its database ID.
// Saving a run with an ID that is already stored replaces the stored copy.
func (rdb *RunDB) SaveRun(ctx context.Context, report *model.RunReport) (int64, error) {
	if report == nil {
		return 0, errors.New("report is nil")
	}

	runJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run: %w", err)
	}

	query := `
	INSERT INTO runs (run_id, target, scenario, driver, status, started_at, duration_ms,
		results_digest, raw_results_digest, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		status = excluded.status,
		duration_ms = excluded.duration_ms,
		results_digest = excluded.results_digest,
		raw_results_digest = excluded.raw_results_digest,
		run_json = excluded.run_json,
		timestamp = CURRENT_TIMESTAMP
	`

	if _, err := rdb.db.ExecContext(ctx, query,
		report.ID,
		report.TargetURL,
		report.Scenario,
		report.Driver,
		report.Status.String(),
		report.StartedAt.UTC().Format(sortableTime),
		report.Duration().Milliseconds(),
		artifactDigest(report, resultsArtifact),
		artifactDigest(report, rawResultsArtifact),
		string(runJSON),
	); err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	// LastInsertId is not reliable for the update branch of an upsert.
	var id int64
	if err := rdb.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE run_id = ?`, report.ID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// GetLatestRun retrieves the most recent run for a target.
// It returns nil, nil when the target has no runs.
func (rdb *RunDB) GetLatestRun(ctx context.Context, target string) (*model.RunReport, error) {
	query := `
	SELECT run_json FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	var runJSON string
	err := rdb.db.QueryRowContext(ctx, query, target).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return decodeRun(runJSON)
}

// GetRunByID retrieves a run by its database ID.
// It returns nil, nil when no such run exists.
func (rdb *RunDB) GetRunByID(ctx context.Context, id int64) (*model.RunReport, error) {
	var runJSON string
	err := rdb.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return decodeRun(runJSON)
}

// ListTargets returns every target that has at least one stored run.
func (rdb *RunDB) ListTargets(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT target FROM runs
	ORDER BY target
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// GetRunHistory retrieves all runs for a target, newest first.
// Rows that no longer decode are skipped.
func (rdb *RunDB) GetRunHistory(ctx context.Context, target string) ([]*model.RunReport, error) {
	query := `
	SELECT run_json FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.RunReport
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		report, err := decodeRun(runJSON)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// RunMetadata is the summary of a stored run.
type RunMetadata struct {
	// ID is the database ID of the run.
	ID int64 `json:"id"`

	// RunID is the run's UUID.
	RunID string `json:"run_id"`

	// Target is the verified URL.
	Target string `json:"target"`

	// Scenario is the scenario name, empty for the default run.
	Scenario string `json:"scenario,omitempty"`

	// Driver is the browser driver used.
	Driver string `json:"driver"`

	// Status is the run's terminal status.
	Status model.Status `json:"status"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`

	// ResultsDigest and RawResultsDigest are the screenshot digests,
	// empty when the screenshot was not taken.
	ResultsDigest    string `json:"results_digest,omitempty"`
	RawResultsDigest string `json:"raw_results_digest,omitempty"`
}

// GetRunHistoryWithMetadata retrieves run summaries for a target, newest
// first, without decoding the stored documents.
func (rdb *RunDB) GetRunHistoryWithMetadata(ctx context.Context, target string) ([]RunMetadata, error) {
	query := `
	SELECT id, run_id, target, scenario, driver, status, started_at, duration_ms,
		results_digest, raw_results_digest
	FROM runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var scenario, driver, resultsDigest, rawDigest sql.NullString
		var status, startedAt string
		var durationMS sql.NullInt64

		if err := rows.Scan(
			&meta.ID,
			&meta.RunID,
			&meta.Target,
			&scenario,
			&driver,
			&status,
			&startedAt,
			&durationMS,
			&resultsDigest,
			&rawDigest,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Scenario = scenario.String
		meta.Driver = driver.String
		meta.StartedAt = parseTimestamp(startedAt)
		meta.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		meta.ResultsDigest = resultsDigest.String
		meta.RawResultsDigest = rawDigest.String
		if parsed, err := model.ParseStatus(status); err == nil {
			meta.Status = parsed
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// decodeRun parses a stored run document.
func decodeRun(runJSON string) (*model.RunReport, error) {
	var report model.RunReport
	if err := json.Unmarshal([]byte(runJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &report, nil
}

// artifactDigest returns the digest of the named artifact, or "".
func artifactDigest(report *model.RunReport, name string) string {
	if a := report.GetArtifact(name); a != nil {
		return a.Digest
	}
	return ""
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	sortableTime,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
