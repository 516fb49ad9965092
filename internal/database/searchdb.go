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

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Raam977/citius-scraper/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "citius.db"

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrSearchNotFound is returned when a run ID does not exist.
var ErrSearchNotFound = errors.New("search not found")

// SearchDB stores search runs and their records.
type SearchDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures SearchDB behavior.
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

// Open opens or creates the database in dbDir.
// With CreateIfNotExists unset, a missing database is an error.
func Open(dbDir string, opts Options) (*SearchDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rwc"
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a search with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw"
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SearchDB{
		db:     db,
		dbPath: dbPath,
	}

	// Concurrent processes wait for each other instead of failing with SQLITE_BUSY.
	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Path returns the database file path.
func (sdb *SearchDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *SearchDB) Close() error {
	return sdb.db.Close()
}

func (sdb *SearchDB) createTables() error {
	schema := `
	-- One row per search run
	CREATE TABLE IF NOT EXISTS searches (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		search_type TEXT NOT NULL,
		query TEXT NOT NULL,
		started_at TEXT NOT NULL,
		criteria_json TEXT NOT NULL,
		diagnostics_json TEXT NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0,
		creditor_count INTEGER NOT NULL DEFAULT 0,
		termination TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_searches_fingerprint ON searches(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_searches_started ON searches(started_at);

	-- Records of each run, in portal order
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		search_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		reference TEXT,
		case_number TEXT,
		insolvent TEXT,
		identifier TEXT,
		record_json TEXT NOT NULL,
		UNIQUE(search_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_records_search ON records(search_id);
	CREATE INDEX IF NOT EXISTS idx_records_identifier ON records(identifier);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SearchSummary is the metadata of a stored run, without its records.
type SearchSummary struct {
	ID            string            `json:"id"`
	Fingerprint   string            `json:"fingerprint"`
	Type          string            `json:"type"`
	Query         string            `json:"query"`
	StartedAt     time.Time         `json:"started_at"`
	RecordCount   int               `json:"record_count"`
	CreditorCount int               `json:"creditor_count"`
	Termination   model.Termination `json:"termination"`
	Error         string            `json:"error,omitempty"`
}

// SaveSearch stores a run and its records in one transaction.
// A new ID is assigned to result when it has none; the ID is returned.
func (sdb *SearchDB) SaveSearch(ctx context.Context, result *model.SearchResult) (string, error) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}

	criteriaJSON, err := json.Marshal(result.Criteria)
	if err != nil {
		return "", fmt.Errorf("failed to serialize criteria: %w", err)
	}
	diagJSON, err := json.Marshal(result.Diagnostics)
	if err != nil {
		return "", fmt.Errorf("failed to serialize diagnostics: %w", err)
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO searches (id, fingerprint, search_type, query, started_at, criteria_json,
		diagnostics_json, record_count, creditor_count, termination, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.Criteria.Fingerprint(),
		result.Criteria.Type().String(),
		result.Criteria.Query(),
		result.StartedAt.UTC().Format(timeLayout),
		string(criteriaJSON),
		string(diagJSON),
		len(result.Records),
		result.CreditorCount(),
		result.Diagnostics.Termination.String(),
		result.Error,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert search: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO records (search_id, position, reference, case_number, insolvent, identifier, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i := range result.Records {
		r := &result.Records[i]
		recordJSON, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("failed to serialize record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, result.ID, i, r.Reference, r.CaseNumber,
			r.InsolventParty, r.InsolventIdentifier, string(recordJSON)); err != nil {
			return "", fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit search: %w", err)
	}
	return result.ID, nil
}

// GetSearch loads a run with its records.
// It returns ErrSearchNotFound if the ID is unknown.
func (sdb *SearchDB) GetSearch(ctx context.Context, id string) (*model.SearchResult, error) {
	var (
		criteriaJSON, diagJSON, startedAt string
		errText                           sql.NullString
	)
	err := sdb.db.QueryRowContext(ctx, `
	SELECT criteria_json, diagnostics_json, started_at, error
	FROM searches WHERE id = ?
	`, id).Scan(&criteriaJSON, &diagJSON, &startedAt, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSearchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query search: %w", err)
	}

	result := &model.SearchResult{
		ID:        id,
		StartedAt: parseTimestamp(startedAt),
		Error:     errText.String,
		Records:   make([]model.Record, 0),
	}
	if err := json.Unmarshal([]byte(criteriaJSON), &result.Criteria); err != nil {
		return nil, fmt.Errorf("failed to deserialize criteria: %w", err)
	}
	if err := json.Unmarshal([]byte(diagJSON), &result.Diagnostics); err != nil {
		return nil, fmt.Errorf("failed to deserialize diagnostics: %w", err)
	}

	rows, err := sdb.db.QueryContext(ctx, `
	SELECT record_json FROM records WHERE search_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var r model.Record
		if err := json.Unmarshal([]byte(recordJSON), &r); err != nil {
			return nil, fmt.Errorf("failed to deserialize record: %w", err)
		}
		result.Records = append(result.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return result, nil
}

// ListSearches returns stored runs, newest first. An empty fingerprint
// lists every run. A limit of 0 or less means no limit.
func (sdb *SearchDB) ListSearches(ctx context.Context, fingerprint string, limit int) ([]SearchSummary, error) {
	query := `
	SELECT id, fingerprint, search_type, query, started_at, record_count,
		creditor_count, termination, error
	FROM searches`
	var args []any
	if fingerprint != "" {
		query += " WHERE fingerprint = ?"
		args = append(args, fingerprint)
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()

	summaries := make([]SearchSummary, 0)
	for rows.Next() {
		var (
			s                      SearchSummary
			startedAt, termination string
			errText                sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Fingerprint, &s.Type, &s.Query, &startedAt,
			&s.RecordCount, &s.CreditorCount, &termination, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		s.Error = errText.String
		if err := s.Termination.UnmarshalText([]byte(termination)); err != nil {
			return nil, fmt.Errorf("failed to parse termination: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read searches: %w", err)
	}

	return summaries, nil
}

// LatestPair returns the two most recent runs sharing a fingerprint, older
// first. It returns an error when fewer than two runs are stored.
func (sdb *SearchDB) LatestPair(ctx context.Context, fingerprint string) (older, newer *model.SearchResult, err error) {
	summaries, err := sdb.ListSearches(ctx, fingerprint, 2)
	if err != nil {
		return nil, nil, err
	}
	if len(summaries) < 2 {
		return nil, nil, fmt.Errorf("need two stored runs to compare, found %d", len(summaries))
	}

	newer, err = sdb.GetSearch(ctx, summaries[0].ID)
	if err != nil {
		return nil, nil, err
	}
	older, err = sdb.GetSearch(ctx, summaries[1].ID)
	if err != nil {
		return nil, nil, err
	}
	return older, newer, nil
}

// DeleteSearch removes a run and its records.
func (sdb *SearchDB) DeleteSearch(ctx context.Context, id string) error {
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM searches WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete search: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSearchNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE search_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}

	return tx.Commit()
}

// timestampFormats lists the layouts SQLite timestamps may come back in.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time if s matches no known layout.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
