package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/chunkwise/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidRun is returned when a run cannot be stored
	ErrInvalidRun = errors.New("invalid run")
)

// DefaultListLimit caps ListRuns when no limit is given
const DefaultListLimit = 20

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Downgrade rolls back the most recent schema migration. The next
// NewSQLiteStorage on the same file applies it again.
func (s *SQLiteStorage) Downgrade(ctx context.Context) (string, error) {
	if err := RollbackMigration(ctx, s.db); err != nil {
		return "", err
	}
	v, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Run operations

// saveRunWithQuerier replaces a run and all of its chunk results
func (s *SQLiteStorage) saveRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRun)
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	var totalCount sql.NullInt64
	if run.TotalCount != nil {
		totalCount = sql.NullInt64{Int64: int64(*run.TotalCount), Valid: true}
	}

	// Cascade removes chunk results of a previous save
	if _, err := q.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", run.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}

	query := `
		INSERT INTO runs (id, source, question, format, mode, state, path, answer, total_count,
		                  chunk_size, chunks, processed_records, total_records, truncated,
		                  provider, model, error, started_at, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		run.ID, run.Source, run.Question, run.Format, run.Mode, run.State, run.Path, run.Answer, totalCount,
		run.ChunkSize, run.Chunks, run.ProcessedRecords, run.TotalRecords, run.Truncated,
		run.Provider, run.Model, run.Error, run.StartedAt, run.Duration.Milliseconds(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, rec := range run.Results {
		rec.RunID = run.ID
		if err := s.insertChunkRecord(ctx, q, rec); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStorage) insertChunkRecord(ctx context.Context, q querier, rec *ChunkRecord) error {
	items := rec.Result.Items
	if items == nil {
		items = []any{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode items for chunk %d: %w", rec.ChunkIndex, err)
	}

	query := `
		INSERT INTO chunk_results (run_id, chunk_index, count, items, summary, outcome, attempts, duration_ms, error, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		rec.RunID, rec.ChunkIndex, rec.Result.Count, string(itemsJSON), rec.Result.Summary,
		rec.Outcome, rec.Attempts, rec.Duration.Milliseconds(), rec.Error, rec.ContentHash)
	if err != nil {
		return fmt.Errorf("failed to insert chunk result %d: %w", rec.ChunkIndex, err)
	}
	return nil
}

// SaveRun stores a run and its chunk results atomically
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveRunWithQuerier(ctx, tx, run); err != nil {
		return err
	}
	return tx.Commit()
}

const runColumns = `
	id, source, question, format, mode, state, path, answer, total_count,
	chunk_size, chunks, processed_records, total_records, truncated,
	provider, model, error, started_at, duration_ms, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                                   Run
		path, answer, provider, model, errStr sql.NullString
		totalCount                            sql.NullInt64
		durationMs                            int64
	)
	err := row.Scan(
		&run.ID, &run.Source, &run.Question, &run.Format, &run.Mode, &run.State, &path, &answer, &totalCount,
		&run.ChunkSize, &run.Chunks, &run.ProcessedRecords, &run.TotalRecords, &run.Truncated,
		&provider, &model, &errStr, &run.StartedAt, &durationMs, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Path = path.String
	run.Answer = answer.String
	run.Provider = provider.String
	run.Model = model.String
	run.Error = errStr.String
	run.Duration = time.Duration(durationMs) * time.Millisecond
	if totalCount.Valid {
		n := int(totalCount.Int64)
		run.TotalCount = &n
	}
	return &run, nil
}

// getRunWithQuerier loads a run with its chunk results in chunk order
func (s *SQLiteStorage) getRunWithQuerier(ctx context.Context, q querier, id string) (*Run, error) {
	run, err := scanRun(q.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT chunk_index, count, items, summary, outcome, attempts, duration_ms, error, content_hash
		FROM chunk_results
		WHERE run_id = ?
		ORDER BY chunk_index
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		rec := &ChunkRecord{RunID: id}
		var (
			itemsJSON             string
			summary, errStr, hash sql.NullString
			durationMs            int64
		)
		if err := rows.Scan(&rec.ChunkIndex, &rec.Result.Count, &itemsJSON, &summary,
			&rec.Outcome, &rec.Attempts, &durationMs, &errStr, &hash); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(itemsJSON), &rec.Result.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items for chunk %d: %w", rec.ChunkIndex, err)
		}
		if rec.Result.Items == nil {
			rec.Result.Items = []any{}
		}
		rec.Result.Summary = summary.String
		rec.Error = errStr.String
		rec.ContentHash = hash.String
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		run.Results = append(run.Results, rec)
	}

	return run, rows.Err()
}

func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	return s.getRunWithQuerier(ctx, s.querier(), id)
}

// listRunsWithQuerier returns the newest runs first, without chunk results
func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := q.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return s.listRunsWithQuerier(ctx, s.querier(), limit)
}

// deleteRunWithQuerier removes a run; chunk results follow by cascade
func (s *SQLiteStorage) deleteRunWithQuerier(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteRun(ctx context.Context, id string) error {
	return s.deleteRunWithQuerier(ctx, s.querier(), id)
}

// Status operations

func (s *SQLiteStorage) getStatsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	stats := &Stats{
		SchemaVersion: CurrentSchemaVersion,
		BuildMode:     BuildMode,
	}

	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&stats.Runs)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE state = 'failed'").Scan(&stats.FailedRuns)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunk_results").Scan(&stats.ChunkResults)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunk_results WHERE outcome = 'fallback'").Scan(&stats.FallbackChunks)
	if err != nil {
		return nil, err
	}

	if stats.Runs > 0 {
		// Read the newest row rather than MAX(), which loses the column type
		err = q.QueryRowContext(ctx, "SELECT started_at FROM runs ORDER BY started_at DESC LIMIT 1").Scan(&stats.LastRunAt)
		if err != nil {
			return nil, err
		}
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	return s.getStatsWithQuerier(ctx, s.querier())
}

// Transaction methods delegate to the querier-based implementations

func (t *sqliteTx) SaveRun(ctx context.Context, run *Run) error {
	return t.storage.saveRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) GetRun(ctx context.Context, id string) (*Run, error) {
	return t.storage.getRunWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return t.storage.listRunsWithQuerier(ctx, t.querier(), limit)
}

func (t *sqliteTx) DeleteRun(ctx context.Context, id string) error {
	return t.storage.deleteRunWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetStats(ctx context.Context) (*Stats, error) {
	return t.storage.getStatsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	return fmt.Errorf("cannot close transaction, use Commit or Rollback")
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// ChunkRecordFromResult builds a storage record for one chunk extraction
func ChunkRecordFromResult(index int, result types.ChunkResult, outcome string, attempts int, d time.Duration, err error) *ChunkRecord {
	rec := &ChunkRecord{
		ChunkIndex: index,
		Result:     result,
		Outcome:    outcome,
		Attempts:   attempts,
		Duration:   d,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}
