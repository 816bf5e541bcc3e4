package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kiln/internal/config"
	"kiln/internal/diag"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.CatalogPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordJob inserts a finished job with its assets and diagnostics in one
// transaction.
func (s *Store) RecordJob(ctx context.Context, job *Job, assets []Asset, diags []diag.Diagnostic) error {
	if job == nil {
		return errors.New("job is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := job.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	finished := job.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, label, status, success, cancelled, output_dir, manifest_path,
            texture_count, buffer_count, asset_count, deduplicated,
            error_count, warning_count, duration_ms, created_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Label,
		job.Status,
		boolToInt(job.Success),
		boolToInt(job.Cancelled),
		nullableString(job.OutputDir),
		nullableString(job.ManifestPath),
		job.Textures,
		job.Buffers,
		job.Assets,
		job.Deduplicated,
		job.ErrorCount,
		job.WarningCount,
		job.Duration.Milliseconds(),
		created.Format(time.RFC3339Nano),
		finished.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	for _, a := range assets {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO job_assets (job_id, item_key, source, kind, table_name, table_index, signature)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			job.ID,
			a.Key,
			nullableString(a.Source),
			a.Kind,
			a.TableName,
			a.Index,
			nullableString(a.Signature),
		); err != nil {
			return fmt.Errorf("insert asset %q: %w", a.Key, err)
		}
	}

	for _, d := range diags {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO job_diagnostics (job_id, severity, code, message, item)
             VALUES (?, ?, ?, ?, ?)`,
			job.ID,
			string(d.Severity),
			d.Code,
			d.Message,
			nullableString(d.Item),
		); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}
	return nil
}

// GetJob fetches a job by identifier. A missing job returns nil, nil.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	base := `SELECT ` + jobColumns + ` FROM jobs`
	order := ` ORDER BY finished_at DESC`
	var args []any
	if len(statuses) > 0 {
		base += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	if limit > 0 {
		order += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ctx, base+order, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// AssetsForJob returns the asset mappings recorded for a job.
func (s *Store) AssetsForJob(ctx context.Context, jobID string) ([]Asset, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, item_key, source, kind, table_name, table_index, signature
         FROM job_assets WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query job assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var (
			a      Asset
			source sql.NullString
			sig    sql.NullString
		)
		if err := rows.Scan(&a.JobID, &a.Key, &source, &a.Kind, &a.TableName, &a.Index, &sig); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.Source = source.String
		a.Signature = sig.String
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// DiagnosticsForJob returns the diagnostics recorded for a job.
func (s *Store) DiagnosticsForJob(ctx context.Context, jobID string) ([]diag.Diagnostic, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT severity, code, message, item FROM job_diagnostics WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query job diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []diag.Diagnostic
	for rows.Next() {
		var (
			d    diag.Diagnostic
			sev  string
			item sql.NullString
		)
		if err := rows.Scan(&sev, &d.Code, &d.Message, &item); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Severity = diag.Severity(sev)
		d.Item = item.String
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("catalog stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job outcomes for status output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch Status(status) {
		case StatusComplete:
			health.Complete += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		}
	}
	return health, nil
}

// RemoveJob deletes a job and its dependent rows.
func (s *Store) RemoveJob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes jobs from the catalog, restricted to the given statuses when
// any are passed. Asset and diagnostic rows go with their jobs.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	query := `DELETE FROM jobs`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear catalog: %w", err)
	}
	return res.RowsAffected()
}

// CheckHealth returns diagnostic information about the catalog database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("catalog database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat catalog database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("catalog database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("catalog database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping catalog database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		colsRows, err := s.db.QueryContext(connCtx, "PRAGMA table_info(jobs)")
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("table info: %w", err)
		}
		defer colsRows.Close()

		var columns []string
		for colsRows.Next() {
			var (
				cid     int
				name    string
				typeStr string
				notNull int
				dflt    any
				pk      int
			)
			if err := colsRows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
				health.Error = err.Error()
				return health, fmt.Errorf("scan table info: %w", err)
			}
			columns = append(columns, name)
		}
		if err := colsRows.Err(); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("iterate table info: %w", err)
		}
		health.ColumnsPresent = append(health.ColumnsPresent, columns...)

		expected := []string{"id", "label", "status", "success", "cancelled", "output_dir", "manifest_path", "texture_count", "buffer_count", "asset_count", "deduplicated", "error_count", "warning_count", "duration_ms", "created_at", "finished_at"}
		missingMap := make(map[string]struct{}, len(expected))
		for _, col := range expected {
			missingMap[col] = struct{}{}
		}
		for _, col := range columns {
			delete(missingMap, col)
		}
		for col := range missingMap {
			health.MissingColumns = append(health.MissingColumns, col)
		}

		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count jobs: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

const jobColumns = "id, label, status, success, cancelled, output_dir, manifest_path, texture_count, buffer_count, asset_count, deduplicated, error_count, warning_count, duration_ms, created_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		statusStr    string
		success      sql.NullInt64
		cancelled    sql.NullInt64
		outputDir    sql.NullString
		manifestPath sql.NullString
		durationMS   int64
		createdRaw   sql.NullString
		finishedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&job.ID,
		&job.Label,
		&statusStr,
		&success,
		&cancelled,
		&outputDir,
		&manifestPath,
		&job.Textures,
		&job.Buffers,
		&job.Assets,
		&job.Deduplicated,
		&job.ErrorCount,
		&job.WarningCount,
		&durationMS,
		&createdRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job.Status = Status(statusStr)
	job.Success = success.Valid && success.Int64 != 0
	job.Cancelled = cancelled.Valid && cancelled.Int64 != 0
	job.OutputDir = outputDir.String
	job.ManifestPath = manifestPath.String
	job.Duration = time.Duration(durationMS) * time.Millisecond
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if finished, err := parseTimeString(finishedRaw.String); err == nil {
		job.FinishedAt = finished
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
