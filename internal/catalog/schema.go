package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump it when schema.sql
// changes; existing catalogs must be cleared after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// release.
var ErrSchemaMismatch = errors.New("catalog schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	// -1 distinguishes "no schema at all" from a schema_version table with
	// no usable row, which COALESCE reports as 0.
	const probe = `SELECT CASE
		WHEN EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'schema_version')
		THEN (SELECT COALESCE(MAX(version), 0) FROM schema_version)
		ELSE -1 END`

	var stored int
	if err := s.db.QueryRowContext(ctx, probe).Scan(&stored); err != nil {
		return fmt.Errorf("probe schema version: %w", err)
	}

	switch stored {
	case -1:
		return s.applySchema(ctx)
	case schemaVersion:
		return nil
	}
	return fmt.Errorf("%w: catalog has version %d, this build expects %d (delete the catalog file to start fresh)",
		ErrSchemaMismatch, stored, schemaVersion)
}

func (s *Store) applySchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
