package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const schemaComponent = "caregiver"

// TargetSchemaVersion is the highest schema version this build knows.
var TargetSchemaVersion = len(migrations)

const createVersionsTable = `
CREATE TABLE IF NOT EXISTS schema_versions (
	component  TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// SchemaVersion returns the applied version, 0 for an empty database.
func SchemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	if _, err := db.ExecContext(ctx, createVersionsTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_versions: %w", err)
	}

	var version int
	err := db.GetContext(ctx, &version, `SELECT version FROM schema_versions WHERE component = $1`, schemaComponent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Migrate applies every migration newer than the stored version, each in its own transaction.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > TargetSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d, upgrade the application", current, TargetSchemaVersion)
	}
	if current == TargetSchemaVersion {
		log.Debug().Int("version", current).Msg("database schema is up to date")
		return nil
	}

	base := NewBaseRepository(db)
	for v := current + 1; v <= TargetSchemaVersion; v++ {
		stmt := migrations[v-1]
		err := base.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema v%d: %w", v, err)
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO schema_versions (component, version) VALUES ($1, $2)
				ON CONFLICT (component) DO UPDATE SET version = excluded.version, updated_at = NOW()`,
				schemaComponent, v)
			if err != nil {
				return fmt.Errorf("failed to record schema v%d: %w", v, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Info().Int("version", v).Msg("applied database migration")
	}
	return nil
}
