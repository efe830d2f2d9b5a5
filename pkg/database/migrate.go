package database

import (
	"context"
	"fmt"
)

// migrations are applied in order inside one transaction; every statement is
// idempotent so Migrate can run on each deploy.
var migrations = []string{
	`CREATE SCHEMA IF NOT EXISTS progress`,

	// Cumulative committed progress per KPI/year. KPI ids are only unique
	// within a KRA. version is bumped on every commit and checked by the writer.
	`CREATE TABLE IF NOT EXISTS progress.records (
		kpi_id      TEXT        NOT NULL,
		year        INT         NOT NULL,
		kra_id      TEXT        NOT NULL,
		current     DOUBLE PRECISION NOT NULL DEFAULT 0,
		target      DOUBLE PRECISION NOT NULL DEFAULT 0,
		version     BIGINT      NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (kra_id, kpi_id, year)
	)`,

	// Quarterly entries as reported by the planning office.
	`CREATE TABLE IF NOT EXISTS progress.entries (
		kpi_id     TEXT NOT NULL,
		year       INT  NOT NULL,
		quarter    INT  NOT NULL CHECK (quarter BETWEEN 1 AND 4),
		kra_id     TEXT NOT NULL,
		value      DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (kra_id, kpi_id, year, quarter)
	)`,

	// One row per approved analysis and KPI.
	`CREATE TABLE IF NOT EXISTS progress.contributions (
		analysis_id  TEXT NOT NULL,
		kpi_id       TEXT NOT NULL,
		year         INT  NOT NULL,
		kra_id       TEXT NOT NULL,
		reported     DOUBLE PRECISION NOT NULL,
		raw_pct      DOUBLE PRECISION NOT NULL,
		plan_hash    TEXT NOT NULL,
		committed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (analysis_id, kra_id, kpi_id, year)
	)`,
}

// Migrate creates the schema used by the progress repository
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range migrations {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}
