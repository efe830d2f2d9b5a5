package progress

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/plan"
)

// Repository progress 스키마 저장소
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Fetch returns the committed records of a KRA for a year. Rows are keyed
// by the normalized KRA id.
func (r *Repository) Fetch(ctx context.Context, kraID string, year int) ([]contracts.ProgressRecord, error) {
	query := `
		SELECT kra_id, kpi_id, year, current, target, version
		FROM progress.records
		WHERE kra_id = $1 AND year = $2
		ORDER BY kpi_id`

	rows, err := r.pool.Query(ctx, query, plan.NormalizeKRAID(kraID), year)
	if err != nil {
		return nil, fmt.Errorf("query progress records: %w", err)
	}
	defer rows.Close()

	var records []contracts.ProgressRecord
	for rows.Next() {
		var rec contracts.ProgressRecord
		if err := rows.Scan(&rec.KRAID, &rec.KPIID, &rec.Year, &rec.Current, &rec.Target, &rec.Version); err != nil {
			return nil, fmt.Errorf("scan progress record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Entries returns the quarterly breakdown of a KRA for a year
func (r *Repository) Entries(ctx context.Context, kraID string, year int) ([]contracts.ProgressEntry, error) {
	query := `
		SELECT kra_id, kpi_id, year, quarter, value
		FROM progress.entries
		WHERE kra_id = $1 AND year = $2
		ORDER BY kpi_id, quarter`

	rows, err := r.pool.Query(ctx, query, plan.NormalizeKRAID(kraID), year)
	if err != nil {
		return nil, fmt.Errorf("query progress entries: %w", err)
	}
	defer rows.Close()

	var entries []contracts.ProgressEntry
	for rows.Next() {
		var e contracts.ProgressEntry
		if err := rows.Scan(&e.KRAID, &e.KPIID, &e.Year, &e.Quarter, &e.Value); err != nil {
			return nil, fmt.Errorf("scan progress entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

const (
	insertContribution = `
		INSERT INTO progress.contributions
			(analysis_id, kpi_id, year, kra_id, reported, raw_pct, plan_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (analysis_id, kra_id, kpi_id, year) DO NOTHING`

	// The update only applies when the stored version still matches the
	// version the fold was computed from.
	upsertRecord = `
		INSERT INTO progress.records (kpi_id, year, kra_id, current, target, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (kra_id, kpi_id, year) DO UPDATE SET
			current = EXCLUDED.current,
			target = EXCLUDED.target,
			version = progress.records.version + 1,
			updated_at = now()
		WHERE progress.records.version = $6`

	upsertEntry = `
		INSERT INTO progress.entries (kpi_id, year, quarter, kra_id, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kra_id, kpi_id, year, quarter) DO UPDATE SET
			value = CASE WHEN $6 THEN progress.entries.value + EXCLUDED.value ELSE EXCLUDED.value END`
)

// Commit records an approved analysis in one transaction. Items already in
// the contribution ledger are skipped, so committing the same analysis twice
// is a no-op. A stale ExpectedVersion rolls everything back with
// ErrVersionConflict.
func (r *Repository) Commit(ctx context.Context, c Contribution) error {
	if len(c.Items) == 0 {
		return nil
	}
	if c.Quarter < 1 || c.Quarter > 4 {
		return fmt.Errorf("invalid quarter %d", c.Quarter)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range c.Items {
		item.KRAID = plan.NormalizeKRAID(item.KRAID)

		tag, err := tx.Exec(ctx, insertContribution,
			c.AnalysisID, item.KPIID, c.Year, item.KRAID,
			item.Reported, item.RawAchievement, c.PlanHash)
		if err != nil {
			return fmt.Errorf("insert contribution %s: %w", item.KPIID, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}

		tag, err = tx.Exec(ctx, upsertRecord,
			item.KPIID, c.Year, item.KRAID, item.NewTotal, item.Target, item.ExpectedVersion)
		if err != nil {
			return fmt.Errorf("upsert record %s: %w", item.KPIID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s/%d: %w", item.KPIID, c.Year, ErrVersionConflict)
		}

		if _, err := tx.Exec(ctx, upsertEntry,
			item.KPIID, c.Year, c.Quarter, item.KRAID, item.Reported, item.Type.Additive()); err != nil {
			return fmt.Errorf("upsert entry %s: %w", item.KPIID, err)
		}
	}

	return tx.Commit(ctx)
}

// SaveEntries 분기별 실적 일괄 저장
// Imported entries replace existing values for the same quarter, and the
// annual current of each touched KPI becomes the sum of its quarters.
func (r *Repository) SaveEntries(ctx context.Context, entries []contracts.ProgressEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO progress.entries (kpi_id, year, quarter, kra_id, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kra_id, kpi_id, year, quarter) DO UPDATE SET
			value = EXCLUDED.value`

	type kpiYear struct {
		kra, kpi string
		year     int
	}
	touched := make(map[kpiYear]bool)

	for _, e := range entries {
		if e.Quarter < 1 || e.Quarter > 4 {
			return fmt.Errorf("%s/%d: invalid quarter %d", e.KPIID, e.Year, e.Quarter)
		}
		kra := plan.NormalizeKRAID(e.KRAID)
		batch.Queue(query, e.KPIID, e.Year, e.Quarter, kra, e.Value)
		touched[kpiYear{kra, e.KPIID, e.Year}] = true
	}

	refresh := `
		INSERT INTO progress.records (kpi_id, year, kra_id, current, version)
		SELECT kpi_id, year, kra_id, SUM(value), 1
		FROM progress.entries
		WHERE kra_id = $1 AND kpi_id = $2 AND year = $3
		GROUP BY kra_id, kpi_id, year
		ON CONFLICT (kra_id, kpi_id, year) DO UPDATE SET
			current = EXCLUDED.current,
			version = progress.records.version + 1,
			updated_at = now()`

	for k := range touched {
		batch.Queue(refresh, k.kra, k.kpi, k.year)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("save progress entries: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("save progress entries: %w", err)
	}

	return tx.Commit(ctx)
}
