package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcAnfuso/api-casinos/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// journalRepo keeps the local delivery journal in SQLite. It records what
// the relay did with each webhook; lead state itself never lives here.
type journalRepo struct {
	db *sql.DB
}

// NewJournalRepo opens (and if needed creates) the delivery journal.
func NewJournalRepo(dbPath string) (repo.JournalRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			tenant TEXT NOT NULL,
			lead_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deliveries_tenant ON deliveries(tenant, created_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &journalRepo{db: db}, nil
}

func (r *journalRepo) Record(ctx context.Context, rec repo.DeliveryRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO deliveries (id, tenant, lead_id, action, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Tenant,
		rec.LeadID,
		rec.Action,
		rec.Outcome,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

func (r *journalRepo) TenantStats(ctx context.Context, tenant string) (repo.DeliveryStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN action = 'confirmed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'retried' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'escalated' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'ignored' THEN 1 ELSE 0 END)
		FROM deliveries
		WHERE tenant = ?
	`, tenant)

	var stats repo.DeliveryStats
	var confirmed, retried, escalated, ignored sql.NullInt64
	if err := row.Scan(&stats.Total, &confirmed, &retried, &escalated, &ignored); err != nil {
		return repo.DeliveryStats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	stats.Confirmed = confirmed.Int64
	stats.Retried = retried.Int64
	stats.Escalated = escalated.Int64
	stats.Ignored = ignored.Int64
	return stats, nil
}

func (r *journalRepo) Close() error {
	return r.db.Close()
}
