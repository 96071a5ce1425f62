package repo

import (
	"context"
	"time"
)

// DeliveryRecord is one processed webhook delivery, kept in the local
// journal for the health endpoint. Lead state never lives here.
type DeliveryRecord struct {
	ID        string
	Tenant    string
	LeadID    int64
	Action    string
	Outcome   string
	CreatedAt time.Time
}

// DeliveryStats summarizes a tenant's journal.
type DeliveryStats struct {
	Total     int64
	Confirmed int64
	Retried   int64
	Escalated int64
	Ignored   int64
}

// JournalRepo is the local delivery journal (SQLite). Best-effort: callers
// log and ignore its errors.
type JournalRepo interface {
	Record(ctx context.Context, rec DeliveryRecord) error
	TenantStats(ctx context.Context, tenant string) (DeliveryStats, error)
	Close() error
}
