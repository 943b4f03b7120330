package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"encore.dev/rlog"

	"encore.app/locator/model"
)

// DBTX is the part of *pgxpool.Pool the Postgres queue needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	enqueueSQL = `
INSERT INTO request_queue (id, device_id, domain, request, enqueued_at, attempt, visible_at, dedup_key)
VALUES ($1, $2, $3, $4, $5, 0, $5, NULLIF($6, ''))
ON CONFLICT (dedup_key) DO NOTHING`

	receiveSQL = `
UPDATE request_queue
SET attempt = attempt + 1, visible_at = $2
WHERE id IN (
    SELECT id FROM request_queue
    WHERE visible_at <= $1 AND enqueued_at > $3
    ORDER BY enqueued_at
    LIMIT $4
    FOR UPDATE SKIP LOCKED
)
RETURNING id, device_id, domain, request, enqueued_at, attempt`

	dropExpiredSQL = `DELETE FROM request_queue WHERE enqueued_at <= $1`

	acknowledgeSQL = `DELETE FROM request_queue WHERE id = $1`
)

var _ Queue = (*Postgres)(nil)

// Postgres is a Queue on the request_queue table. Concurrent receivers never see the
// same item inside one visibility window thanks to FOR UPDATE SKIP LOCKED.
type Postgres struct {
	db         DBTX
	visibility time.Duration
	retention  time.Duration
	now        func() time.Time
}

// NewPostgres creates a Postgres queue with the given visibility window and retention.
func NewPostgres(db DBTX, visibility, retention time.Duration) *Postgres {
	cfg := MemoryConfig{Visibility: visibility, Retention: retention}
	cfg.applyDefaults()
	return &Postgres{db: db, visibility: cfg.Visibility, retention: cfg.Retention, now: time.Now}
}

func (p *Postgres) Enqueue(ctx context.Context, item *model.QueuedDeviceRequest, dedupKey string) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = p.now()
	}

	tag, err := p.db.Exec(ctx, enqueueSQL,
		item.ID, item.DeviceID, string(item.Domain), []byte(item.Request), item.EnqueuedAt, dedupKey)
	if err != nil {
		return unavailable("enqueue", err)
	}
	if tag.RowsAffected() == 0 {
		rlog.Debug("duplicate enqueue suppressed", "dedup_key", dedupKey, "device_id", item.DeviceID)
	}
	return nil
}

func (p *Postgres) Receive(ctx context.Context, batchSize int) ([]*model.QueuedDeviceRequest, error) {
	now := p.now()

	tag, err := p.db.Exec(ctx, dropExpiredSQL, now.Add(-p.retention))
	if err != nil {
		return nil, unavailable("drop expired", err)
	}
	if dropped := tag.RowsAffected(); dropped > 0 {
		rlog.Warn("dropped undeliverable device requests", "count", dropped)
	}

	rows, err := p.db.Query(ctx, receiveSQL, now, now.Add(p.visibility), now.Add(-p.retention), batchSize)
	if err != nil {
		return nil, unavailable("receive", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.QueuedDeviceRequest, error) {
		var (
			item    model.QueuedDeviceRequest
			domain  string
			request []byte
		)
		if err := row.Scan(&item.ID, &item.DeviceID, &domain, &request, &item.EnqueuedAt, &item.Attempt); err != nil {
			return nil, err
		}
		item.Domain = model.Domain(domain)
		item.Request = request
		return &item, nil
	})
	if err != nil {
		return nil, unavailable("scan", fmt.Errorf("collect received rows: %w", err))
	}
	return items, nil
}

func (p *Postgres) Acknowledge(ctx context.Context, item *model.QueuedDeviceRequest) error {
	if _, err := p.db.Exec(ctx, acknowledgeSQL, item.ID); err != nil {
		return unavailable("acknowledge", err)
	}
	return nil
}
