package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"encore.dev/rlog"

	"encore.app/locator/model"
)

// DBTX is the part of *pgxpool.Pool (and pgx.Tx) the Postgres stores need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	getEntrySQL = `
SELECT resolved, unresolved, payload, owner, updated_at, expires_at
FROM resolution_cache
WHERE domain = $1 AND cache_key = $2 AND expires_at > $3`

	insertPlaceholderSQL = `
INSERT INTO resolution_cache (domain, cache_key, resolved, unresolved, payload, owner, updated_at, expires_at)
VALUES ($1, $2, FALSE, FALSE, NULL, $3, $4, $5)`

	// An expired row is dead; a placeholder may take it over.
	reclaimExpiredSQL = `
UPDATE resolution_cache
SET resolved = FALSE, unresolved = FALSE, payload = NULL, owner = $3, updated_at = $4, expires_at = $5
WHERE domain = $1 AND cache_key = $2 AND expires_at <= $4`

	upsertTerminalSQL = `
INSERT INTO resolution_cache (domain, cache_key, resolved, unresolved, payload, owner, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5, '', $6, $7)
ON CONFLICT (domain, cache_key) DO UPDATE
SET resolved = EXCLUDED.resolved,
    unresolved = EXCLUDED.unresolved,
    payload = EXCLUDED.payload,
    owner = '',
    updated_at = EXCLUDED.updated_at,
    expires_at = EXCLUDED.expires_at`
)

var _ Cache = (*Postgres)(nil)

// Postgres is a Cache on the resolution_cache table. The primary key on
// (domain, cache_key) is what makes PutPlaceholder conditional.
type Postgres struct {
	db  DBTX
	now func() time.Time
}

// NewPostgres creates a Postgres cache on db.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

func (p *Postgres) Get(ctx context.Context, domain model.Domain, key string) (model.Lookup, error) {
	var (
		entry     model.CacheEntry
		payload   []byte
		owner     pgtype.Text
		updatedAt pgtype.Timestamptz
		expiresAt pgtype.Timestamptz
	)
	err := p.db.QueryRow(ctx, getEntrySQL, string(domain), key, p.now()).
		Scan(&entry.Resolved, &entry.Unresolved, &payload, &owner, &updatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Absent, nil
		}
		rlog.Error("resolution cache query failed", "domain", domain, "key", key, "error", err)
		return model.Lookup{}, unavailable("get", err)
	}

	if len(payload) > 0 {
		entry.Payload = json.RawMessage(payload)
	}
	entry.Owner = owner.String
	entry.UpdatedAt = updatedAt.Time
	entry.ExpiresAt = expiresAt.Time
	return entry.Lookup(), nil
}

func (p *Postgres) PutPlaceholder(ctx context.Context, domain model.Domain, key, owner string, expiresAt time.Time) error {
	now := p.now()
	_, err := p.db.Exec(ctx, insertPlaceholderSQL, string(domain), key, owner, now, expiresAt)
	if err == nil {
		return nil
	}

	var e *pgconn.PgError
	if !errors.As(err, &e) || e.Code != pgerrcode.UniqueViolation {
		rlog.Error("resolution placeholder insert failed", "domain", domain, "key", key, "error", err)
		return unavailable("put placeholder", err)
	}

	tag, err := p.db.Exec(ctx, reclaimExpiredSQL, string(domain), key, owner, now, expiresAt)
	if err != nil {
		rlog.Error("resolution placeholder reclaim failed", "domain", domain, "key", key, "error", err)
		return unavailable("reclaim placeholder", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPending
	}
	return nil
}

func (p *Postgres) PutResolved(ctx context.Context, domain model.Domain, key string, payload json.RawMessage, ttl time.Duration) error {
	return p.putTerminal(ctx, domain, key, true, []byte(payload), ttl)
}

func (p *Postgres) PutUnresolved(ctx context.Context, domain model.Domain, key string, ttl time.Duration) error {
	return p.putTerminal(ctx, domain, key, false, nil, ttl)
}

func (p *Postgres) putTerminal(ctx context.Context, domain model.Domain, key string, resolved bool, payload []byte, ttl time.Duration) error {
	now := p.now()
	_, err := p.db.Exec(ctx, upsertTerminalSQL, string(domain), key, resolved, !resolved, payload, now, now.Add(ttl))
	if err != nil {
		rlog.Error("resolution cache upsert failed", "domain", domain, "key", key, "resolved", resolved, "error", err)
		return unavailable("put terminal", err)
	}
	return nil
}

// PurgeExpired deletes rows past their ttl. Readers already ignore them; this only
// reclaims space.
func (p *Postgres) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM resolution_cache WHERE expires_at <= $1`, p.now())
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return tag.RowsAffected(), nil
}
