package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// AuditLog is one audit_logs row. ActorID and EnvironmentID may be empty for
// system-initiated actions.
type AuditLog struct {
	ActorID       string
	EnvironmentID string
	Action        string
	Entity        string
	EntityID      string
	Meta          map[string]any
	At            time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// Execer is the slice of pgxpool.Pool and pgx.Tx the audit logger needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger appends to audit_logs.
type AuditLogger struct {
	db  Execer
	now func() time.Time
}

// NewAuditLogger writes through db, which is usually the shared pool.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db, now: time.Now}
}

const insertAudit = `INSERT INTO audit_logs (actor_id, environment_id, action, entity, entity_id, meta, occurred_at)
VALUES (NULLIF($1, '')::uuid, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7)`

// Record inserts entry, stamping it with the current time when At is zero.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("audit: %w: logger has no database", ErrStorage)
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return fmt.Errorf("audit: %w: action, entity and entity id are required", ErrInvalidInput)
	}
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit: %w: meta: %v", ErrInvalidInput, err)
	}
	at := entry.At
	if at.IsZero() {
		at = l.now()
	}
	if _, err := l.db.Exec(ctx, insertAudit,
		entry.ActorID, entry.EnvironmentID, entry.Action, entry.Entity, entry.EntityID, raw, at.UTC()); err != nil {
		return StorageError("audit: insert", err)
	}
	return nil
}
