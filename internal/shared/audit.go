package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audited entities.
const (
	AuditEntityLocation        = "location"
	AuditEntityPricingConfig   = "pricing_config"
	AuditEntityPricingApply    = "pricing_template_application"
	AuditEntityStock           = "stock"
	AuditEntityTransferRequest = "stock_transfer_request"
)

// AuditLog is one row of the back-office audit trail.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Auditor is implemented by anything that can persist an AuditLog.
type Auditor interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry. Meta is stored as jsonb.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		nullInt(log.ActorID), log.Action, log.Entity, log.EntityID, metaJSON, nullTime(log.At))
	return err
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
