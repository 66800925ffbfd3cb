package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Audit actions, one per lifecycle transition.
const (
	AuditCheckedIn     = "checked_in"
	AuditManualCheckin = "manual_checkin"
	AuditUndoCheckin   = "undo_checkin"
	AuditReissue       = "reissue"
)

// TokenAudit rows are append-only. Exactly one row is written per successful
// state transition, inside the same transaction as the transition itself.
type TokenAudit struct {
	bun.BaseModel `bun:"table:token_audit"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	TokenID     int64     `bun:"token_id,notnull" json:"token_id"`
	Action      string    `bun:"action,notnull" json:"action"`
	PerformedBy *string   `bun:"performed_by" json:"performed_by,omitempty"`
	Details     string    `bun:"details,nullzero" json:"details,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
