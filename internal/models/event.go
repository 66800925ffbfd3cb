package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	EventActive = "active"
	EventClosed = "closed"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Status    string    `bun:"status,notnull,default:'active'" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// EventStats is the per-event aggregate used by the events list and reports.
type EventStats struct {
	EventID   int64  `bun:"event_id" json:"event_id"`
	EventName string `bun:"event_name" json:"event_name"`
	Status    string `bun:"status" json:"status"`
	Total     int    `bun:"total" json:"total"`
	Collected int    `bun:"collected" json:"collected"`
	Pending   int    `bun:"pending" json:"pending"`
	Revoked   int    `bun:"revoked" json:"revoked"`
}
