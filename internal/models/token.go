package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Token statuses. A NULL status on legacy rows is treated as "active".
const (
	TokenActive  = "active"
	TokenUsed    = "used"
	TokenRevoked = "revoked"
)

type Token struct {
	bun.BaseModel `bun:"table:tokens"`

	ID        int64      `bun:"id,pk,autoincrement" json:"id"`
	TokenCode string     `bun:"token_code,unique,notnull" json:"token_code"`
	EventID   int64      `bun:"event_id,notnull" json:"event_id"`
	HouseID   int64      `bun:"house_id,notnull" json:"house_id"`
	Status    string     `bun:"status,notnull,default:'active'" json:"status"`
	Used      bool       `bun:"used,notnull,default:false" json:"used"`
	UsedBy    *string    `bun:"used_by" json:"used_by,omitempty"`
	UsedAt    *time.Time `bun:"used_at" json:"used_at,omitempty"`
	ExpiresAt *time.Time `bun:"expires_at" json:"expires_at,omitempty"`
	IssuedAt  time.Time  `bun:"issued_at,notnull,default:current_timestamp" json:"issued_at"`
}

// Redeemable reports whether a check-in could succeed right now.
func (t *Token) Redeemable(now time.Time) bool {
	if t.Used || t.Status == TokenRevoked || t.Status == TokenUsed {
		return false
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(now) {
		return false
	}
	return true
}

// TokenWithHouse is the admin list row: token joined with its household.
type TokenWithHouse struct {
	Token
	EventName string `bun:"event_name" json:"event_name,omitempty"`
	HouseCode string `bun:"house_code" json:"house_code,omitempty"`
	OwnerName string `bun:"owner_name" json:"owner_name,omitempty"`
	Address   string `bun:"address" json:"address,omitempty"`
}
