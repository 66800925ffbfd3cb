package models

import (
	"time"

	"github.com/uptrace/bun"
)

// House is a registered household. Rows come from bulk import and are
// read-mostly; tokens reference them by id.
type House struct {
	bun.BaseModel `bun:"table:houses"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	HouseCode string    `bun:"house_code,unique,notnull" json:"house_code"`
	OwnerName string    `bun:"owner_name,notnull" json:"owner_name"`
	Phone     string    `bun:"phone,nullzero" json:"phone,omitempty"`
	Address   string    `bun:"address,nullzero" json:"address,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
