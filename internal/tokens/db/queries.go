package db

import (
	"context"
	"database/sql"
	"errors"

	"relief-tokens/internal/models"
)

// GetTokenByCode returns a token joined with its event and household, for the
// public token view and pre-transition lookups.
func (d *DB) GetTokenByCode(code string) (*models.TokenWithHouse, error) {
	var row models.TokenWithHouse
	err := d.Bun.NewSelect().
		Model(&row).
		ModelTableExpr("tokens AS t").
		ColumnExpr("t.*").
		ColumnExpr("e.name AS event_name").
		ColumnExpr("h.house_code AS house_code").
		ColumnExpr("h.owner_name AS owner_name").
		ColumnExpr("h.address AS address").
		Join("LEFT JOIN events AS e ON e.id = t.event_id").
		Join("LEFT JOIN houses AS h ON h.id = t.house_id").
		Where("t.token_code = ?", code).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// ListTokens returns the admin token list, newest first, optionally filtered
// by event.
func (d *DB) ListTokens(eventID *int64, limit, offset int) ([]models.TokenWithHouse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []models.TokenWithHouse
	q := d.Bun.NewSelect().
		Model(&rows).
		ModelTableExpr("tokens AS t").
		ColumnExpr("t.*").
		ColumnExpr("h.house_code AS house_code").
		ColumnExpr("h.owner_name AS owner_name").
		ColumnExpr("h.address AS address").
		Join("LEFT JOIN houses AS h ON h.id = t.house_id").
		OrderExpr("t.id DESC").
		Limit(limit).
		Offset(offset)
	if eventID != nil {
		q = q.Where("t.event_id = ?", *eventID)
	}
	if err := q.Scan(context.Background()); err != nil {
		return nil, err
	}
	return rows, nil
}

// TokensForHouseEvent returns every token ever issued to a household within
// an event, in issue order.
func (d *DB) TokensForHouseEvent(eventID, houseID int64) ([]models.Token, error) {
	var tokens []models.Token
	err := d.Bun.NewSelect().
		Model(&tokens).
		Where("event_id = ?", eventID).
		Where("house_id = ?", houseID).
		Order("id").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// EventTokenRows returns the per-token export rows for an event.
func (d *DB) EventTokenRows(eventID int64) ([]models.Token, error) {
	var tokens []models.Token
	err := d.Bun.NewSelect().
		Model(&tokens).
		Where("event_id = ?", eventID).
		Order("id").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// HouseIDsWithTokens returns households that already hold a non-revoked token
// for the event. Issuance skips these to stay re-runnable.
func (d *DB) HouseIDsWithTokens(eventID int64) ([]int64, error) {
	var ids []int64
	err := d.Bun.NewSelect().
		Model((*models.Token)(nil)).
		ColumnExpr("DISTINCT house_id").
		Where("event_id = ?", eventID).
		Where("(status IS NULL OR status != ?)", models.TokenRevoked).
		Scan(context.Background(), &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AuditForToken returns the append-only trail for a token, oldest first.
func (d *DB) AuditForToken(tokenID int64) ([]models.TokenAudit, error) {
	var entries []models.TokenAudit
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("token_id = ?", tokenID).
		Order("id").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetEventByID is used by the lifecycle engine to gate check-ins on closed
// events.
func (d *DB) GetEventByID(id int64) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}
