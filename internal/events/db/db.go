package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"relief-tokens/internal/models"
)

var ErrNotFound = errors.New("event not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateEvent(name string) (*models.Event, error) {
	event := models.Event{
		Name:      name,
		Status:    models.EventActive,
		CreatedAt: time.Now(),
	}
	_, err := d.Bun.NewInsert().Model(&event).Exec(context.Background())
	if err != nil {
		return nil, err
	}
	return &event, nil
}

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

// SetEventStatus flips an event between active and closed.
func (d *DB) SetEventStatus(id int64, status string) (*models.Event, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(context.Background())
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return d.GetEventByID(id)
}

// ListEventStats returns all events with their token aggregates, newest
// first.
func (d *DB) ListEventStats() ([]models.EventStats, error) {
	var stats []models.EventStats
	err := d.Bun.NewSelect().
		TableExpr("events AS e").
		ColumnExpr("e.id AS event_id").
		ColumnExpr("e.name AS event_name").
		ColumnExpr("e.status AS status").
		ColumnExpr("COUNT(t.id) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN t.used THEN 1 ELSE 0 END), 0) AS collected").
		ColumnExpr("COALESCE(SUM(CASE WHEN t.used = ? AND t.status = ? THEN 1 ELSE 0 END), 0) AS pending", false, models.TokenActive).
		ColumnExpr("COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0) AS revoked", models.TokenRevoked).
		Join("LEFT JOIN tokens AS t ON t.event_id = e.id").
		GroupExpr("e.id, e.name, e.status").
		OrderExpr("e.id DESC").
		Scan(context.Background(), &stats)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// EventStats returns the aggregate counts for one event.
func (d *DB) EventStats(id int64) (*models.EventStats, error) {
	if _, err := d.GetEventByID(id); err != nil {
		return nil, err
	}
	var stats models.EventStats
	err := d.Bun.NewSelect().
		TableExpr("events AS e").
		ColumnExpr("e.id AS event_id").
		ColumnExpr("e.name AS event_name").
		ColumnExpr("e.status AS status").
		ColumnExpr("COUNT(t.id) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN t.used THEN 1 ELSE 0 END), 0) AS collected").
		ColumnExpr("COALESCE(SUM(CASE WHEN t.used = ? AND t.status = ? THEN 1 ELSE 0 END), 0) AS pending", false, models.TokenActive).
		ColumnExpr("COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0) AS revoked", models.TokenRevoked).
		Join("LEFT JOIN tokens AS t ON t.event_id = e.id").
		Where("e.id = ?", id).
		GroupExpr("e.id, e.name, e.status").
		Scan(context.Background(), &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
