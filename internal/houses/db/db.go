package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"relief-tokens/internal/models"
)

var ErrNotFound = errors.New("house not found")

// DB holds household reference data. Rows arrive through bulk import;
// the token system only reads them.
type DB struct {
	Bun *bun.DB
}

func (d *DB) ListHouses() ([]models.House, error) {
	var houses []models.House
	err := d.Bun.NewSelect().
		Model(&houses).
		Order("id").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return houses, nil
}

func (d *DB) GetHouseByCode(houseCode string) (*models.House, error) {
	var house models.House
	err := d.Bun.NewSelect().
		Model(&house).
		Where("house_code = ?", houseCode).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &house, nil
}

func (d *DB) CreateHouse(house models.House) (*models.House, error) {
	_, err := d.Bun.NewInsert().Model(&house).Exec(context.Background())
	if err != nil {
		return nil, err
	}
	return &house, nil
}
