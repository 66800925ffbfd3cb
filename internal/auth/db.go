package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"relief-tokens/internal/models"
)

var ErrAdminNotFound = errors.New("admin not found")

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetAdminByUsername(username string) (*models.Admin, error) {
	var admin models.Admin
	err := d.Bun.NewSelect().
		Model(&admin).
		Where("username = ?", username).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

func (d *DB) CreateAdmin(admin models.Admin) (*models.Admin, error) {
	_, err := d.Bun.NewInsert().Model(&admin).Exec(context.Background())
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
