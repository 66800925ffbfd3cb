package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"relief-tokens/internal/models"
	"relief-tokens/internal/tokens/codegen"
)

// Lifecycle errors surfaced by the store. The transaction classifies a failed
// conditional update into one of these so callers can report precisely.
var (
	ErrNotFound       = errors.New("token not found")
	ErrAlreadyUsed    = errors.New("token already used")
	ErrNotActive      = errors.New("token not active")
	ErrNotUsed        = errors.New("token not used")
	ErrExpired        = errors.New("token expired")
	ErrCodeAllocation = errors.New("could not allocate token code")
)

// CodeFunc produces a candidate token code. Insert sites retry it on
// uniqueness violations, bounded by codegen.MaxAttempts.
type CodeFunc func() (string, error)

type DB struct {
	Bun *bun.DB
}

// CheckIn redeems a token atomically. The update carries the full
// precondition predicate so that of two concurrent attempts exactly one
// succeeds; the loser sees zero rows affected and gets a classified error.
func (d *DB) CheckIn(code string, actorID *string, details string) (*models.Token, error) {
	var token models.Token
	err := d.Bun.RunInTx(context.Background(), &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		res, err := tx.NewUpdate().
			Model((*models.Token)(nil)).
			Set("used = ?", true).
			Set("used_by = ?", actorID).
			Set("used_at = ?", now).
			Set("status = ?", models.TokenUsed).
			Where("token_code = ?", code).
			Where("used = ?", false).
			Where("(expires_at IS NULL OR expires_at >= ?)", now).
			Where("(status IS NULL OR status = ?)", models.TokenActive).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return d.classifyRedeemFailure(ctx, tx, code, now)
		}
		if err := tx.NewSelect().Model(&token).Where("token_code = ?", code).Limit(1).Scan(ctx); err != nil {
			return err
		}
		return insertAudit(ctx, tx, token.ID, models.AuditCheckedIn, actorID, details)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ManualCheckIn is the administrative redemption path. Unlike CheckIn it
// reports "not active" and "already used" as distinct failures.
func (d *DB) ManualCheckIn(code string, performedBy *string, details string) (*models.Token, error) {
	var token models.Token
	err := d.Bun.RunInTx(context.Background(), &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		if err := tx.NewSelect().Model(&token).Where("token_code = ?", code).Limit(1).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if token.Status != "" && token.Status != models.TokenActive {
			if token.Used {
				return ErrAlreadyUsed
			}
			return ErrNotActive
		}
		if token.Used {
			return ErrAlreadyUsed
		}
		if token.ExpiresAt != nil && token.ExpiresAt.Before(now) {
			return ErrExpired
		}
		res, err := tx.NewUpdate().
			Model((*models.Token)(nil)).
			Set("used = ?", true).
			Set("used_by = ?", performedBy).
			Set("used_at = ?", now).
			Set("status = ?", models.TokenUsed).
			Where("id = ?", token.ID).
			Where("used = ?", false).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			// Raced with another check-in between the select and the update.
			return ErrAlreadyUsed
		}
		if err := tx.NewSelect().Model(&token).Where("id = ?", token.ID).Limit(1).Scan(ctx); err != nil {
			return err
		}
		return insertAudit(ctx, tx, token.ID, models.AuditManualCheckin, performedBy, details)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// UndoCheckIn reverses a redemption, returning the token to the active pool.
func (d *DB) UndoCheckIn(code string, performedBy *string, details string) (*models.Token, error) {
	var token models.Token
	err := d.Bun.RunInTx(context.Background(), &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&token).Where("token_code = ?", code).Limit(1).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		res, err := tx.NewUpdate().
			Model((*models.Token)(nil)).
			Set("used = ?", false).
			Set("used_by = NULL").
			Set("used_at = NULL").
			Set("status = ?", models.TokenActive).
			Where("id = ?", token.ID).
			Where("used = ?", true).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotUsed
		}
		if err := tx.NewSelect().Model(&token).Where("id = ?", token.ID).Limit(1).Scan(ctx); err != nil {
			return err
		}
		return insertAudit(ctx, tx, token.ID, models.AuditUndoCheckin, performedBy, details)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Reissue replaces the anchor token's (event, house) credential: every token
// for that pair still active and unused is revoked, including the anchor
// itself when it qualifies, then a fresh active token is inserted. The
// revoked rows are returned so the caller can clean up rendered artifacts.
func (d *DB) Reissue(code string, performedBy *string, gen CodeFunc, details string) (*models.Token, []models.Token, error) {
	var newToken models.Token
	var revoked []models.Token
	err := d.Bun.RunInTx(context.Background(), &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var anchor models.Token
		if err := tx.NewSelect().Model(&anchor).Where("token_code = ?", code).Limit(1).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var candidateIDs []int64
		err := tx.NewSelect().
			Model((*models.Token)(nil)).
			Column("id").
			Where("event_id = ?", anchor.EventID).
			Where("house_id = ?", anchor.HouseID).
			Where("(status IS NULL OR status = ?)", models.TokenActive).
			Where("used = ?", false).
			Scan(ctx, &candidateIDs)
		if err != nil {
			return err
		}
		if len(candidateIDs) > 0 {
			// Re-check the predicate in the update so rows redeemed by a
			// concurrent check-in are left alone.
			_, err = tx.NewUpdate().
				Model((*models.Token)(nil)).
				Set("status = ?", models.TokenRevoked).
				Where("id IN (?)", bun.In(candidateIDs)).
				Where("(status IS NULL OR status = ?)", models.TokenActive).
				Where("used = ?", false).
				Exec(ctx)
			if err != nil {
				return err
			}
			err = tx.NewSelect().
				Model(&revoked).
				Where("id IN (?)", bun.In(candidateIDs)).
				Where("status = ?", models.TokenRevoked).
				Scan(ctx)
			if err != nil {
				return err
			}
		}

		inserted := false
		for attempt := 0; attempt < codegen.MaxAttempts; attempt++ {
			newCode, err := gen()
			if err != nil {
				return fmt.Errorf("generate token code: %w", err)
			}
			newToken = models.Token{
				TokenCode: newCode,
				EventID:   anchor.EventID,
				HouseID:   anchor.HouseID,
				Status:    models.TokenActive,
				IssuedAt:  time.Now(),
			}
			_, err = tx.NewInsert().Model(&newToken).Exec(ctx)
			if err != nil {
				if isUniqueViolation(err) {
					continue
				}
				return err
			}
			inserted = true
			break
		}
		if !inserted {
			return ErrCodeAllocation
		}
		return insertAudit(ctx, tx, newToken.ID, models.AuditReissue, performedBy, details)
	})
	if err != nil {
		return nil, nil, err
	}
	return &newToken, revoked, nil
}

// IssueToken inserts a fresh active token for a household within an event.
// This is initial creation, not a lifecycle transition, so no audit entry is
// written (matching the issuance script's behavior).
func (d *DB) IssueToken(eventID, houseID int64, gen CodeFunc) (*models.Token, error) {
	for attempt := 0; attempt < codegen.MaxAttempts; attempt++ {
		code, err := gen()
		if err != nil {
			return nil, fmt.Errorf("generate token code: %w", err)
		}
		token := models.Token{
			TokenCode: code,
			EventID:   eventID,
			HouseID:   houseID,
			Status:    models.TokenActive,
			IssuedAt:  time.Now(),
		}
		_, err = d.Bun.NewInsert().Model(&token).Exec(context.Background())
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}
		return &token, nil
	}
	return nil, ErrCodeAllocation
}

func (d *DB) classifyRedeemFailure(ctx context.Context, tx bun.Tx, code string, now time.Time) error {
	var token models.Token
	if err := tx.NewSelect().Model(&token).Where("token_code = ?", code).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	switch {
	case token.Used:
		return ErrAlreadyUsed
	case token.ExpiresAt != nil && token.ExpiresAt.Before(now):
		return ErrExpired
	default:
		return ErrNotActive
	}
}

func insertAudit(ctx context.Context, tx bun.Tx, tokenID int64, action string, performedBy *string, details string) error {
	audit := models.TokenAudit{
		TokenID:     tokenID,
		Action:      action,
		PerformedBy: performedBy,
		Details:     details,
		CreatedAt:   time.Now(),
	}
	_, err := tx.NewInsert().Model(&audit).Exec(ctx)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "constraint failed: tokens.token_code")
}
