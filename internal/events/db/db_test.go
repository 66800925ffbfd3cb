package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	eventdb "relief-tokens/internal/events/db"
	"relief-tokens/internal/models"
	"relief-tokens/internal/tokens/codegen"
	tokendb "relief-tokens/internal/tokens/db"
)

func setupTestDB(t *testing.T) (*eventdb.DB, *tokendb.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// Every connection to :memory: is a separate database, so keep one.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.House)(nil),
		(*models.Token)(nil),
		(*models.TokenAudit)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return &eventdb.DB{Bun: bunDB}, &tokendb.DB{Bun: bunDB}, bunDB
}

func seedHouse(t *testing.T, bunDB *bun.DB, code string) int64 {
	house := models.House{HouseCode: code, OwnerName: "Owner " + code, CreatedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(&house).Exec(context.Background())
	require.NoError(t, err)
	return house.ID
}

func TestCreateAndGetEvent(t *testing.T) {
	events, _, bunDB := setupTestDB(t)
	defer bunDB.Close()

	created, err := events.CreateEvent("Distribution Round 1")
	require.NoError(t, err)
	assert.Equal(t, models.EventActive, created.Status)

	got, err := events.GetEventByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Distribution Round 1", got.Name)

	_, err = events.GetEventByID(created.ID + 99)
	assert.ErrorIs(t, err, eventdb.ErrNotFound)
}

func TestSetEventStatus(t *testing.T) {
	events, _, bunDB := setupTestDB(t)
	defer bunDB.Close()

	created, err := events.CreateEvent("Distribution Round 1")
	require.NoError(t, err)

	closed, err := events.SetEventStatus(created.ID, models.EventClosed)
	require.NoError(t, err)
	assert.Equal(t, models.EventClosed, closed.Status)

	_, err = events.SetEventStatus(created.ID+99, models.EventClosed)
	assert.ErrorIs(t, err, eventdb.ErrNotFound)
}

func TestEventStatsAggregates(t *testing.T) {
	events, tokens, bunDB := setupTestDB(t)
	defer bunDB.Close()

	event, err := events.CreateEvent("Distribution Round 1")
	require.NoError(t, err)

	gen := codegen.New().NewCode
	caller := "admin-1"

	// Three households: one redeemed, one reissued, one untouched
	for i, code := range []string{"H-001", "H-002", "H-003"} {
		houseID := seedHouse(t, bunDB, code)
		token, err := tokens.IssueToken(event.ID, houseID, gen)
		require.NoError(t, err)

		switch i {
		case 0:
			_, err = tokens.CheckIn(token.TokenCode, &caller, "")
			require.NoError(t, err)
		case 1:
			_, _, err = tokens.Reissue(token.TokenCode, &caller, gen, "")
			require.NoError(t, err)
		}
	}

	stats, err := events.EventStats(event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, stats.EventID)
	assert.Equal(t, 4, stats.Total) // 3 issued + 1 replacement
	assert.Equal(t, 1, stats.Collected)
	assert.Equal(t, 2, stats.Pending) // replacement + untouched
	assert.Equal(t, 1, stats.Revoked)

	list, err := events.ListEventStats()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stats.Total, list[0].Total)
}
