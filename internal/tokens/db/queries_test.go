package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relief-tokens/internal/models"
	"relief-tokens/internal/tokens/codegen"
	"relief-tokens/internal/tokens/db"
)

func TestGetTokenByCodeJoinsEventAndHouse(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()
	eventID, houseID := seedEventAndHouse(t, bunDB)
	token := issueToken(t, store, eventID, houseID)

	row, err := store.GetTokenByCode(token.TokenCode)
	require.NoError(t, err)
	assert.Equal(t, token.TokenCode, row.TokenCode)
	assert.Equal(t, "Distribution Round 1", row.EventName)
	assert.Equal(t, "H-001", row.HouseCode)
	assert.Equal(t, "Test Owner", row.OwnerName)

	_, err = store.GetTokenByCode("NOSUCHCODE12")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListTokensFiltersByEvent(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()
	eventID, houseID := seedEventAndHouse(t, bunDB)

	for i := 0; i < 3; i++ {
		issueToken(t, store, eventID, houseID)
	}

	rows, err := store.ListTokens(&eventID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	// Newest first
	assert.Greater(t, rows[0].ID, rows[2].ID)

	missing := eventID + 99
	rows, err = store.ListTokens(&missing, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHouseIDsWithTokensIgnoresRevoked(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()
	eventID, houseID := seedEventAndHouse(t, bunDB)

	token := issueToken(t, store, eventID, houseID)
	ids, err := store.HouseIDsWithTokens(eventID)
	require.NoError(t, err)
	assert.Equal(t, []int64{houseID}, ids)

	// Revoking the only token frees the household for re-issuance
	caller := "admin-1"
	_, revoked, err := store.Reissue(token.TokenCode, &caller, issueGen(t), "")
	require.NoError(t, err)
	require.Len(t, revoked, 1)

	ids, err = store.HouseIDsWithTokens(eventID)
	require.NoError(t, err)
	// The replacement token still covers the household
	assert.Equal(t, []int64{houseID}, ids)
}

func TestEventTokenRowsOrdered(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()
	eventID, houseID := seedEventAndHouse(t, bunDB)

	first := issueToken(t, store, eventID, houseID)
	second := issueToken(t, store, eventID, houseID)

	rows, err := store.EventTokenRows(eventID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.TokenCode, rows[0].TokenCode)
	assert.Equal(t, second.TokenCode, rows[1].TokenCode)
	for _, row := range rows {
		assert.Equal(t, models.TokenActive, row.Status)
	}
}

func issueGen(t *testing.T) db.CodeFunc {
	t.Helper()
	return codegen.New().NewCode
}
