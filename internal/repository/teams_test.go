//go:build integration

package repository

import (
	"errors"
	"testing"

	"sportschatplus/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamRepository_CreateAndFind(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	seed := 3
	team := models.NewTeam("Duke", &seed)
	require.NoError(t, db.Teams().Create(ctx, team), "Should insert team")
	assert.NotEmpty(t, team.ID)

	retrieved, err := db.Teams().FindByName(ctx, "Duke")
	require.NoError(t, err, "Should retrieve team by name")
	assert.Equal(t, 0, retrieved.Wins)
	assert.Equal(t, 0, retrieved.Losses)
	require.NotNil(t, retrieved.Seed)
	assert.Equal(t, 3, *retrieved.Seed)

	_, err = db.Teams().FindByName(ctx, "duke")
	assert.True(t, errors.Is(err, ErrNotFound), "Name match is exact")
}

func TestTeamRepository_CreateTwice(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	require.NoError(t, db.Teams().Create(ctx, models.NewTeam("Houston", nil)))
	require.NoError(t, db.Teams().Create(ctx, models.NewTeam("Houston", nil)), "Existing name is not an error")

	n, err := db.Teams().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFetchLogRepository_Append(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	entry := &models.FetchLog{
		RunID:      "run-1",
		Sport:      "baseball",
		Results:    &models.CycleResults{NewGames: 1},
		DurationMS: 120,
		FetchCount: 1,
	}
	require.NoError(t, db.FetchLogs().Append(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
}
