package repository

import (
	"context"
	"testing"

	"sit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCASUpdate(t *testing.T) {
	db := setupTestDB(t)
	sit := seedSit(t, db, "guarded", "u1")

	t.Run("Matching Version Writes And Bumps", func(t *testing.T) {
		err := casUpdate(db, &models.Sit{}, sit.ID, 1, map[string]any{"text": "first write"})
		require.NoError(t, err)

		var fresh models.Sit
		require.NoError(t, db.First(&fresh, sit.ID).Error)
		assert.Equal(t, "first write", fresh.Text)
		assert.EqualValues(t, 2, fresh.Version)
	})

	t.Run("Stale Version Writes Nothing", func(t *testing.T) {
		err := casUpdate(db, &models.Sit{}, sit.ID, 1, map[string]any{"text": "lost update"})
		assert.ErrorIs(t, err, errStaleVersion)

		var fresh models.Sit
		require.NoError(t, db.First(&fresh, sit.ID).Error)
		assert.Equal(t, "first write", fresh.Text)
		assert.EqualValues(t, 2, fresh.Version)
	})
}

// A writer that sneaks in between the read and the conditional write forces a
// retry; the toggle must still land exactly once.
func TestMutateRetriesOnConcurrentWrite(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSitRepository(db).(*sitRepository)
	ctx := context.Background()
	sit := seedSit(t, db, "contended", "u1")

	interfered := false
	result, err := repo.mutate(ctx, sit.ID, "toggle_like", func(s *models.Sit) map[string]any {
		if !interfered {
			interfered = true
			// out-of-band version bump simulating a concurrent writer
			require.NoError(t, db.Model(&models.Sit{}).
				Where("id = ?", s.ID).
				Update("version", s.Version+1).Error)
		}
		return map[string]any{"user_likes": s.UserLikes.Toggle("bob")}
	})
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"bob"}, result.UserLikes)
}

func TestMutateConflictAfterExhaustedRetries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSitRepository(db).(*sitRepository)
	ctx := context.Background()
	sit := seedSit(t, db, "hot row", "u1")

	_, err := repo.mutate(ctx, sit.ID, "toggle_like", func(s *models.Sit) map[string]any {
		// every attempt loses the race
		require.NoError(t, db.Model(&models.Sit{}).
			Where("id = ?", s.ID).
			Update("version", s.Version+1).Error)
		return map[string]any{"user_likes": s.UserLikes.Toggle("bob")}
	})
	require.Error(t, err)
	assert.Equal(t, 409, models.StatusForError(err))
}
