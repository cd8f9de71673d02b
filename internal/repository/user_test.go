package repository

import (
	"context"
	"testing"
	"time"

	"sit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{UserID: "u1", Username: "jane_doe", Name: "Jane"}
	created, err := repo.Create(ctx, user)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.EqualValues(t, 1, created.Version)
	assert.False(t, created.CreatedAt.IsZero())

	t.Run("Duplicate External ID", func(t *testing.T) {
		_, err := repo.Create(ctx, &models.User{UserID: "u1", Username: "other", Name: "Other"})
		require.Error(t, err)
		assert.Equal(t, 409, models.StatusForError(err))
	})

	t.Run("Duplicate Username", func(t *testing.T) {
		_, err := repo.Create(ctx, &models.User{UserID: "u2", Username: "jane_doe", Name: "Other"})
		require.Error(t, err)
		assert.Equal(t, 409, models.StatusForError(err))
	})

	t.Run("No Duplicate Row Left Behind", func(t *testing.T) {
		users, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})
}

func TestUserRepositoryLookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", "jane_doe")

	t.Run("FindByUsername", func(t *testing.T) {
		user, err := repo.FindByUsername(ctx, "jane_doe")
		require.NoError(t, err)
		assert.Equal(t, "u1", user.UserID)
	})

	t.Run("FindByID", func(t *testing.T) {
		user, err := repo.FindByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "jane_doe", user.Username)
	})

	t.Run("Missing Is NotFound", func(t *testing.T) {
		_, err := repo.FindByID(ctx, "ghost")
		require.Error(t, err)
		assert.Equal(t, 404, models.StatusForError(err))
	})

	t.Run("CheckUsernameExists", func(t *testing.T) {
		taken, err := repo.CheckUsernameExists(ctx, "jane_doe")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.CheckUsernameExists(ctx, "free_name")
		require.NoError(t, err)
		assert.False(t, taken)
	})
}

func TestUserRepositoryPartialUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", "jane_doe")

	updated, err := repo.PartialUpdate(ctx, "u1", map[string]any{
		"bio":          "new bio",
		"verified":     true,
		"total_tweets": 5,
		"following":    models.StringList{"u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "new bio", updated.Bio)
	assert.True(t, updated.Verified)
	assert.Equal(t, 5, updated.TotalTweets)
	assert.Equal(t, models.StringList{"u2"}, updated.Following)
	assert.EqualValues(t, 2, updated.Version)
}

func TestUserRepositoryPreferencesAndRename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", "carol")
	seedUser(t, db, "u2", "dave")

	t.Run("UpdatePreferences", func(t *testing.T) {
		user, err := repo.UpdatePreferences(ctx, "u1", models.ThemeDark, models.AccentPink)
		require.NoError(t, err)
		assert.Equal(t, models.ThemeDark, user.Theme)
		assert.Equal(t, models.AccentPink, user.Accent)
	})

	t.Run("Rename To Taken Name Conflicts", func(t *testing.T) {
		_, err := repo.RenameUsername(ctx, "u2", "carol")
		require.Error(t, err)
		assert.Equal(t, 409, models.StatusForError(err))

		// both rows unchanged
		first, err := repo.FindByID(ctx, "u1")
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "carol", first.Username)
		assert.Equal(t, "dave", second.Username)
	})

	t.Run("Rename To Own Name Succeeds", func(t *testing.T) {
		user, err := repo.RenameUsername(ctx, "u1", "carol")
		require.NoError(t, err)
		assert.Equal(t, "carol", user.Username)
	})

	t.Run("Rename To Free Name", func(t *testing.T) {
		user, err := repo.RenameUsername(ctx, "u2", "david")
		require.NoError(t, err)
		assert.Equal(t, "david", user.Username)
	})
}

func TestUserRepositoryStatsToggles(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", "jane_doe")

	user, err := repo.ToggleStatsLike(ctx, "u1", "42")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"42"}, user.Stats.Likes)
	assert.False(t, user.Stats.UpdatedAt.IsZero())

	user, err = repo.ToggleStatsLike(ctx, "u1", "42")
	require.NoError(t, err)
	assert.Empty(t, user.Stats.Likes)

	user, err = repo.ToggleStatsSit(ctx, "u1", "7")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"7"}, user.Stats.Sits)
}

func TestUserRepositoryBookmarks(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", "jane_doe")

	bookmark := models.Bookmark{ID: "7", CreatedAt: time.Now().UTC()}
	user, err := repo.ToggleBookmark(ctx, "u1", bookmark)
	require.NoError(t, err)
	require.Len(t, user.Bookmarks, 1)
	assert.Equal(t, "7", user.Bookmarks[0].ID)

	// removal matches on id regardless of the new record's timestamp
	user, err = repo.ToggleBookmark(ctx, "u1", models.Bookmark{ID: "7", CreatedAt: time.Now().UTC().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, user.Bookmarks)

	_, err = repo.ToggleBookmark(ctx, "u1", models.Bookmark{ID: "8"})
	require.NoError(t, err)
	_, err = repo.ToggleBookmark(ctx, "u1", models.Bookmark{ID: "9"})
	require.NoError(t, err)

	user, err = repo.ClearBookmarks(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.Bookmarks)
}

func TestUserRepositoryDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seeded := seedUser(t, db, "u1", "jane_doe")

	t.Run("By Storage ID", func(t *testing.T) {
		deleted, err := repo.Delete(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, "u1", deleted.UserID)

		_, err = repo.Delete(ctx, seeded.ID)
		require.Error(t, err)
		assert.Equal(t, 404, models.StatusForError(err))
	})

	t.Run("By External ID", func(t *testing.T) {
		seedUser(t, db, "u2", "john_doe")
		deleted, err := repo.DeleteByExternalID(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "john_doe", deleted.Username)

		_, err = repo.DeleteByExternalID(ctx, "u2")
		require.Error(t, err)
		assert.Equal(t, 404, models.StatusForError(err))
	})
}

func TestUserRepositoryRemoveSitReferences(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	seedUser(t, db, "u1", "jane_doe")
	seedUser(t, db, "u2", "john_doe")
	seedUser(t, db, "u3", "untouched")

	_, err := repo.ToggleStatsLike(ctx, "u1", "42")
	require.NoError(t, err)
	_, err = repo.ToggleBookmark(ctx, "u1", models.Bookmark{ID: "42"})
	require.NoError(t, err)
	_, err = repo.ToggleStatsSit(ctx, "u2", "42")
	require.NoError(t, err)
	_, err = repo.ToggleStatsLike(ctx, "u3", "99")
	require.NoError(t, err)

	scrubbed, err := repo.RemoveSitReferences(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, scrubbed)

	first, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, first.Stats.Likes)
	assert.Empty(t, first.Bookmarks)

	second, err := repo.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, second.Stats.Sits)

	third, err := repo.FindByID(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"99"}, third.Stats.Likes)
}
