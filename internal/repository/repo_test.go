package repository

import (
	"testing"

	"sit/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Sit{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, userID, username string) *models.User {
	t.Helper()
	user := &models.User{
		UserID:   userID,
		Username: username,
		Name:     "Test User",
		Version:  1,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSit(t *testing.T, db *gorm.DB, text, createdBy string, mutators ...func(*models.Sit)) *models.Sit {
	t.Helper()
	sit := &models.Sit{
		Text:      text,
		CreatedBy: createdBy,
		Version:   1,
	}
	for _, m := range mutators {
		m(sit)
	}
	require.NoError(t, db.Create(sit).Error)
	return sit
}
