// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"sit/internal/cache"
	"sit/internal/middleware"
	"sit/internal/models"
	"sit/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
// String ids are the external-facing stable identifiers; uint ids are
// storage-assigned primary keys.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	CheckUsernameExists(ctx context.Context, username string) (bool, error)
	Delete(ctx context.Context, id uint) (*models.User, error)
	DeleteByExternalID(ctx context.Context, userID string) (*models.User, error)
	PartialUpdate(ctx context.Context, userID string, updates map[string]any) (*models.User, error)
	UpdatePreferences(ctx context.Context, userID string, theme models.Theme, accent models.Accent) (*models.User, error)
	RenameUsername(ctx context.Context, userID, newUsername string) (*models.User, error)
	ToggleStatsSit(ctx context.Context, userID, sitID string) (*models.User, error)
	ToggleStatsLike(ctx context.Context, userID, sitID string) (*models.User, error)
	ToggleBookmark(ctx context.Context, userID string, bookmark models.Bookmark) (*models.User, error)
	ClearBookmarks(ctx context.Context, userID string) (*models.User, error)
	RemoveSitReferences(ctx context.Context, sitID string) (int, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	existing, err := r.findByExternalID(ctx, user.UserID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User with this id already exists")
	}

	taken, err := r.CheckUsernameExists(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError("Username already exists")
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Version == 0 {
		user.Version = 1
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("User with this id already exists")
		}
		return nil, models.NewStorageError(err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, models.NewStorageError(err)
	}
	return users, nil
}

// userCacheEntry carries the storage-only fields the entity's JSON tags hide
// (`json:"-"`) through the cache round-trip. Caching the entity directly
// would hand back rows with a zero storage id and version on a cache hit.
type userCacheEntry struct {
	User      models.User `json:"user"`
	StorageID uint        `json:"storageId"`
	Version   uint        `json:"version"`
}

func newUserCacheEntry(u *models.User) userCacheEntry {
	return userCacheEntry{User: *u, StorageID: u.ID, Version: u.Version}
}

func (e userCacheEntry) restore() *models.User {
	user := e.User
	user.ID = e.StorageID
	user.Version = e.Version
	return &user
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var entry userCacheEntry
	err := cache.Aside(ctx, cache.UsernameKey(username), &entry, cache.UserTTL, func() error {
		var user models.User
		if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", username)
			}
			return models.NewStorageError(err)
		}
		entry = newUserCacheEntry(&user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry.restore(), nil
}

func (r *userRepository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	var entry userCacheEntry
	err := cache.Aside(ctx, cache.UserKey(userID), &entry, cache.UserTTL, func() error {
		found, err := r.findByExternalID(ctx, userID)
		if err != nil {
			return err
		}
		entry = newUserCacheEntry(found)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry.restore(), nil
}

// findByExternalID bypasses the cache; mutating operations use it to read
// the current row before a conditional write.
func (r *userRepository) findByExternalID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, models.NewStorageError(err)
	}
	return &user, nil
}

func (r *userRepository) CheckUsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, models.NewStorageError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewStorageError(err)
	}
	if err := r.db.WithContext(ctx).Delete(&models.User{}, id).Error; err != nil {
		return nil, models.NewStorageError(err)
	}
	cache.InvalidateUser(ctx, user.UserID, user.Username)
	return &user, nil
}

func (r *userRepository) DeleteByExternalID(ctx context.Context, userID string) (*models.User, error) {
	user, err := r.findByExternalID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.Delete(ctx, user.ID)
}

func (r *userRepository) PartialUpdate(ctx context.Context, userID string, updates map[string]any) (*models.User, error) {
	return r.mutate(ctx, userID, "partial_update", func(user *models.User) map[string]any {
		merged := make(map[string]any, len(updates)+1)
		for k, v := range updates {
			merged[k] = v
		}
		return merged
	})
}

func (r *userRepository) UpdatePreferences(ctx context.Context, userID string, theme models.Theme, accent models.Accent) (*models.User, error) {
	return r.mutate(ctx, userID, "preferences", func(user *models.User) map[string]any {
		return map[string]any{
			"theme":  theme,
			"accent": accent,
		}
	})
}

func (r *userRepository) RenameUsername(ctx context.Context, userID, newUsername string) (*models.User, error) {
	var holder models.User
	err := r.db.WithContext(ctx).Where("username = ?", newUsername).First(&holder).Error
	switch {
	case err == nil:
		if holder.UserID == userID {
			// Renaming to the current name is a no-op, not a conflict.
			return &holder, nil
		}
		return nil, models.NewConflictError("Username already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Free to take.
	default:
		return nil, models.NewStorageError(err)
	}

	return r.mutate(ctx, userID, "rename", func(user *models.User) map[string]any {
		return map[string]any{"username": newUsername}
	})
}

func (r *userRepository) ToggleStatsSit(ctx context.Context, userID, sitID string) (*models.User, error) {
	return r.mutate(ctx, userID, "toggle_stats_sit", func(user *models.User) map[string]any {
		stats := user.Stats
		stats.Sits = stats.Sits.Toggle(sitID)
		stats.UpdatedAt = time.Now().UTC()
		return map[string]any{"stats": stats}
	})
}

func (r *userRepository) ToggleStatsLike(ctx context.Context, userID, sitID string) (*models.User, error) {
	return r.mutate(ctx, userID, "toggle_stats_like", func(user *models.User) map[string]any {
		stats := user.Stats
		stats.Likes = stats.Likes.Toggle(sitID)
		stats.UpdatedAt = time.Now().UTC()
		return map[string]any{"stats": stats}
	})
}

func (r *userRepository) ToggleBookmark(ctx context.Context, userID string, bookmark models.Bookmark) (*models.User, error) {
	return r.mutate(ctx, userID, "toggle_bookmark", func(user *models.User) map[string]any {
		return map[string]any{"bookmarks": user.Bookmarks.Toggle(bookmark)}
	})
}

func (r *userRepository) ClearBookmarks(ctx context.Context, userID string) (*models.User, error) {
	return r.mutate(ctx, userID, "clear_bookmarks", func(user *models.User) map[string]any {
		return map[string]any{"bookmarks": models.BookmarkList{}}
	})
}

// RemoveSitReferences scrubs a deleted sit's id from every user's stats and
// bookmarks. Rows are rewritten one at a time under CAS; a row that raced
// with another writer is re-read and retried.
func (r *userRepository) RemoveSitReferences(ctx context.Context, sitID string) (int, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return 0, models.NewStorageError(err)
	}

	scrubbed := 0
	for i := range users {
		u := &users[i]
		if !u.Stats.Likes.Contains(sitID) && !u.Stats.Sits.Contains(sitID) && !u.Bookmarks.Contains(sitID) {
			continue
		}
		if _, err := r.mutate(ctx, u.UserID, "scrub_sit_refs", func(user *models.User) map[string]any {
			stats := user.Stats
			stats.Likes = stats.Likes.Without(sitID)
			stats.Sits = stats.Sits.Without(sitID)
			stats.UpdatedAt = time.Now().UTC()
			bookmarks := make(models.BookmarkList, 0, len(user.Bookmarks))
			for _, b := range user.Bookmarks {
				if b.ID != sitID {
					bookmarks = append(bookmarks, b)
				}
			}
			return map[string]any{"stats": stats, "bookmarks": bookmarks}
		}); err != nil {
			return scrubbed, err
		}
		scrubbed++
	}
	if scrubbed > 0 {
		middleware.CascadeScrubbedRows.WithLabelValues("users").Add(float64(scrubbed))
	}
	return scrubbed, nil
}

// mutate runs a read-modify-write cycle on the user addressed by external id,
// guarded by the version column. compute receives the freshly-read row and
// returns the columns to write; updated_at is always set.
func (r *userRepository) mutate(ctx context.Context, userID, operation string, compute func(*models.User) map[string]any) (*models.User, error) {
	ctx, span := observability.RepositorySpan(ctx, operation, "users")
	defer span.End()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		user, err := r.findByExternalID(ctx, userID)
		if err != nil {
			observability.RecordErrorInContext(ctx, err)
			return nil, err
		}

		updates := compute(user)
		updates["updated_at"] = time.Now().UTC()

		err = casUpdate(r.db.WithContext(ctx), &models.User{}, user.ID, user.Version, updates)
		if errors.Is(err, errStaleVersion) {
			recordRetry("users", attempt == maxCASAttempts-1)
			continue
		}
		if err != nil {
			observability.RecordErrorInContext(ctx, err)
			return nil, models.NewStorageError(err)
		}

		cache.InvalidateUser(ctx, user.UserID, user.Username)
		return r.findByExternalID(ctx, userID)
	}

	err := models.NewConflictError("User was modified concurrently, please retry")
	observability.RecordErrorInContext(ctx, err)
	return nil, err
}

func isNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Kind == models.KindNotFound
}
