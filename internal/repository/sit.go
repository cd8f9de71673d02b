package repository

import (
	"context"
	"errors"
	"time"

	"sit/internal/cache"
	"sit/internal/middleware"
	"sit/internal/models"
	"sit/internal/observability"

	"gorm.io/gorm"
)

// SitQuery holds the combinable filters for listing sits.
// An explicit ParentID filter takes precedence over TopLevelOnly; asking for
// the replies of a specific sit and for top-level sits at once cannot both be
// satisfied, and the more specific filter wins.
type SitQuery struct {
	ParentID     string
	CreatedBy    string
	TopLevelOnly bool
	ResitBy      string
}

// SitRepository defines persistence operations for sits.
type SitRepository interface {
	Create(ctx context.Context, sit *models.Sit) (*models.Sit, error)
	Query(ctx context.Context, q SitQuery) ([]models.Sit, error)
	FindByID(ctx context.Context, id uint) (*models.Sit, error)
	ListExcludingAuthorAndResitter(ctx context.Context, userID string) ([]models.Sit, error)
	ListLikedBy(ctx context.Context, userID string) ([]models.Sit, error)
	ListWithMedia(ctx context.Context) ([]models.Sit, error)
	Delete(ctx context.Context, id uint) (*models.Sit, error)
	PartialUpdate(ctx context.Context, id uint, updates map[string]any) (*models.Sit, error)
	ToggleResit(ctx context.Context, id uint, userID string) (*models.Sit, error)
	ToggleLike(ctx context.Context, id uint, userID string) (*models.Sit, error)
	IncrementReplies(ctx context.Context, id uint) error
	RemoveUserReferences(ctx context.Context, userID string) (int, error)
}

type sitRepository struct {
	db *gorm.DB
}

// NewSitRepository returns a new SitRepository implementation.
func NewSitRepository(db *gorm.DB) SitRepository {
	return &sitRepository{db: db}
}

func (r *sitRepository) Create(ctx context.Context, sit *models.Sit) (*models.Sit, error) {
	now := time.Now().UTC()
	sit.CreatedAt = now
	sit.UpdatedAt = now
	if sit.Version == 0 {
		sit.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(sit).Error; err != nil {
		return nil, models.NewStorageError(err)
	}
	return sit, nil
}

// Query lists sits newest-first. Scalar filters are pushed into SQL; filters
// over JSON array membership and the parent reference are applied in memory,
// which keeps the query portable across the supported databases and is
// adequate at the collection sizes this service targets.
func (r *sitRepository) Query(ctx context.Context, q SitQuery) ([]models.Sit, error) {
	db := r.db.WithContext(ctx).Order("created_at DESC")
	if q.CreatedBy != "" {
		db = db.Where("created_by = ?", q.CreatedBy)
	}
	if q.TopLevelOnly && q.ParentID == "" {
		db = db.Where("parent IS NULL")
	}

	var sits []models.Sit
	if err := db.Find(&sits).Error; err != nil {
		return nil, models.NewStorageError(err)
	}

	if q.ParentID == "" && q.ResitBy == "" {
		return sits, nil
	}

	filtered := make([]models.Sit, 0, len(sits))
	for _, s := range sits {
		if q.ParentID != "" && (s.Parent == nil || s.Parent.ID != q.ParentID) {
			continue
		}
		if q.ResitBy != "" && !s.UserResits.Contains(q.ResitBy) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered, nil
}

// sitCacheEntry keeps the version column, which the entity's JSON tags hide,
// intact across the cache round-trip.
type sitCacheEntry struct {
	Sit     models.Sit `json:"sit"`
	Version uint       `json:"version"`
}

func (r *sitRepository) FindByID(ctx context.Context, id uint) (*models.Sit, error) {
	var entry sitCacheEntry
	err := cache.Aside(ctx, cache.SitKey(id), &entry, cache.SitTTL, func() error {
		var sit models.Sit
		if err := r.first(ctx, id, &sit); err != nil {
			return err
		}
		entry = sitCacheEntry{Sit: sit, Version: sit.Version}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sit := entry.Sit
	sit.Version = entry.Version
	return &sit, nil
}

func (r *sitRepository) first(ctx context.Context, id uint, sit *models.Sit) error {
	if err := r.db.WithContext(ctx).First(sit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Sit", id)
		}
		return models.NewStorageError(err)
	}
	return nil
}

// ListExcludingAuthorAndResitter is the discovery feed: every sit the given
// user neither authored nor already resat, newest-first.
func (r *sitRepository) ListExcludingAuthorAndResitter(ctx context.Context, userID string) ([]models.Sit, error) {
	sits, err := r.allSorted(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]models.Sit, 0, len(sits))
	for _, s := range sits {
		if s.CreatedBy == userID || s.UserResits.Contains(userID) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *sitRepository) ListLikedBy(ctx context.Context, userID string) ([]models.Sit, error) {
	sits, err := r.allSorted(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]models.Sit, 0, len(sits))
	for _, s := range sits {
		if s.UserLikes.Contains(userID) {
			result = append(result, s)
		}
	}
	return result, nil
}

// ListWithMedia returns sits carrying at least one image. A present but empty
// images list does not qualify.
func (r *sitRepository) ListWithMedia(ctx context.Context) ([]models.Sit, error) {
	sits, err := r.allSorted(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]models.Sit, 0, len(sits))
	for _, s := range sits {
		if s.HasMedia() {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *sitRepository) allSorted(ctx context.Context) ([]models.Sit, error) {
	var sits []models.Sit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&sits).Error; err != nil {
		return nil, models.NewStorageError(err)
	}
	return sits, nil
}

func (r *sitRepository) Delete(ctx context.Context, id uint) (*models.Sit, error) {
	var sit models.Sit
	if err := r.first(ctx, id, &sit); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&models.Sit{}, id).Error; err != nil {
		return nil, models.NewStorageError(err)
	}
	cache.InvalidateSit(ctx, id)
	return &sit, nil
}

func (r *sitRepository) PartialUpdate(ctx context.Context, id uint, updates map[string]any) (*models.Sit, error) {
	return r.mutate(ctx, id, "partial_update", func(sit *models.Sit) map[string]any {
		merged := make(map[string]any, len(updates)+1)
		for k, v := range updates {
			merged[k] = v
		}
		return merged
	})
}

func (r *sitRepository) ToggleResit(ctx context.Context, id uint, userID string) (*models.Sit, error) {
	return r.mutate(ctx, id, "toggle_resit", func(sit *models.Sit) map[string]any {
		return map[string]any{"user_resits": sit.UserResits.Toggle(userID)}
	})
}

func (r *sitRepository) ToggleLike(ctx context.Context, id uint, userID string) (*models.Sit, error) {
	return r.mutate(ctx, id, "toggle_like", func(sit *models.Sit) map[string]any {
		return map[string]any{"user_likes": sit.UserLikes.Toggle(userID)}
	})
}

// IncrementReplies bumps the reply counter. The increment is computed in the
// database, so no CAS cycle is needed.
func (r *sitRepository) IncrementReplies(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.Sit{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"user_replies": gorm.Expr("user_replies + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return models.NewStorageError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Sit", id)
	}
	cache.InvalidateSit(ctx, id)
	return nil
}

// RemoveUserReferences scrubs a deleted user's id from every sit's like and
// resit lists. Parent references are left intact so reply threads survive
// author deletion.
func (r *sitRepository) RemoveUserReferences(ctx context.Context, userID string) (int, error) {
	var sits []models.Sit
	if err := r.db.WithContext(ctx).Find(&sits).Error; err != nil {
		return 0, models.NewStorageError(err)
	}

	scrubbed := 0
	for i := range sits {
		s := &sits[i]
		if !s.UserLikes.Contains(userID) && !s.UserResits.Contains(userID) {
			continue
		}
		if _, err := r.mutate(ctx, s.ID, "scrub_user_refs", func(sit *models.Sit) map[string]any {
			return map[string]any{
				"user_likes":  sit.UserLikes.Without(userID),
				"user_resits": sit.UserResits.Without(userID),
			}
		}); err != nil {
			return scrubbed, err
		}
		scrubbed++
	}
	if scrubbed > 0 {
		middleware.CascadeScrubbedRows.WithLabelValues("sits").Add(float64(scrubbed))
	}
	return scrubbed, nil
}

// mutate runs a read-modify-write cycle on the sit, guarded by the version
// column. compute receives the freshly-read row and returns the columns to
// write; updated_at is always set.
func (r *sitRepository) mutate(ctx context.Context, id uint, operation string, compute func(*models.Sit) map[string]any) (*models.Sit, error) {
	ctx, span := observability.RepositorySpan(ctx, operation, "sits")
	defer span.End()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var sit models.Sit
		if err := r.first(ctx, id, &sit); err != nil {
			observability.RecordErrorInContext(ctx, err)
			return nil, err
		}

		updates := compute(&sit)
		updates["updated_at"] = time.Now().UTC()

		err := casUpdate(r.db.WithContext(ctx), &models.Sit{}, sit.ID, sit.Version, updates)
		if errors.Is(err, errStaleVersion) {
			recordRetry("sits", attempt == maxCASAttempts-1)
			continue
		}
		if err != nil {
			observability.RecordErrorInContext(ctx, err)
			return nil, models.NewStorageError(err)
		}

		cache.InvalidateSit(ctx, id)
		var fresh models.Sit
		if err := r.first(ctx, id, &fresh); err != nil {
			return nil, err
		}
		return &fresh, nil
	}

	err := models.NewConflictError("Sit was modified concurrently, please retry")
	observability.RecordErrorInContext(ctx, err)
	return nil, err
}
