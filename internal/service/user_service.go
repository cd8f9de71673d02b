package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sit/internal/models"
	"sit/internal/repository"
	"sit/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
	sitRepo  repository.SitRepository
}

func NewUserService(userRepo repository.UserRepository, sitRepo repository.SitRepository) *UserService {
	return &UserService{userRepo: userRepo, sitRepo: sitRepo}
}

type CreateUserInput struct {
	ID            string            `json:"id"`
	Username      string            `json:"username"`
	Name          string            `json:"name"`
	Bio           string            `json:"bio"`
	Website       string            `json:"website"`
	Location      string            `json:"location"`
	PhotoURL      string            `json:"photoURL"`
	CoverPhotoURL string            `json:"coverPhotoURL"`
	Theme         models.Theme      `json:"theme"`
	Accent        models.Accent     `json:"accent"`
	Verified      bool              `json:"verified"`
	Following     models.StringList `json:"following"`
	Followers     models.StringList `json:"followers"`
	PinnedTweet   string            `json:"pinnedTweet"`
}

func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.Username = strings.TrimSpace(input.Username)
	if input.ID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	if err := validation.ValidateUsername(input.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if input.Name == "" {
		return nil, models.NewValidationError("Name is required")
	}
	if !input.Theme.Valid() {
		return nil, models.NewValidationError("Invalid theme")
	}
	if !input.Accent.Valid() {
		return nil, models.NewValidationError("Invalid accent")
	}

	user := &models.User{
		UserID:        input.ID,
		Username:      input.Username,
		Name:          input.Name,
		Bio:           input.Bio,
		Website:       input.Website,
		Location:      input.Location,
		PhotoURL:      input.PhotoURL,
		CoverPhotoURL: input.CoverPhotoURL,
		Theme:         input.Theme,
		Accent:        input.Accent,
		Verified:      input.Verified,
		Following:     input.Following,
		Followers:     input.Followers,
		PinnedTweet:   input.PinnedTweet,
	}
	return s.userRepo.Create(ctx, user)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	return s.userRepo.FindByUsername(ctx, username)
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	return s.userRepo.FindByID(ctx, userID)
}

func (s *UserService) CheckUsername(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, models.NewValidationError("Username is required")
	}
	return s.userRepo.CheckUsernameExists(ctx, username)
}

// DeleteUser removes the user row and scrubs the user's id out of every
// sit's like and resit lists so no sit keeps pointing at a gone account.
func (s *UserService) DeleteUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	user, err := s.userRepo.DeleteByExternalID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sitRepo.RemoveUserReferences(ctx, user.UserID); err != nil {
		return nil, err
	}
	return user, nil
}

// userUpdatableFields maps JSON field names accepted by profile updates to
// their storage columns. Anything outside this set is rejected, which keeps
// identity (id, username) and toggle-owned state (bookmarks, stats) from
// being overwritten by a stray payload.
var userUpdatableFields = map[string]string{
	"name":          "name",
	"bio":           "bio",
	"website":       "website",
	"location":      "location",
	"photoURL":      "photo_url",
	"coverPhotoURL": "cover_photo_url",
	"pinnedTweet":   "pinned_tweet",
	"theme":         "theme",
	"accent":        "accent",
	"verified":      "verified",
	"following":     "following",
	"followers":     "followers",
	"totalTweets":   "total_tweets",
	"totalPhotos":   "total_photos",
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*models.User, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	if len(fields) == 0 {
		return nil, models.NewValidationError("No fields to update")
	}
	updates := make(map[string]any, len(fields))
	for name, value := range fields {
		column, ok := userUpdatableFields[name]
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("Field %q cannot be updated", name))
		}
		coerced, err := coerceUserField(name, value)
		if err != nil {
			return nil, err
		}
		updates[column] = coerced
	}
	return s.userRepo.PartialUpdate(ctx, userID, updates)
}

func coerceUserField(name string, value any) (any, error) {
	switch name {
	case "theme":
		theme, ok := value.(string)
		if !ok || !models.Theme(theme).Valid() {
			return nil, models.NewValidationError("Invalid theme")
		}
		return theme, nil
	case "accent":
		accent, ok := value.(string)
		if !ok || !models.Accent(accent).Valid() {
			return nil, models.NewValidationError("Invalid accent")
		}
		return accent, nil
	case "verified":
		v, ok := value.(bool)
		if !ok {
			return nil, models.NewValidationError("verified must be a boolean")
		}
		return v, nil
	case "totalTweets", "totalPhotos":
		n, ok := asInt(value)
		if !ok || n < 0 {
			return nil, models.NewValidationError(fmt.Sprintf("%s must be a non-negative integer", name))
		}
		return n, nil
	case "following", "followers":
		var list models.StringList
		if err := reencode(value, &list); err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("%s must be a list of user ids", name))
		}
		return list, nil
	default:
		str, ok := value.(string)
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("%s must be a string", name))
		}
		return str, nil
	}
}

func (s *UserService) UpdatePreferences(ctx context.Context, userID string, theme models.Theme, accent models.Accent) (*models.User, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	if !theme.Valid() {
		return nil, models.NewValidationError("Invalid theme")
	}
	if !accent.Valid() {
		return nil, models.NewValidationError("Invalid accent")
	}
	return s.userRepo.UpdatePreferences(ctx, userID, theme, accent)
}

func (s *UserService) RenameUsername(ctx context.Context, userID, username string) (*models.User, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	return s.userRepo.RenameUsername(ctx, userID, username)
}

func (s *UserService) ToggleStatsSit(ctx context.Context, userID, sitID string) (*models.User, error) {
	if userID == "" || sitID == "" {
		return nil, models.NewValidationError("User id and sit id are required")
	}
	return s.userRepo.ToggleStatsSit(ctx, userID, sitID)
}

func (s *UserService) ToggleStatsLike(ctx context.Context, userID, sitID string) (*models.User, error) {
	if userID == "" || sitID == "" {
		return nil, models.NewValidationError("User id and sit id are required")
	}
	return s.userRepo.ToggleStatsLike(ctx, userID, sitID)
}

func (s *UserService) ToggleBookmark(ctx context.Context, userID, sitID string) (*models.User, error) {
	if userID == "" || sitID == "" {
		return nil, models.NewValidationError("User id and sit id are required")
	}
	bookmark := models.Bookmark{ID: sitID, CreatedAt: time.Now().UTC()}
	return s.userRepo.ToggleBookmark(ctx, userID, bookmark)
}

func (s *UserService) ListBookmarks(ctx context.Context, userID string) (models.BookmarkList, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Bookmarks == nil {
		return models.BookmarkList{}, nil
	}
	return user.Bookmarks, nil
}

func (s *UserService) ClearBookmarks(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	return s.userRepo.ClearBookmarks(ctx, userID)
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// reencode round-trips a decoded JSON value into a typed destination. It is
// how loosely typed partial-update payloads get into the model's list types.
func reencode(value any, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
