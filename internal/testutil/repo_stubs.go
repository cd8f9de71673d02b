// Package testutil provides shared test doubles and fixtures.
package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"sit/internal/models"
	"sit/internal/repository"
)

// UserRepoStub is an in-memory user repository implementation for tests.
// Set ForcedErr to make every call fail with that error.
type UserRepoStub struct {
	mu        sync.Mutex
	users     map[string]*models.User
	nextID    uint
	ForcedErr error
}

// NewUserRepoStub creates an empty in-memory user repository.
func NewUserRepoStub() *UserRepoStub {
	return &UserRepoStub{users: make(map[string]*models.User), nextID: 1}
}

var _ repository.UserRepository = (*UserRepoStub)(nil)

func (s *UserRepoStub) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	if _, exists := s.users[user.UserID]; exists {
		return nil, models.NewConflictError("User with this id already exists")
	}
	for _, u := range s.users {
		if u.Username == user.Username {
			return nil, models.NewConflictError("Username is already taken")
		}
	}
	user.ID = s.nextID
	s.nextID++
	user.Version = 1
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.UserID] = user
	return copyUser(user), nil
}

func (s *UserRepoStub) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *UserRepoStub) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, models.NewNotFoundError("User", username)
}

func (s *UserRepoStub) FindByID(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(userID)
}

func (s *UserRepoStub) CheckUsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return false, s.ForcedErr
	}
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserRepoStub) Delete(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	for key, u := range s.users {
		if u.ID == id {
			delete(s.users, key)
			return copyUser(u), nil
		}
	}
	return nil, models.NewNotFoundError("User", id)
}

func (s *UserRepoStub) DeleteByExternalID(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.find(userID)
	if err != nil {
		return nil, err
	}
	delete(s.users, userID)
	return user, nil
}

func (s *UserRepoStub) PartialUpdate(_ context.Context, userID string, updates map[string]any) (*models.User, error) {
	return s.mutate(userID, func(u *models.User) {
		applyUserColumns(u, updates)
	})
}

func (s *UserRepoStub) UpdatePreferences(_ context.Context, userID string, theme models.Theme, accent models.Accent) (*models.User, error) {
	return s.mutate(userID, func(u *models.User) {
		u.Theme = theme
		u.Accent = accent
	})
}

func (s *UserRepoStub) RenameUsername(_ context.Context, userID, newUsername string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	for _, u := range s.users {
		if u.Username == newUsername && u.UserID != userID {
			return nil, models.NewConflictError("Username is already taken")
		}
	}
	user, err := s.find(userID)
	if err != nil {
		return nil, err
	}
	s.users[userID].Username = newUsername
	user.Username = newUsername
	return user, nil
}

func (s *UserRepoStub) ToggleStatsSit(_ context.Context, userID, sitID string) (*models.User, error) {
	return s.mutate(userID, func(u *models.User) {
		u.Stats.Sits = u.Stats.Sits.Toggle(sitID)
		u.Stats.UpdatedAt = time.Now().UTC()
	})
}

func (s *UserRepoStub) ToggleStatsLike(_ context.Context, userID, sitID string) (*models.User, error) {
	return s.mutate(userID, func(u *models.User) {
		u.Stats.Likes = u.Stats.Likes.Toggle(sitID)
		u.Stats.UpdatedAt = time.Now().UTC()
	})
}

func (s *UserRepoStub) ToggleBookmark(_ context.Context, userID string, bookmark models.Bookmark) (*models.User, error) {
	return s.mutate(userID, func(u *models.User) {
		u.Bookmarks = u.Bookmarks.Toggle(bookmark)
	})
}

func (s *UserRepoStub) ClearBookmarks(_ context.Context, userID string) (*models.User, error) {
	return s.mutate(userID, func(u *models.User) {
		u.Bookmarks = models.BookmarkList{}
	})
}

func (s *UserRepoStub) RemoveSitReferences(_ context.Context, sitID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return 0, s.ForcedErr
	}
	scrubbed := 0
	for _, u := range s.users {
		touched := false
		if u.Stats.Likes.Contains(sitID) {
			u.Stats.Likes = u.Stats.Likes.Without(sitID)
			touched = true
		}
		if u.Stats.Sits.Contains(sitID) {
			u.Stats.Sits = u.Stats.Sits.Without(sitID)
			touched = true
		}
		if u.Bookmarks.Contains(sitID) {
			u.Bookmarks = u.Bookmarks.Toggle(models.Bookmark{ID: sitID})
			touched = true
		}
		if touched {
			scrubbed++
		}
	}
	return scrubbed, nil
}

func (s *UserRepoStub) find(userID string) (*models.User, error) {
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	user, ok := s.users[userID]
	if !ok {
		return nil, models.NewNotFoundError("User", userID)
	}
	return copyUser(user), nil
}

func (s *UserRepoStub) mutate(userID string, apply func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	user, ok := s.users[userID]
	if !ok {
		return nil, models.NewNotFoundError("User", userID)
	}
	apply(user)
	user.UpdatedAt = time.Now().UTC()
	user.Version++
	return copyUser(user), nil
}

func applyUserColumns(u *models.User, updates map[string]any) {
	for column, value := range updates {
		switch column {
		case "name":
			u.Name = value.(string)
		case "bio":
			u.Bio = value.(string)
		case "website":
			u.Website = value.(string)
		case "location":
			u.Location = value.(string)
		case "photo_url":
			u.PhotoURL = value.(string)
		case "cover_photo_url":
			u.CoverPhotoURL = value.(string)
		case "pinned_tweet":
			u.PinnedTweet = value.(string)
		case "theme":
			u.Theme = models.Theme(value.(string))
		case "accent":
			u.Accent = models.Accent(value.(string))
		case "verified":
			u.Verified = value.(bool)
		case "following":
			u.Following = value.(models.StringList)
		case "followers":
			u.Followers = value.(models.StringList)
		case "total_tweets":
			u.TotalTweets = value.(int)
		case "total_photos":
			u.TotalPhotos = value.(int)
		}
	}
}

func copyUser(u *models.User) *models.User {
	out := *u
	out.Following = append(models.StringList{}, u.Following...)
	out.Followers = append(models.StringList{}, u.Followers...)
	out.Bookmarks = append(models.BookmarkList{}, u.Bookmarks...)
	out.Stats.Likes = append(models.StringList{}, u.Stats.Likes...)
	out.Stats.Sits = append(models.StringList{}, u.Stats.Sits...)
	return &out
}

// SitRepoStub is an in-memory sit repository implementation for tests.
type SitRepoStub struct {
	mu        sync.Mutex
	sits      map[uint]*models.Sit
	nextID    uint
	ForcedErr error
}

// NewSitRepoStub creates an empty in-memory sit repository.
func NewSitRepoStub() *SitRepoStub {
	return &SitRepoStub{sits: make(map[uint]*models.Sit), nextID: 1}
}

var _ repository.SitRepository = (*SitRepoStub)(nil)

func (s *SitRepoStub) Create(_ context.Context, sit *models.Sit) (*models.Sit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	sit.ID = s.nextID
	s.nextID++
	sit.Version = 1
	now := time.Now().UTC()
	sit.CreatedAt = now
	sit.UpdatedAt = now
	s.sits[sit.ID] = sit
	return copySit(sit), nil
}

func (s *SitRepoStub) Query(_ context.Context, q repository.SitQuery) ([]models.Sit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	out := make([]models.Sit, 0)
	for _, sit := range s.sits {
		if q.CreatedBy != "" && sit.CreatedBy != q.CreatedBy {
			continue
		}
		if q.ResitBy != "" && !sit.UserResits.Contains(q.ResitBy) {
			continue
		}
		// parentID filter takes precedence over the top-level flag
		if q.ParentID != "" {
			if sit.Parent == nil || sit.Parent.ID != q.ParentID {
				continue
			}
		} else if q.TopLevelOnly && sit.Parent != nil {
			continue
		}
		out = append(out, *copySit(sit))
	}
	sortSitsNewestFirst(out)
	return out, nil
}

func (s *SitRepoStub) FindByID(_ context.Context, id uint) (*models.Sit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	sit, ok := s.sits[id]
	if !ok {
		return nil, models.NewNotFoundError("Sit", id)
	}
	return copySit(sit), nil
}

func (s *SitRepoStub) ListExcludingAuthorAndResitter(_ context.Context, userID string) ([]models.Sit, error) {
	return s.list(func(sit *models.Sit) bool {
		return sit.CreatedBy != userID && !sit.UserResits.Contains(userID)
	})
}

func (s *SitRepoStub) ListLikedBy(_ context.Context, userID string) ([]models.Sit, error) {
	return s.list(func(sit *models.Sit) bool {
		return sit.UserLikes.Contains(userID)
	})
}

func (s *SitRepoStub) ListWithMedia(_ context.Context) ([]models.Sit, error) {
	return s.list(func(sit *models.Sit) bool {
		return sit.HasMedia()
	})
}

func (s *SitRepoStub) Delete(_ context.Context, id uint) (*models.Sit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	sit, ok := s.sits[id]
	if !ok {
		return nil, models.NewNotFoundError("Sit", id)
	}
	delete(s.sits, id)
	return copySit(sit), nil
}

func (s *SitRepoStub) PartialUpdate(_ context.Context, id uint, updates map[string]any) (*models.Sit, error) {
	return s.mutate(id, func(sit *models.Sit) {
		for column, value := range updates {
			switch column {
			case "text":
				sit.Text = value.(string)
			case "images":
				sit.Images = value.(models.ImageList)
			case "user_replies":
				sit.UserReplies = value.(int)
			}
		}
	})
}

func (s *SitRepoStub) ToggleResit(_ context.Context, id uint, userID string) (*models.Sit, error) {
	return s.mutate(id, func(sit *models.Sit) {
		sit.UserResits = sit.UserResits.Toggle(userID)
	})
}

func (s *SitRepoStub) ToggleLike(_ context.Context, id uint, userID string) (*models.Sit, error) {
	return s.mutate(id, func(sit *models.Sit) {
		sit.UserLikes = sit.UserLikes.Toggle(userID)
	})
}

func (s *SitRepoStub) IncrementReplies(_ context.Context, id uint) error {
	_, err := s.mutate(id, func(sit *models.Sit) {
		sit.UserReplies++
	})
	return err
}

func (s *SitRepoStub) RemoveUserReferences(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return 0, s.ForcedErr
	}
	scrubbed := 0
	for _, sit := range s.sits {
		touched := false
		if sit.UserLikes.Contains(userID) {
			sit.UserLikes = sit.UserLikes.Without(userID)
			touched = true
		}
		if sit.UserResits.Contains(userID) {
			sit.UserResits = sit.UserResits.Without(userID)
			touched = true
		}
		if touched {
			scrubbed++
		}
	}
	return scrubbed, nil
}

// SitID formats a sit's storage id the way cross-entity references carry it.
func SitID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (s *SitRepoStub) list(keep func(*models.Sit) bool) ([]models.Sit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	out := make([]models.Sit, 0)
	for _, sit := range s.sits {
		if keep(sit) {
			out = append(out, *copySit(sit))
		}
	}
	sortSitsNewestFirst(out)
	return out, nil
}

func (s *SitRepoStub) mutate(id uint, apply func(*models.Sit)) (*models.Sit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForcedErr != nil {
		return nil, s.ForcedErr
	}
	sit, ok := s.sits[id]
	if !ok {
		return nil, models.NewNotFoundError("Sit", id)
	}
	apply(sit)
	sit.UpdatedAt = time.Now().UTC()
	sit.Version++
	return copySit(sit), nil
}

func copySit(sit *models.Sit) *models.Sit {
	out := *sit
	out.Images = append(models.ImageList{}, sit.Images...)
	out.UserLikes = append(models.StringList{}, sit.UserLikes...)
	out.UserResits = append(models.StringList{}, sit.UserResits...)
	if sit.Parent != nil {
		ref := *sit.Parent
		out.Parent = &ref
	}
	return &out
}

func sortSitsNewestFirst(sits []models.Sit) {
	sort.Slice(sits, func(i, j int) bool {
		if sits[i].CreatedAt.Equal(sits[j].CreatedAt) {
			return sits[i].ID > sits[j].ID
		}
		return sits[i].CreatedAt.After(sits[j].CreatedAt)
	})
}
