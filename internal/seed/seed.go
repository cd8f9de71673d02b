package seed

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"sit/internal/middleware"
	"sit/internal/models"

	"gorm.io/gorm"
)

// Options configure the demo seeder.
type Options struct {
	NumUsers    int
	NumSits     int
	ShouldClean bool
}

// Demo fills the database with a plausible social mesh: users following
// each other, sits with replies, and scattered likes, resits and bookmarks.
func Demo(db *gorm.DB, opts Options) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 20
	}
	if opts.NumSits <= 0 {
		opts.NumSits = 120
	}

	if opts.ShouldClean {
		if err := clean(db); err != nil {
			return err
		}
	}

	f := NewFactory(db)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return err
		}
		users = append(users, user)
	}

	// follow graph: each user follows a handful of others
	for _, user := range users {
		for _, other := range pick(f.rng, users, 1+f.rng.Intn(5)) {
			if other.UserID == user.UserID {
				continue
			}
			user.Following = user.Following.Toggle(other.UserID)
			other.Followers = other.Followers.Toggle(user.UserID)
		}
	}
	for _, user := range users {
		err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"following": user.Following,
			"followers": user.Followers,
		}).Error
		if err != nil {
			return fmt.Errorf("seed follow graph: %w", err)
		}
	}

	sits := make([]*models.Sit, 0, opts.NumSits)
	for i := 0; i < opts.NumSits; i++ {
		author := users[f.rng.Intn(len(users))]
		if len(sits) > 0 && f.rng.Intn(4) == 0 {
			reply, err := f.CreateReply(author, sits[f.rng.Intn(len(sits))])
			if err != nil {
				return err
			}
			sits = append(sits, reply)
			continue
		}
		sit, err := f.CreateSit(author)
		if err != nil {
			return err
		}
		sits = append(sits, sit)
	}

	if err := scatterEngagement(db, f, users, sits); err != nil {
		return err
	}

	middleware.Logger.Info("demo data seeded",
		slog.Int("users", len(users)),
		slog.Int("sits", len(sits)))
	return nil
}

// scatterEngagement sprinkles likes, resits and bookmarks across the seeded
// sits, keeping user stats consistent with the sit-side lists.
func scatterEngagement(db *gorm.DB, f *Factory, users []*models.User, sits []*models.Sit) error {
	for _, sit := range sits {
		sitID := strconv.FormatUint(uint64(sit.ID), 10)
		for _, user := range pick(f.rng, users, f.rng.Intn(4)) {
			if user.UserID == sit.CreatedBy {
				continue
			}
			sit.UserLikes = sit.UserLikes.Toggle(user.UserID)
			user.Stats.Likes = user.Stats.Likes.Toggle(sitID)
			user.Stats.UpdatedAt = time.Now()

			if f.rng.Intn(3) == 0 {
				sit.UserResits = sit.UserResits.Toggle(user.UserID)
				user.Stats.Sits = user.Stats.Sits.Toggle(sitID)
			}
			if f.rng.Intn(5) == 0 {
				user.Bookmarks = user.Bookmarks.Toggle(models.Bookmark{ID: sitID, CreatedAt: time.Now()})
			}
		}
		err := db.Model(&models.Sit{}).Where("id = ?", sit.ID).Updates(map[string]any{
			"user_likes":  sit.UserLikes,
			"user_resits": sit.UserResits,
		}).Error
		if err != nil {
			return fmt.Errorf("seed engagement: %w", err)
		}
	}

	for _, user := range users {
		err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"stats":     user.Stats,
			"bookmarks": user.Bookmarks,
		}).Error
		if err != nil {
			return fmt.Errorf("seed engagement stats: %w", err)
		}
	}
	return nil
}

func clean(db *gorm.DB) error {
	if err := db.Where("1 = 1").Delete(&models.Sit{}).Error; err != nil {
		return fmt.Errorf("clean sits: %w", err)
	}
	if err := db.Where("1 = 1").Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("clean users: %w", err)
	}
	return nil
}

func pick[T any](rng interface{ Intn(int) int }, items []*T, n int) []*T {
	if n >= len(items) {
		n = len(items)
	}
	out := make([]*T, 0, n)
	seen := make(map[int]bool, n)
	for len(out) < n {
		i := rng.Intn(len(items))
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, items[i])
	}
	return out
}
