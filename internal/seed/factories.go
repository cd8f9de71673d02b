// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"sit/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:  db,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var themes = []models.Theme{models.ThemeLight, models.ThemeDim, models.ThemeDark}

var accents = []models.Accent{
	models.AccentBlue, models.AccentYellow, models.AccentPink,
	models.AccentPurple, models.AccentOrange, models.AccentGreen,
}

// BuildUser constructs a user with plausible profile data but does not
// persist it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	name := gofakeit.Name()
	username := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	if len(username) > 24 {
		username = username[:24]
	}
	username = fmt.Sprintf("%s%d", username, f.rng.Intn(1000))

	user := &models.User{
		UserID:    uuid.NewString(),
		Username:  username,
		Name:      name,
		Bio:       gofakeit.Sentence(8),
		Website:   gofakeit.URL(),
		Location:  gofakeit.City(),
		PhotoURL:  fmt.Sprintf("https://picsum.photos/seed/%s/400/400", uuid.NewString()),
		Theme:     themes[f.rng.Intn(len(themes))],
		Accent:    accents[f.rng.Intn(len(accents))],
		Verified:  f.rng.Intn(10) == 0,
		Following: models.StringList{},
		Followers: models.StringList{},
		CreatedAt: f.pastTime(180),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}
	return user, nil
}

// BuildSit constructs a sit authored by the given user but does not
// persist it.
func (f *Factory) BuildSit(author *models.User, overrides ...func(*models.Sit)) *models.Sit {
	sit := &models.Sit{
		Text:       gofakeit.Sentence(4 + f.rng.Intn(12)),
		Images:     models.ImageList{},
		UserLikes:  models.StringList{},
		UserResits: models.StringList{},
		CreatedBy:  author.UserID,
		CreatedAt:  f.pastTime(90),
	}

	// roughly a quarter of demo sits carry an image
	if f.rng.Intn(4) == 0 {
		sit.Images = models.ImageList{{
			ID:  uuid.NewString(),
			Src: fmt.Sprintf("https://picsum.photos/seed/%s/800/600", uuid.NewString()),
			Alt: gofakeit.Sentence(3),
		}}
	}

	for _, override := range overrides {
		override(sit)
	}
	return sit
}

// CreateSit builds and persists a sit.
func (f *Factory) CreateSit(author *models.User, overrides ...func(*models.Sit)) (*models.Sit, error) {
	sit := f.BuildSit(author, overrides...)
	if err := f.db.Create(sit).Error; err != nil {
		return nil, fmt.Errorf("seed sit: %w", err)
	}
	return sit, nil
}

// CreateReply persists a sit replying to parent and bumps the parent's
// reply counter.
func (f *Factory) CreateReply(author *models.User, parent *models.Sit) (*models.Sit, error) {
	var parentAuthor models.User
	if err := f.db.Where("user_id = ?", parent.CreatedBy).First(&parentAuthor).Error; err != nil {
		return nil, fmt.Errorf("seed reply: load parent author: %w", err)
	}

	reply, err := f.CreateSit(author, func(s *models.Sit) {
		s.Parent = &models.SitRef{
			ID:       strconv.FormatUint(uint64(parent.ID), 10),
			Username: parentAuthor.Username,
		}
		s.CreatedAt = parent.CreatedAt.Add(time.Duration(1+f.rng.Intn(48)) * time.Hour)
	})
	if err != nil {
		return nil, err
	}

	err = f.db.Model(&models.Sit{}).
		Where("id = ?", parent.ID).
		UpdateColumn("user_replies", gorm.Expr("user_replies + 1")).Error
	if err != nil {
		return nil, fmt.Errorf("seed reply: bump counter: %w", err)
	}
	return reply, nil
}

func (f *Factory) pastTime(maxDays int) time.Time {
	daysBack := f.rng.Intn(maxDays)
	hoursBack := f.rng.Intn(24)
	minsBack := f.rng.Intn(60)
	return time.Now().
		Add(-time.Duration(daysBack)*24*time.Hour).
		Add(-time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)
}
