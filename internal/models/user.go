// Package models contains data structures for the application's domain models.
package models

import "time"

// Theme is a user's UI theme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDim   Theme = "dim"
	ThemeDark  Theme = "dark"
)

// Valid reports whether the theme is one of the allowed values.
// The empty string means "not set" and is accepted.
func (t Theme) Valid() bool {
	switch t {
	case "", ThemeLight, ThemeDim, ThemeDark:
		return true
	}
	return false
}

// Accent is a user's UI accent color preference.
type Accent string

const (
	AccentBlue   Accent = "blue"
	AccentYellow Accent = "yellow"
	AccentPink   Accent = "pink"
	AccentPurple Accent = "purple"
	AccentOrange Accent = "orange"
	AccentGreen  Accent = "green"
)

// Valid reports whether the accent is one of the allowed values.
func (a Accent) Valid() bool {
	switch a {
	case "", AccentBlue, AccentYellow, AccentPink, AccentPurple, AccentOrange, AccentGreen:
		return true
	}
	return false
}

// User represents a profile in the Sit application.
// UserID is the external-facing stable identifier carried by clients;
// ID is the storage-assigned primary key.
type User struct {
	ID            uint         `gorm:"primaryKey" json:"-"`
	UserID        string       `gorm:"size:64;not null;uniqueIndex" json:"id"`
	Username      string       `gorm:"size:30;not null;uniqueIndex" json:"username"`
	Name          string       `gorm:"size:120;not null" json:"name"`
	Bio           string       `gorm:"type:text" json:"bio,omitempty"`
	Website       string       `json:"website,omitempty"`
	Location      string       `json:"location,omitempty"`
	PhotoURL      string       `json:"photoURL,omitempty"`
	CoverPhotoURL string       `json:"coverPhotoURL,omitempty"`
	PinnedTweet   string       `json:"pinnedTweet,omitempty"`
	Theme         Theme        `gorm:"size:10" json:"theme,omitempty"`
	Accent        Accent       `gorm:"size:10" json:"accent,omitempty"`
	Verified      bool         `gorm:"not null;default:false" json:"verified"`
	Following     StringList   `gorm:"type:jsonb" json:"following"`
	Followers     StringList   `gorm:"type:jsonb" json:"followers"`
	TotalTweets   int          `gorm:"not null;default:0" json:"totalTweets"`
	TotalPhotos   int          `gorm:"not null;default:0" json:"totalPhotos"`
	Bookmarks     BookmarkList `gorm:"type:jsonb" json:"bookmarks"`
	Stats         UserStats    `gorm:"type:jsonb" json:"stats"`
	// Version guards read-modify-write updates with optimistic concurrency.
	Version   uint      `gorm:"not null;default:1" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
