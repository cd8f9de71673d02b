package models

import "time"

// Sit represents a short post, optionally a reply to another sit.
type Sit struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Text   string    `gorm:"type:text;not null" json:"text"`
	Images ImageList `gorm:"type:jsonb" json:"images"`
	// Parent references the sit this one replies to; NULL for top-level sits.
	Parent      *SitRef    `gorm:"type:jsonb" json:"parent,omitempty"`
	UserLikes   StringList `gorm:"type:jsonb" json:"userLikes"`
	UserResits  StringList `gorm:"type:jsonb" json:"userResits"`
	UserReplies int        `gorm:"not null;default:0" json:"userReplies"`
	// CreatedBy is the author's external user id.
	CreatedBy string `gorm:"size:64;not null;index" json:"createdBy"`
	// Version guards read-modify-write updates with optimistic concurrency.
	Version   uint      `gorm:"not null;default:1" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (Sit) TableName() string {
	return "sits"
}

// HasMedia reports whether the sit carries at least one image.
// A present but empty images list does not count as media.
func (s *Sit) HasMedia() bool {
	return len(s.Images) > 0
}

// IsReply reports whether the sit replies to another sit.
func (s *Sit) IsReply() bool {
	return s.Parent != nil && s.Parent.ID != ""
}
