package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// scanJSON decodes a JSON column value (bytes or string) into dest.
// NULL columns leave dest at its zero value.
func scanJSON(src any, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column source type %T", src)
	}
}

// StringList is a JSON-encoded list of string identifiers.
// A nil list marshals as [] so array fields are always present in responses.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// GormDataType tells GORM to store the list as a JSON column.
func (StringList) GormDataType() string {
	return "jsonb"
}

// MarshalJSON renders a nil list as [].
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal([]string(l))
}

// Contains reports whether id is a member of the list.
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle returns a copy of the list with id appended once if absent,
// or with all occurrences of id removed if present.
func (l StringList) Toggle(id string) StringList {
	if !l.Contains(id) {
		out := make(StringList, 0, len(l)+1)
		out = append(out, l...)
		return append(out, id)
	}
	return l.Without(id)
}

// Without returns a copy of the list with all occurrences of id removed.
func (l StringList) Without(id string) StringList {
	out := make(StringList, 0, len(l))
	for _, v := range l {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// SitImage describes one image attached to a sit.
type SitImage struct {
	ID  string `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ImageList is a JSON-encoded list of sit images.
type ImageList []SitImage

func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		l = ImageList{}
	}
	return json.Marshal(l)
}

func (l *ImageList) Scan(src any) error {
	return scanJSON(src, l)
}

func (ImageList) GormDataType() string {
	return "jsonb"
}

func (l ImageList) MarshalJSON() ([]byte, error) {
	if l == nil {
		l = ImageList{}
	}
	return json.Marshal([]SitImage(l))
}

// SitRef is a reference to another sit, used for reply threading.
// A nil *SitRef field maps to a NULL column (top-level sit).
type SitRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (r *SitRef) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *SitRef) Scan(src any) error {
	return scanJSON(src, r)
}

func (SitRef) GormDataType() string {
	return "jsonb"
}

// Bookmark is one saved sit reference on a user's bookmark list.
type Bookmark struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// BookmarkList is a JSON-encoded ordered list of bookmarks.
type BookmarkList []Bookmark

func (l BookmarkList) Value() (driver.Value, error) {
	if l == nil {
		l = BookmarkList{}
	}
	return json.Marshal(l)
}

func (l *BookmarkList) Scan(src any) error {
	return scanJSON(src, l)
}

func (BookmarkList) GormDataType() string {
	return "jsonb"
}

func (l BookmarkList) MarshalJSON() ([]byte, error) {
	if l == nil {
		l = BookmarkList{}
	}
	return json.Marshal([]Bookmark(l))
}

// Contains reports whether a bookmark with the given sit id is present.
// Membership is keyed by id alone; the stored createdAt is not compared.
func (l BookmarkList) Contains(id string) bool {
	for _, b := range l {
		if b.ID == id {
			return true
		}
	}
	return false
}

// Toggle appends the bookmark if its id is absent, otherwise removes every
// bookmark with that id.
func (l BookmarkList) Toggle(b Bookmark) BookmarkList {
	if !l.Contains(b.ID) {
		out := make(BookmarkList, 0, len(l)+1)
		out = append(out, l...)
		return append(out, b)
	}
	out := make(BookmarkList, 0, len(l))
	for _, v := range l {
		if v.ID != b.ID {
			out = append(out, v)
		}
	}
	return out
}

// UserStats tracks the sits a user has liked and resat.
type UserStats struct {
	Likes     StringList `json:"likes"`
	Sits      StringList `json:"sits"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (s UserStats) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *UserStats) Scan(src any) error {
	return scanJSON(src, s)
}

func (UserStats) GormDataType() string {
	return "jsonb"
}
