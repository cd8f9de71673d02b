package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"sit/internal/middleware"
	"sit/internal/models"
	"sit/internal/repository"
)

const maxSitLength = 280

type SitService struct {
	sitRepo  repository.SitRepository
	userRepo repository.UserRepository
}

func NewSitService(sitRepo repository.SitRepository, userRepo repository.UserRepository) *SitService {
	return &SitService{sitRepo: sitRepo, userRepo: userRepo}
}

type CreateSitInput struct {
	Text      string           `json:"text"`
	Images    models.ImageList `json:"images"`
	Parent    *models.SitRef   `json:"parent"`
	CreatedBy string           `json:"createdBy"`
}

// CreateSit stores a new sit. When the sit replies to another one, the
// parent's reply counter is bumped after the insert; a parent that has
// disappeared in the meantime does not fail the creation.
func (s *SitService) CreateSit(ctx context.Context, input CreateSitInput) (*models.Sit, error) {
	input.Text = strings.TrimSpace(input.Text)
	if input.Text == "" && len(input.Images) == 0 {
		return nil, models.NewValidationError("Sit text or images are required")
	}
	if utf8.RuneCountInString(input.Text) > maxSitLength {
		return nil, models.NewValidationError(fmt.Sprintf("Sit text must be at most %d characters", maxSitLength))
	}
	if input.CreatedBy == "" {
		return nil, models.NewValidationError("createdBy is required")
	}
	if input.Parent != nil && input.Parent.ID == "" {
		return nil, models.NewValidationError("Parent sit id is required for replies")
	}

	sit := &models.Sit{
		Text:      input.Text,
		Images:    input.Images,
		Parent:    input.Parent,
		CreatedBy: input.CreatedBy,
	}
	created, err := s.sitRepo.Create(ctx, sit)
	if err != nil {
		return nil, err
	}

	if created.IsReply() {
		parentID, perr := parseSitID(created.Parent.ID)
		if perr != nil {
			return nil, perr
		}
		if err := s.sitRepo.IncrementReplies(ctx, parentID); err != nil {
			if !models.IsNotFound(err) {
				return nil, err
			}
			middleware.Logger.WarnContext(ctx, "reply created for missing parent sit",
				slog.String("parent_id", created.Parent.ID),
				slog.Uint64("sit_id", uint64(created.ID)))
		}
	}
	return created, nil
}

type QuerySitsInput struct {
	ParentID     string
	CreatedBy    string
	TopLevelOnly bool
	ResitBy      string
}

func (s *SitService) QuerySits(ctx context.Context, input QuerySitsInput) ([]models.Sit, error) {
	return s.sitRepo.Query(ctx, repository.SitQuery{
		ParentID:     input.ParentID,
		CreatedBy:    input.CreatedBy,
		TopLevelOnly: input.TopLevelOnly,
		ResitBy:      input.ResitBy,
	})
}

func (s *SitService) GetSit(ctx context.Context, id uint) (*models.Sit, error) {
	return s.sitRepo.FindByID(ctx, id)
}

// Feed returns sits neither authored nor resat by the given user,
// newest first.
func (s *SitService) Feed(ctx context.Context, userID string) ([]models.Sit, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	return s.sitRepo.ListExcludingAuthorAndResitter(ctx, userID)
}

func (s *SitService) ListLikedBy(ctx context.Context, userID string) ([]models.Sit, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	return s.sitRepo.ListLikedBy(ctx, userID)
}

func (s *SitService) ListWithMedia(ctx context.Context) ([]models.Sit, error) {
	return s.sitRepo.ListWithMedia(ctx)
}

// DeleteSit removes the sit and scrubs its id from every user's bookmarks
// and engagement stats. Sits replying to the deleted one keep their parent
// reference; threads render a tombstone for the missing root.
func (s *SitService) DeleteSit(ctx context.Context, id uint) (*models.Sit, error) {
	sit, err := s.sitRepo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.RemoveSitReferences(ctx, strconv.FormatUint(uint64(sit.ID), 10)); err != nil {
		return nil, err
	}
	return sit, nil
}

// sitUpdatableFields maps JSON field names accepted by sit updates to their
// storage columns. Engagement lists are toggle-owned and excluded.
var sitUpdatableFields = map[string]string{
	"text":        "text",
	"images":      "images",
	"userReplies": "user_replies",
}

func (s *SitService) UpdateSit(ctx context.Context, id uint, fields map[string]any) (*models.Sit, error) {
	if len(fields) == 0 {
		return nil, models.NewValidationError("No fields to update")
	}
	updates := make(map[string]any, len(fields))
	for name, value := range fields {
		column, ok := sitUpdatableFields[name]
		if !ok {
			return nil, models.NewValidationError(fmt.Sprintf("Field %q cannot be updated", name))
		}
		coerced, err := coerceSitField(name, value)
		if err != nil {
			return nil, err
		}
		updates[column] = coerced
	}
	return s.sitRepo.PartialUpdate(ctx, id, updates)
}

func coerceSitField(name string, value any) (any, error) {
	switch name {
	case "text":
		text, ok := value.(string)
		if !ok {
			return nil, models.NewValidationError("text must be a string")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, models.NewValidationError("Sit text cannot be empty")
		}
		if utf8.RuneCountInString(text) > maxSitLength {
			return nil, models.NewValidationError(fmt.Sprintf("Sit text must be at most %d characters", maxSitLength))
		}
		return text, nil
	case "images":
		var images models.ImageList
		if err := reencode(value, &images); err != nil {
			return nil, models.NewValidationError("images must be a list of image objects")
		}
		return images, nil
	default: // userReplies
		n, ok := asInt(value)
		if !ok || n < 0 {
			return nil, models.NewValidationError("userReplies must be a non-negative integer")
		}
		return n, nil
	}
}

func (s *SitService) ToggleResit(ctx context.Context, id uint, userID string) (*models.Sit, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	return s.sitRepo.ToggleResit(ctx, id, userID)
}

func (s *SitService) ToggleLike(ctx context.Context, id uint, userID string) (*models.Sit, error) {
	if userID == "" {
		return nil, models.NewValidationError("User id is required")
	}
	return s.sitRepo.ToggleLike(ctx, id, userID)
}

func parseSitID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("Invalid sit id")
	}
	return uint(id), nil
}
