package server

import (
	"sit/internal/models"
	"sit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AddSit handles POST /add_sit
func (s *Server) AddSit(c *fiber.Ctx) error {
	var input service.CreateSitInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	sit, err := s.sitService.CreateSit(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sit)
}

// GetSits handles GET /sits with optional parentId, createdBy, parent and
// userResits query filters.
func (s *Server) GetSits(c *fiber.Ctx) error {
	input := service.QuerySitsInput{
		ParentID:     c.Query("parentId"),
		CreatedBy:    c.Query("createdBy"),
		TopLevelOnly: c.Query("parent") != "",
		ResitBy:      c.Query("userResits"),
	}

	sits, err := s.sitService.QuerySits(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sits)
}

// GetFeed handles GET /sits/people/:createdBy
func (s *Server) GetFeed(c *fiber.Ctx) error {
	sits, err := s.sitService.Feed(c.UserContext(), c.Params("createdBy"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sits)
}

// GetLikedSits handles GET /sits/liked/:createdBy
func (s *Server) GetLikedSits(c *fiber.Ctx) error {
	sits, err := s.sitService.ListLikedBy(c.UserContext(), c.Params("createdBy"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sits)
}

// GetMediaSits handles GET /sits/media/:createdBy. The path parameter is
// accepted for client compatibility but the listing spans all authors.
func (s *Server) GetMediaSits(c *fiber.Ctx) error {
	sits, err := s.sitService.ListWithMedia(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sits)
}

// GetSit handles GET /sits/:sitId
func (s *Server) GetSit(c *fiber.Ctx) error {
	id, err := s.parseSitParam(c)
	if err != nil {
		return nil
	}

	sit, err := s.sitService.GetSit(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sit)
}

// DeleteSit handles DELETE /sits/delete/:sitId
func (s *Server) DeleteSit(c *fiber.Ctx) error {
	id, err := s.parseSitParam(c)
	if err != nil {
		return nil
	}

	sit, err := s.sitService.DeleteSit(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sit)
}

// UpdateSit handles PATCH /sits/:sitId
func (s *Server) UpdateSit(c *fiber.Ctx) error {
	id, err := s.parseSitParam(c)
	if err != nil {
		return nil
	}

	var fields map[string]any
	if err := c.BodyParser(&fields); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	sit, err := s.sitService.UpdateSit(c.UserContext(), id, fields)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sit)
}

// ToggleResit handles PATCH /sits/:sitId/:userId
func (s *Server) ToggleResit(c *fiber.Ctx) error {
	id, err := s.parseSitParam(c)
	if err != nil {
		return nil
	}

	sit, err := s.sitService.ToggleResit(c.UserContext(), id, c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sit)
}

// ToggleLike handles PATCH /sits/like/:sitId/:userId
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseSitParam(c)
	if err != nil {
		return nil
	}

	sit, err := s.sitService.ToggleLike(c.UserContext(), id, c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sit)
}
