package server

import (
	"sit/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ToggleBookmark handles POST /users/bookmark/:userId
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.ToggleBookmark(c.UserContext(), c.Params("userId"), req.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetBookmarks handles GET /users/bookmark/:userId
func (s *Server) GetBookmarks(c *fiber.Ctx) error {
	bookmarks, err := s.userService.ListBookmarks(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(bookmarks)
}

// ClearBookmarks handles PATCH /users/bookmark/:userId/clearAll
func (s *Server) ClearBookmarks(c *fiber.Ctx) error {
	user, err := s.userService.ClearBookmarks(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
