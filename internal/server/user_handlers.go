package server

import (
	"sit/internal/models"
	"sit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AddUser handles POST /add_user
func (s *Server) AddUser(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var input service.CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.CreateUser(ctx, input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUsers handles GET /users
func (s *Server) GetUsers(c *fiber.Ctx) error {
	users, err := s.userService.ListUsers(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// CheckUsername handles GET /check-username/:username
func (s *Server) CheckUsername(c *fiber.Ctx) error {
	taken, err := s.userService.CheckUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(taken)
}

// FindUserByUsername handles GET /find/:username
func (s *Server) FindUserByUsername(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// FindUserByID handles GET /findById/:userId
func (s *Server) FindUserByID(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// DeleteUser handles DELETE /delete/:userId
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	user, err := s.userService.DeleteUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateUser handles PATCH /users/:userId
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	var fields map[string]any
	if err := c.BodyParser(&fields); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), c.Params("userId"), fields)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdatePreferences handles PATCH /users/:userId/theme
func (s *Server) UpdatePreferences(c *fiber.Ctx) error {
	var req struct {
		Theme  models.Theme  `json:"theme"`
		Accent models.Accent `json:"accent"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdatePreferences(c.UserContext(), c.Params("userId"), req.Theme, req.Accent)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// RenameUsername handles PATCH /users/:userId/username
func (s *Server) RenameUsername(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.RenameUsername(c.UserContext(), c.Params("userId"), req.Username)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// ToggleStatsSit handles PATCH /users/:userId/:sitId
func (s *Server) ToggleStatsSit(c *fiber.Ctx) error {
	user, err := s.userService.ToggleStatsSit(c.UserContext(), c.Params("userId"), c.Params("sitId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// ToggleStatsLike handles PATCH /users/like/:userId/:sitId
func (s *Server) ToggleStatsLike(c *fiber.Ctx) error {
	user, err := s.userService.ToggleStatsLike(c.UserContext(), c.Params("userId"), c.Params("sitId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
