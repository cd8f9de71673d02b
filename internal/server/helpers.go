package server

import (
	"errors"

	"sit/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseSitParam extracts the :sitId route parameter as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func (s *Server) parseSitParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("sitId")
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid sit ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondError writes the standardized error body with the status code that
// matches the error's kind.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}
