package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StatusTable maps sentinel errors to HTTP status codes.
type StatusTable map[error]int

// Lookup returns the status for the first sentinel err wraps, or 500.
func (t StatusTable) Lookup(err error) int {
	for sentinel, code := range t {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// FromError writes err using the table. Unmapped errors are logged and reported
// as a generic 500 so internals do not leak to the client.
func FromError(c *fiber.Ctx, err error, table StatusTable) error {
	code := table.Lookup(err)
	if code >= fiber.StatusInternalServerError {
		logger := zerolog.Ctx(c.UserContext())
		if logger.GetLevel() == zerolog.Disabled {
			logger = &log.Logger
		}
		logger.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("request failed")
		return Error(c, "Internal Server Error", code, nil)
	}
	return Error(c, err.Error(), code, nil)
}
