// Package bootstrap builds the HTTP app for entry points that live outside
// the module's internal tree, such as the serverless handler in api/.
package bootstrap

import (
	"fmt"

	"siglo-backend/internal/config"
	"siglo-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// New loads configuration from the environment and wires the full app.
// Database migrations are not run here; cmd/seed owns them.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app, _, _, err := router.CreateApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("create app: %w", err)
	}
	log.Info().Str("env", cfg.Env).Msg("app ready")
	return app, nil
}
