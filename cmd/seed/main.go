// Command seed migrates the schema, creates the default sales stages and the
// administrator account from ADMIN_EMAIL / ADMIN_PASSWORD.
package main

import (
	"context"

	"siglo-backend/internal/application/lots"
	"siglo-backend/internal/application/users"
	"siglo-backend/internal/config"
	"siglo-backend/internal/infrastructure/database"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database open")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	ctx := context.Background()

	created, err := (&lots.Service{DB: db}).EnsureDefaultStages(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("default stages")
	}
	log.Info().Int("created", created).Msg("default stages ready")

	if cfg.AdminPassword == "" {
		log.Warn().Msg("ADMIN_PASSWORD not set, skipping administrator account")
		return
	}
	ok, err := (&users.Service{DB: db}).EnsureAdmin(ctx, cfg.AdminFullName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("administrator account")
	}
	if ok {
		log.Info().Str("email", cfg.AdminEmail).Msg("administrator created")
	} else {
		log.Warn().Str("email", cfg.AdminEmail).Msg("administrator already exists")
	}
}
