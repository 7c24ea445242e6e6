// Command sync-lots recomputes every lot status from purchases and payments.
package main

import (
	"context"

	"siglo-backend/internal/application/allocation"
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
	rec := &allocation.Reconciler{Policy: allocation.Policy{CountUnvalidatedPayments: cfg.CountUnvalidatedPayments}}
	result, err := rec.ReconcileAll(context.Background(), db)
	if err != nil {
		log.Fatal().Err(err).Msg("sync lot statuses")
	}
	ev := log.Info().Int("purchases", result.Purchases).Int("lots", result.Lots)
	for status, n := range result.Statuses {
		ev = ev.Int(string(status), n)
	}
	ev.Msg("lot statuses synchronised")
}
