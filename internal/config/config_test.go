package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL_DEV", "sqlite::memory:")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "es-CO", cfg.ReceiptLocale)
	assert.Equal(t, 10*time.Second, cfg.PurchaseLockTTL)
	assert.Equal(t, 15*time.Second, cfg.NotifyTimeout)
	assert.False(t, cfg.CountUnvalidatedPayments)
	assert.Equal(t, "sqlite::memory:", cfg.DatabaseURL)
}

func TestLoad_FromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL_PROD", "postgres://prod")
	t.Setenv("COUNT_UNVALIDATED_PAYMENTS", "true")
	t.Setenv("PURCHASE_LOCK_TTL", "3s")
	t.Setenv("ALLOW_CROSS_SITE_DEV", "TRUE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://prod", cfg.DatabaseURL)
	assert.True(t, cfg.CountUnvalidatedPayments)
	assert.True(t, cfg.AllowCrossSiteDev)
	assert.Equal(t, 3*time.Second, cfg.PurchaseLockTTL)
}
