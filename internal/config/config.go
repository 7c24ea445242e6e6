package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	SendinblueAPIKey    string // SENDINBLUE_API_KEY for payment receipts (Brevo)
	MailFrom            string // MAIL_FROM sender address
	// CountUnvalidatedPayments makes reconciliation count payments an
	// administrator has not confirmed yet.
	CountUnvalidatedPayments bool
	ReceiptLocale            string
	PurchaseLockTTL          time.Duration
	NotifyTimeout            time.Duration
	AdminEmail               string
	AdminPassword            string
	AdminFullName            string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("MAIL_FROM", "ventas@siglo.co")
	viper.SetDefault("RECEIPT_LOCALE", "es-CO")
	viper.SetDefault("PURCHASE_LOCK_TTL", "10s")
	viper.SetDefault("NOTIFY_TIMEOUT", "15s")
	viper.SetDefault("ADMIN_EMAIL", "admin@siglo.co")
	viper.SetDefault("ADMIN_FULL_NAME", "Administrador Siglo")

	env := viper.GetString("APP_ENV")

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	return &Config{
		Env:                      env,
		Port:                     viper.GetString("PORT"),
		SessionSecret:            viper.GetString("SESSION_SECRET"),
		DatabaseURL:              dbURL,
		RedisURL:                 viper.GetString("REDIS_URL"),
		FrontendURLEndsWith:      viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:              viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:        viper.GetBool("ALLOW_CROSS_SITE_DEV"),
		HealthAdminKey:           viper.GetString("HEALTH_ADMIN_KEY"),
		SendinblueAPIKey:         viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:                 viper.GetString("MAIL_FROM"),
		CountUnvalidatedPayments: viper.GetBool("COUNT_UNVALIDATED_PAYMENTS"),
		ReceiptLocale:            viper.GetString("RECEIPT_LOCALE"),
		PurchaseLockTTL:          viper.GetDuration("PURCHASE_LOCK_TTL"),
		NotifyTimeout:            viper.GetDuration("NOTIFY_TIMEOUT"),
		AdminEmail:               viper.GetString("ADMIN_EMAIL"),
		AdminPassword:            viper.GetString("ADMIN_PASSWORD"),
		AdminFullName:            viper.GetString("ADMIN_FULL_NAME"),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
