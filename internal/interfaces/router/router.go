package router

import (
	"errors"

	"siglo-backend/internal/application/allocation"
	"siglo-backend/internal/application/allocation/metrics"
	authsvc "siglo-backend/internal/application/auth"
	"siglo-backend/internal/application/ledger"
	lotsvc "siglo-backend/internal/application/lots"
	"siglo-backend/internal/application/notifications"
	"siglo-backend/internal/application/purchaseevents"
	"siglo-backend/internal/application/purchases"
	usersvc "siglo-backend/internal/application/users"
	"siglo-backend/internal/config"
	"siglo-backend/internal/constants"
	"siglo-backend/internal/infrastructure/database"
	"siglo-backend/internal/infrastructure/lock"
	adminhandler "siglo-backend/internal/interfaces/handlers/admin"
	authhandler "siglo-backend/internal/interfaces/handlers/auth"
	healthhandler "siglo-backend/internal/interfaces/handlers/health"
	lothandler "siglo-backend/internal/interfaces/handlers/lots"
	salehandler "siglo-backend/internal/interfaces/handlers/sales"
	userhandler "siglo-backend/internal/interfaces/handlers/users"
	"siglo-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var (
	errNoDatabase = errors.New("DATABASE_URL is not configured")
	errNoRedis    = errors.New("REDIS_URL is not configured")
)

// CreateApp wires every service and route. Migrations are not run here; see
// cmd/seed.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, errNoDatabase
	}
	if cfg.RedisURL == "" {
		return nil, nil, nil, errNoRedis
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(opts)
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	locale, err := language.Parse(cfg.ReceiptLocale)
	if err != nil {
		locale = language.MustParse("es-CO")
	}
	var notifier notifications.Notifier
	if cfg.SendinblueAPIKey != "" {
		notifier = &notifications.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom, Locale: locale}
	}
	receipts := notifications.NewDispatcher(notifier, cfg.NotifyTimeout)

	lockOpts := lock.DefaultOptions()
	if cfg.PurchaseLockTTL > 0 {
		lockOpts.Expiry = cfg.PurchaseLockTTL
	}
	locker := lock.NewRedis(rdb, lockOpts)

	reconciler := &allocation.Reconciler{
		Policy:  allocation.Policy{CountUnvalidatedPayments: cfg.CountUnvalidatedPayments},
		Metrics: m,
	}
	ledgerSvc := &ledger.Service{DB: db, Reconciler: reconciler, Locker: locker, Receipts: receipts, Metrics: m}
	purchaseSvc := &purchases.Service{DB: db, Reconciler: reconciler, Locker: locker}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})
	app.Hooks().OnShutdown(func() error {
		receipts.Wait()
		return nil
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		DevPassword:    cfg.DevPassword,
		AllowLocalhost: !cfg.IsProduction(),
	}))
	app.Use(middleware.Session(rdb))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Rdb: rdb, DB: sqlDB, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	api := app.Group("/api/v1")

	ah := &authhandler.Handlers{UserFinder: &authsvc.GormUserFinder{DB: db}, Rdb: rdb, Config: sessionCfg}
	uh := &userhandler.Handlers{Service: &usersvc.Service{DB: db}}
	authGroup := api.Group("/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Post("/register", uh.Register)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	lh := &lothandler.Handlers{Service: &lotsvc.Service{DB: db}}
	api.Get("/lots", lh.List)
	api.Get("/lots/:code", lh.GetByCode)
	api.Get("/stages", lh.Stages)

	sh := &salehandler.Handlers{Purchases: purchaseSvc, Ledger: ledgerSvc, EventLog: &purchaseevents.Service{DB: db}}
	sg := api.Group("/sales", middleware.RequireAuth())
	sg.Post("/buy/:lot_id", middleware.AuthorizePermission(constants.BuyLot), sh.Buy)
	sg.Get("/my-purchases", middleware.AuthorizePermission(constants.ViewPurchase), sh.MyPurchases)
	sg.Get("/purchases/:id", sh.Detail)
	sg.Get("/purchases/:id/events", sh.Events)
	sg.Post("/purchases/:id/payments", sh.RecordPayment)

	adh := &adminhandler.Handlers{DB: db, Purchases: purchaseSvc, Ledger: ledgerSvc, Reconciler: reconciler}
	ag := api.Group("/admin", middleware.RequireAuth())
	ag.Get("/purchases", middleware.AuthorizePermission(constants.ManagePurchases), adh.ListPurchases)
	ag.Post("/purchases", middleware.AuthorizePermission(constants.ManagePurchases), adh.CreatePurchase)
	ag.Put("/purchases/:id", middleware.AuthorizePermission(constants.ManagePurchases), adh.UpdatePurchase)
	ag.Get("/payments", middleware.AuthorizePermission(constants.ManagePayments), adh.ListPayments)
	ag.Post("/payments", middleware.AuthorizePermission(constants.ManagePayments), adh.CreatePayment)
	ag.Patch("/payments/:id/validate", middleware.AuthorizePermission(constants.ManagePayments), adh.ValidatePayment)
	ag.Delete("/payments/:id", middleware.AuthorizePermission(constants.ManagePayments), adh.DeletePayment)
	ag.Post("/lots/sync", middleware.AuthorizePermission(constants.SyncLots), adh.SyncLots)
	ag.Get("/users", middleware.AuthorizePermission(constants.ManageUsers), uh.List)

	return app, db, rdb, nil
}
