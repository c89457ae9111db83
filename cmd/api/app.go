package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/coupon-ledger/internal/audit"
	"github.com/fairyhunter13/coupon-ledger/internal/auth"
	"github.com/fairyhunter13/coupon-ledger/internal/handler"
	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/metrics"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
	"github.com/fairyhunter13/coupon-ledger/internal/service"
	"github.com/fairyhunter13/coupon-ledger/internal/validator"
)

// dataStore is everything the HTTP surface needs from the persistence layer outside of
// ledger transactions.
type dataStore interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListRedemptions(ctx context.Context, customerID, couponID string) ([]model.Redemption, error)
	IncrementClicks(ctx context.Context, couponID string) error
}

// appDeps wires a backend into the HTTP application.
type appDeps struct {
	backend       ledger.Backend
	data          dataStore
	health        handler.Pinger
	verifier      auth.Verifier
	registry      *prometheus.Registry
	maxRetries    int
	referrerBonus int64
	timeout       time.Duration
	logRequests   bool
}

// newApp builds the fiber application and its routes.
func newApp(d appDeps) *fiber.App {
	store := ledger.NewStore(d.backend,
		ledger.WithMaxRetries(d.maxRetries),
		ledger.WithRetryHook(func(error) { metrics.LedgerRetriesTotal.Inc() }),
	)

	redemptionService := service.NewRedemptionService(store, d.data, d.data, audit.NewLogger(),
		service.WithReferrerBonus(d.referrerBonus),
		service.WithTimeout(d.timeout),
	)
	clickService := service.NewClickService(d.data)

	redemptionHandler := handler.NewRedemptionHandler(redemptionService, validator.New())
	clickHandler := handler.NewClickHandler(clickService)
	healthHandler := handler.NewHealthHandler(d.health)

	app := fiber.New(fiber.Config{
		AppName:      "Coupon Ledger",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit
	})

	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	if d.logRequests {
		app.Use(logger.New())
	}

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Post("/coupons/:id/clicks", clickHandler.RecordClick)

	requireAuth := auth.RequireAuth(d.verifier)
	api.Post("/redemptions", requireAuth, redemptionHandler.Redeem)
	api.Get("/redemptions", requireAuth, redemptionHandler.History)

	return app
}
