// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/breaker"
	"github.com/dukerupert/freyja/internal/config"
	"github.com/dukerupert/freyja/internal/database"
	"github.com/dukerupert/freyja/internal/events"
	"github.com/dukerupert/freyja/internal/handler"
	"github.com/dukerupert/freyja/internal/idempotency"
	custommiddleware "github.com/dukerupert/freyja/internal/middleware"
	"github.com/dukerupert/freyja/internal/provider"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/scheduler"
	"github.com/dukerupert/freyja/internal/sequence"
	"github.com/dukerupert/freyja/internal/service"
	"github.com/dukerupert/freyja/internal/shipping"
	"github.com/dukerupert/freyja/internal/tax"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: zerolog.TimeFormatUnix}).With().Timestamp().Logger()

	debug := flag.Bool("debug", false, "sets log level to debug")
	flag.Parse()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(".env")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	logger.Info().Msg("running database migrations")
	if err := db.RunMigrations(cfg.DB.DSN); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	pub, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Namespace, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to event bus")
	}
	defer pub.Close()

	breakers := breaker.NewManager(breaker.DefaultConfig(),
		breaker.Pricing, breaker.Catalog, breaker.Inventory, breaker.Shipping, breaker.Notification, breaker.Gateway)

	idemStore := idempotency.NewStore(idempotency.DefaultSize, idempotency.DefaultTTL)

	seq := sequence.NewGenerator(db.Pool)
	taxCalc := tax.NewGSTCalculator()

	pricing := provider.NewHTTPPricing(cfg.Services.Pricing.BaseURL, cfg.Services.Pricing.Timeout)
	catalog := provider.NewHTTPCatalog(cfg.Services.Catalog.BaseURL, cfg.Services.Catalog.Timeout)
	inventory := provider.NewHTTPInventory(cfg.Services.Inventory.BaseURL, cfg.Services.Inventory.Timeout)
	notify := provider.NewHTTPNotification(cfg.Services.Notification.BaseURL, cfg.Services.Notification.Timeout)

	var shippingProvider shipping.Provider
	if cfg.Services.ShippingBypassMode {
		shippingProvider = shipping.NewFlatRateProvider([]shipping.FlatRate{
			{ServiceName: "Standard", ServiceCode: "STD", CostCents: 5000, DaysMin: 3, DaysMax: 7},
		})
	} else {
		shippingProvider = shipping.NewHTTPProvider(cfg.Services.Shipping.BaseURL, cfg.Services.Shipping.Timeout)
	}

	gateway, err := provider.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure payment gateway")
	}

	cartRepo := repository.NewPostgresCartRepository(db.Pool)
	checkoutRepo := repository.NewPostgresCheckoutSessionRepository(db.Pool)
	orderRepo := repository.NewPostgresOrderRepository(db.Pool)
	paymentRepo := repository.NewPostgresPaymentRepository(db.Pool)
	refundRepo := repository.NewPostgresRefundRepository(db.Pool)
	returnRepo := repository.NewPostgresReturnRepository(db.Pool)
	invoiceRepo := repository.NewPostgresInvoiceRepository(db.Pool)
	storeCreditRepo := repository.NewPostgresStoreCreditRepository(db.Pool)

	revalidator := service.NewRevalidator(pricing, catalog, breakers, logger)
	cartSvc := service.NewCartService(cartRepo, pricing, revalidator, breakers, pub, logger)
	orderSvc := service.NewOrderService(orderRepo, inventory, seq, breakers, pub, logger)
	paymentSvc := service.NewPaymentService(paymentRepo, checkoutRepo, orderSvc, gateway, breakers, pub, logger)
	checkoutSvc := service.NewCheckoutService(
		checkoutRepo, cartRepo, orderSvc, paymentSvc, revalidator,
		shippingProvider, inventory, gateway, taxCalc, breakers, pub, logger,
	)
	refundSvc := service.NewRefundService(refundRepo, paymentRepo, storeCreditRepo, orderSvc, gateway, seq, breakers, pub, logger)
	orderSvc.SetRefundService(refundSvc)
	returnSvc := service.NewReturnService(returnRepo, orderSvc, refundSvc, seq, int(cfg.Lifecycle.ReturnWindow/(24*time.Hour)), pub, logger)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, orderSvc, taxCalc, nil, seq, pub, logger)

	sched := scheduler.New(logger)
	sched.Register(scheduler.MarkAbandonedJob(cartSvc, cfg.Lifecycle.CartExpiry))
	sched.Register(scheduler.RemindAbandonedJob(cartSvc, notify, cfg.Lifecycle.CartExpiry))
	sched.Register(scheduler.PurgeAbandonedJob(cartSvc, 24*time.Hour))
	sched.Register(scheduler.ExpireCheckoutsJob(checkoutRepo, checkoutSvc, time.Minute))
	sched.Register(scheduler.AutoConfirmOrdersJob(orderSvc, 15*time.Minute))
	sched.Register(scheduler.ReconcilePaymentsJob(paymentSvc, 5*time.Minute))
	sched.Register(scheduler.CartItemValidationJob(cartSvc, scheduler.CartValidationInterval))
	go sched.Start(ctx)

	if err := scheduler.SubscribeAutoInvoice(ctx, pub, invoiceSvc, logger); err != nil {
		logger.Error().Err(err).Msg("failed to subscribe auto-invoice consumer")
	}

	handlers := handler.Handlers{
		Cart:     handler.NewCartHandler(cartSvc),
		Checkout: handler.NewCheckoutHandler(checkoutSvc, idemStore),
		Order:    handler.NewOrderHandler(orderRepo, orderSvc),
		Refund:   handler.NewRefundHandler(refundRepo, refundSvc),
		Return:   handler.NewReturnHandler(returnRepo, returnSvc),
		Invoice:  handler.NewInvoiceHandler(invoiceRepo, invoiceSvc),
		Payment:  handler.NewPaymentHandler(paymentRepo, paymentSvc),
		Webhook:  handler.NewWebhookHandler(paymentSvc),
	}

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	e.Use(custommiddleware.RequestLogger(logger))
	handler.RegisterRoutes(e, handlers, cfg.App.JWTSecret)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
