package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/cart"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/cartstore"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/catalog"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/checkout"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/notification"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/order"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/payment"
	transport "github.com/danribes/mystic-ecom-cloud-sub002/internal/transport/http"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/config"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/db"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	logger, err := config.NewLogger(cfg.Logger, cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := tracing.InitTracer(ctx, "commerce-api")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}

	// Lifecycle of every connection is owned here; services receive handles
	// and never open or close their own.
	cartStore := cartstore.NewRedisStore(redisClient)
	catalogRepo := catalog.NewRepository(pool, logger)
	cartService := cart.NewService(cartStore, catalogRepo, logger)

	sender := notification.NewSMTPSender(cfg.SMTP, logger)
	dispatcher := notification.NewDispatcher(logger)

	orderRepo := order.NewRepository(pool, logger)
	orderService := order.NewService(pool, orderRepo, catalogRepo, sender, dispatcher, logger)

	gateway := payment.NewClient(cfg.Payment, logger)
	checkoutService := checkout.NewService(
		cartService,
		orderService,
		gateway,
		cfg.Checkout.SuccessURL,
		cfg.Checkout.CancelURL,
		logger,
	)
	processor := checkout.NewWebhookProcessor(orderService, gateway, logger)

	cartHandler := transport.NewCartHandler(cartService, logger)
	checkoutHandler := transport.NewCheckoutHandler(checkoutService, orderService, logger)
	webhookHandler := transport.NewWebhookHandler(processor, logger)

	app := transport.NewRouter(cartHandler, checkoutHandler, webhookHandler)

	go func() {
		logging.Info(ctx, logger, "HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error serving HTTP: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), 5*time.Second)
	defer exit()

	logging.Info(shutdownCtx, logger, "Shutting down commerce api")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to shut down HTTP server", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to close redis client", zap.Error(err))
	}

	pool.Close()
}
