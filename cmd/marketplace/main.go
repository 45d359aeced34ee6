package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_cart/marketplace-checkout/internal/cache"
	"github.com/fjod/go_cart/marketplace-checkout/internal/config"
	h "github.com/fjod/go_cart/marketplace-checkout/internal/http"
	"github.com/fjod/go_cart/marketplace-checkout/internal/logging"
	"github.com/fjod/go_cart/marketplace-checkout/internal/publisher"
	"github.com/fjod/go_cart/marketplace-checkout/internal/repository"
	"github.com/fjod/go_cart/marketplace-checkout/internal/service"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(logging.Options{
		Component: cfg.App.Name,
		Level:     cfg.Log.Level,
		FilePath:  cfg.Log.File,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Catalog and orders
	store, err := openStore(cfg)
	if err != nil {
		fatal(logger, "failed to open store", err)
	}
	defer store.Close()

	if err := store.RunMigrations(); err != nil {
		fatal(logger, "failed to run migrations", err)
	}

	// Carts
	mongoDB, err := repository.OpenCartDatabase(ctx, repository.MongoOptions{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		AppName:        cfg.App.Name,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		fatal(logger, "failed to connect to mongo", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			logger.Error("mongo disconnect failed", "error", err)
		}
	}()

	cartRepo := repository.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		fatal(logger, "failed to create cart indexes", err)
	}

	// Cache and idempotency keys
	var (
		cartCache cache.CartCache = cache.NopCache{}
		idem      cache.IdempotencyStore
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal(logger, "failed to connect to redis", err)
		}
		cartCache = cache.NewRedisCache(rdb, cfg.Redis.CartTTL)
		idem = cache.NewRedisIdempotencyStore(rdb, cfg.Checkout.IdempotencyTTL)
	} else {
		logger.Warn("redis not configured, cart cache and idempotency keys disabled")
	}

	// Seller notifications
	notifier, closeNotifier, err := openNotifier(cfg, logger)
	if err != nil {
		fatal(logger, "failed to set up seller notifications", err)
	}
	defer closeNotifier()

	cartService := service.NewCartService(cartRepo, cartCache, store, logging.New("cart"))
	checkoutService := service.NewCheckoutService(
		cartService,
		store,
		store,
		service.NewNotificationSender(notifier, cfg.Notify.Driver, logging.New("notify")),
		idem,
		service.CheckoutConfig{
			Workers:  cfg.Checkout.Workers,
			Currency: cfg.Checkout.Currency,
		},
		logging.New("checkout"))
	orderService := service.NewOrderService(store, logging.New("orders"))

	router := h.NewRouter(h.RouterConfig{
		Carts:              cartService,
		Checkout:           checkoutService,
		Orders:             orderService,
		Auth:               h.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Logger:             logging.New("http"),
		Currency:           cfg.Checkout.Currency,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("marketplace starting", "addr", cfg.App.HTTPAddr, "store", cfg.Store.Driver, "notify", cfg.Notify.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

func openStore(cfg config.Config) (*repository.SQLStore, error) {
	switch cfg.Store.Driver {
	case repository.DriverPostgres:
		pg := cfg.Store.Postgres
		return repository.NewPostgresStore(&repository.Credentials{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			DBName:   pg.DBName,
			SSLMode:  pg.SSLMode,
		})
	case repository.DriverSQLite:
		return repository.NewSQLiteStore(cfg.Store.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// openNotifier builds the configured transport behind a circuit breaker. The
// returned func releases broker connections.
func openNotifier(cfg config.Config, logger *slog.Logger) (publisher.Notifier, func(), error) {
	breaker := publisher.BreakerSettings{
		Name:                "seller-" + cfg.Notify.Driver,
		ConsecutiveFailures: cfg.Notify.Breaker.Failures,
		OpenTimeout:         cfg.Notify.Breaker.OpenTimeout,
		HalfOpenRequests:    cfg.Notify.Breaker.HalfOpenRequests,
	}

	switch cfg.Notify.Driver {
	case "kafka":
		kn := publisher.NewKafkaNotifier(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		closeFn := func() {
			if err := kn.Close(); err != nil {
				logger.Error("kafka writer close failed", "error", err)
			}
		}
		return publisher.NewBreakerNotifier(kn, breaker, logger), closeFn, nil

	case "rabbitmq":
		conn, err := amqp.Dial(cfg.Rabbit.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		rn, err := publisher.NewRabbitNotifier(conn, cfg.Rabbit.Exchange)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		closeFn := func() {
			_ = rn.Close()
			if err := conn.Close(); err != nil {
				logger.Error("rabbitmq close failed", "error", err)
			}
		}
		return publisher.NewBreakerNotifier(rn, breaker, logger), closeFn, nil

	default:
		return publisher.NewLogNotifier(logging.New("seller-notifications")), func() {}, nil
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
