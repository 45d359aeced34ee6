package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/go_cart/marketplace-checkout/internal/config"
	"github.com/fjod/go_cart/marketplace-checkout/internal/consumer"
	"github.com/fjod/go_cart/marketplace-checkout/internal/logging"
)

// The notifier delivers seller notifications that checkout publishes to Kafka.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(logging.Options{
		Component: "seller-notifier",
		Level:     cfg.Log.Level,
		FilePath:  cfg.Log.File,
	})

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("kafka.brokers required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := consumer.NewConsumer(consumer.NewLogMailer(logging.New("mailer")), logger, cfg.Kafka.Topic, "", cfg.Kafka.Brokers...)
	defer c.Close()

	logger.Info("seller notifier starting", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	c.Run(ctx)
	logger.Info("seller notifier stopped")
}
