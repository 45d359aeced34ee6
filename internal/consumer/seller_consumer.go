package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/marketplace-checkout/internal/metrics"
	"github.com/fjod/go_cart/marketplace-checkout/internal/publisher"
	"github.com/segmentio/kafka-go"
)

const defaultGroupID = "seller-notifier"

// Mailer delivers one order summary to a seller.
type Mailer interface {
	Deliver(ctx context.Context, to string, summary publisher.OrderSummary) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads seller notifications published at checkout and hands them to
// a Mailer. Offsets are committed after delivery, so a crash redelivers.
type Consumer struct {
	reader   messageReader
	mailer   Mailer
	log      *slog.Logger
	attempts int
	backoff  time.Duration
}

func NewConsumer(mailer Mailer, log *slog.Logger, topic, groupID string, brokers ...string) *Consumer {
	if topic == "" {
		topic = publisher.SellerNotificationsTopic
	}
	if groupID == "" {
		groupID = defaultGroupID
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, mailer, log)
}

func newConsumer(reader messageReader, mailer Mailer, log *slog.Logger) *Consumer {
	return &Consumer{
		reader:   reader,
		mailer:   mailer,
		log:      log,
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("error reading message", "error", err)
		return
	}

	var summary publisher.OrderSummary
	if err := json.Unmarshal(m.Value, &summary); err != nil {
		// poison message: nothing to retry
		c.log.Error("error parsing message", "error", err, "offset", m.Offset, "partition", m.Partition)
		c.commit(ctx, m)
		return
	}

	log := c.log.With("order_id", summary.OrderID, "seller_id", summary.SellerID)
	if err := c.deliver(ctx, summary); err != nil {
		metrics.Notifications.WithLabelValues("mail", "failed").Inc()
		log.Error("seller mail failed, giving up",
			"alert", "seller_notification",
			"seller_contact", summary.SellerContact,
			"error", err)
		if ctx.Err() != nil {
			// leave uncommitted so the next run redelivers
			return
		}
	} else {
		metrics.Notifications.WithLabelValues("mail", "sent").Inc()
		log.Info("seller mail sent", "seller_contact", summary.SellerContact)
	}
	c.commit(ctx, m)
}

func (c *Consumer) deliver(ctx context.Context, summary publisher.OrderSummary) error {
	if summary.SellerContact == "" {
		return fmt.Errorf("order %s: missing seller contact", summary.OrderID)
	}

	var err error
	for i := 0; i < c.attempts; i++ {
		if err = c.mailer.Deliver(ctx, summary.SellerContact, summary); err == nil {
			return nil
		}
		if i == c.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(1<<i)):
		}
	}
	return err
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.Error("error committing offset", "error", err, "offset", m.Offset)
	}
}

// LogMailer writes the mail it would send to the log.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Deliver(ctx context.Context, to string, summary publisher.OrderSummary) error {
	m.log.InfoContext(ctx, "mail",
		"to", to,
		"subject", fmt.Sprintf("New order %s: %s %s", summary.OrderID, summary.DisplayTotal, summary.Currency),
		"items", len(summary.Items),
		"buyer", summary.Buyer.Name,
		"city", summary.DeliveryAddress.City)
	return nil
}
