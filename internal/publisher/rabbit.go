package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	SellerExchange   = "seller.notifications"
	sellerQueue      = "seller.notifications.q"
	orderPlacedRoute = "seller.order_placed"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitNotifier struct {
	ch       amqpPublisher
	exchange string
	timeout  time.Duration
}

// NewRabbitNotifier opens a channel and declares the exchange, queue and
// binding once at startup so publishing never fails on missing topology.
func NewRabbitNotifier(conn *amqp.Connection, exchange string) (*RabbitNotifier, error) {
	if exchange == "" {
		exchange = SellerExchange
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(sellerQueue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "seller.#", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	return &RabbitNotifier{ch: ch, exchange: exchange, timeout: 3 * time.Second}, nil
}

func (n *RabbitNotifier) Send(ctx context.Context, sellerContact string, summary OrderSummary) error {
	summary.SellerContact = sellerContact
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal seller notification: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err = n.ch.PublishWithContext(
		pubCtx,
		n.exchange,
		orderPlacedRoute,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    summary.OrderID,
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table{"seller_id": summary.SellerID},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (n *RabbitNotifier) Close() error {
	return n.ch.Close()
}
