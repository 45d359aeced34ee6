package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const SellerNotificationsTopic = "seller-notifications"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes one message per seller order, keyed by seller id so a
// seller's notifications stay ordered within a partition.
type KafkaNotifier struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaNotifier(topic string, brokers ...string) *KafkaNotifier {
	if topic == "" {
		topic = SellerNotificationsTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w, timeout: 5 * time.Second}
}

func (n *KafkaNotifier) Send(ctx context.Context, sellerContact string, summary OrderSummary) error {
	summary.SellerContact = sellerContact
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal seller notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(summary.SellerID),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("seller.order_placed")},
			{Key: "order_id", Value: []byte(summary.OrderID)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
