package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	d "github.com/fjod/go_cart/marketplace-checkout/internal/domain"
	"github.com/fjod/go_cart/marketplace-checkout/internal/publisher"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	m         sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.m.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.m.Unlock()
		return msg, nil
	}
	r.m.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.m.Lock()
	defer r.m.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeMailer struct {
	m     sync.Mutex
	sent  []string
	fails int
}

func (f *fakeMailer) Deliver(_ context.Context, to string, summary publisher.OrderSummary) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to+":"+summary.OrderID)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func message(t *testing.T, offset int64, summary publisher.OrderSummary) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(summary)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Key: []byte(summary.SellerID), Value: payload}
}

func testSummary(orderID string) publisher.OrderSummary {
	return publisher.OrderSummary{
		OrderID:       orderID,
		SellerID:      "S1",
		SellerContact: "s1@example.com",
		Buyer:         d.BuyerInfo{Name: "Ada"},
		TotalAmount:   2000,
		DisplayTotal:  "20.00",
		Currency:      "USD",
	}
}

func newTestConsumer(reader *fakeReader, mailer Mailer) *Consumer {
	c := newConsumer(reader, mailer, discardLogger())
	c.backoff = time.Millisecond
	return c
}

func TestConsumer_DeliversAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		message(t, 1, testSummary("o1")),
		message(t, 2, testSummary("o2")),
	}}
	mailer := &fakeMailer{}
	c := newTestConsumer(reader, mailer)

	c.processMessage(context.Background())
	c.processMessage(context.Background())

	assert.Equal(t, []string{"s1@example.com:o1", "s1@example.com:o2"}, mailer.sent)
	assert.Equal(t, []int64{1, 2}, reader.commits())
}

func TestConsumer_RetriesTransientFailure(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{message(t, 7, testSummary("o1"))}}
	mailer := &fakeMailer{fails: 2}
	c := newTestConsumer(reader, mailer)

	c.processMessage(context.Background())

	assert.Equal(t, []string{"s1@example.com:o1"}, mailer.sent)
	assert.Equal(t, []int64{7}, reader.commits())
}

func TestConsumer_GivesUpAfterAttempts(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{message(t, 3, testSummary("o1"))}}
	mailer := &fakeMailer{fails: 10}
	c := newTestConsumer(reader, mailer)

	c.processMessage(context.Background())

	assert.Empty(t, mailer.sent)
	assert.Equal(t, 7, mailer.fails, "three attempts")
	assert.Equal(t, []int64{3}, reader.commits())
}

func TestConsumer_PoisonMessageIsSkipped(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Offset: 5, Value: []byte("{not json")}}}
	mailer := &fakeMailer{}
	c := newTestConsumer(reader, mailer)

	c.processMessage(context.Background())

	assert.Empty(t, mailer.sent)
	assert.Equal(t, []int64{5}, reader.commits())
}

func TestConsumer_MissingContact(t *testing.T) {
	s := testSummary("o1")
	s.SellerContact = ""
	reader := &fakeReader{queue: []kafka.Message{message(t, 9, s)}}
	mailer := &fakeMailer{}
	c := newTestConsumer(reader, mailer)

	c.processMessage(context.Background())

	assert.Empty(t, mailer.sent)
	assert.Equal(t, []int64{9}, reader.commits())
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{message(t, 1, testSummary("o1"))}}
	mailer := &fakeMailer{}
	c := newTestConsumer(reader, mailer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	c.Close()
	assert.True(t, reader.closed)
}
