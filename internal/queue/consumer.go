package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/logger"
)

// Handler processes one decoded event. A returned error rejects the message.
type Handler func(ctx context.Context, ev Event) error

// Consumer reads auth.events and hands each event to a Handler. Run keeps a
// reconnect loop going until its context is cancelled.
type Consumer struct {
	url      string
	prefetch int
	handle   Handler
	log      *logger.Logger
}

func NewConsumer(url string, handle Handler, log *logger.Logger) *Consumer {
	return &Consumer{url: url, prefetch: 50, handle: handle, log: log.Named("consumer")}
}

// Run dials the broker with exponential back-off and consumes until ctx ends.
func (c *Consumer) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry forever

	for {
		var conn *amqp.Connection
		dial := func() error {
			var err error
			conn, err = amqp.Dial(c.url)
			return err
		}
		notify := func(err error, delay time.Duration) {
			c.log.Warn("failed to dial broker", zap.Duration("retry_in", delay), zap.Error(err))
		}
		if err := backoff.RetryNotify(dial, backoff.WithContext(bo, ctx), notify); err != nil {
			return ctx.Err()
		}
		bo.Reset() // reset after successful connect

		err := c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(AuthEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(AuthEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.dispatch(ctx, d.Body); err != nil {
				c.log.Error("handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return c.handle(ctx, ev)
}

// FormatLine renders ev as the single human-friendly line the notifier
// writes. Reset tokens are included: the notifier log stands in for mail
// delivery in development.
func FormatLine(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | user_id=%d | email=%q",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.UserID, ev.Email)
	if ev.ResetToken != "" {
		fmt.Fprintf(&b, " | reset_token=%s", ev.ResetToken)
	}
	if ev.ExpiresAt != nil {
		fmt.Fprintf(&b, " | expires_at=%s", ev.ExpiresAt.UTC().Format(time.RFC3339))
	}
	b.WriteByte('\n')
	return b.String()
}

// LineWriter returns a Handler appending FormatLine output to w.
func LineWriter(w io.Writer) Handler {
	var mu sync.Mutex
	return func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		if _, err := io.WriteString(w, FormatLine(ev)); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
		return nil
	}
}
