package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig configures a channel spanning processes through RabbitMQ.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// AMQPChannel posts the update signal to a fanout exchange so every process
// bound to it, and sharing the same database file, re-reads its store.
type AMQPChannel struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	instanceID string
	logger     *slog.Logger

	mu      sync.RWMutex
	handler func()

	closeOnce sync.Once
	done      chan struct{}
}

var _ Channel = (*AMQPChannel)(nil)

// DialAMQP connects, declares the fanout exchange and an exclusive queue
// bound to it, and starts consuming.
func DialAMQP(cfg AMQPConfig, logger *slog.Logger) (*AMQPChannel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}

	c := &AMQPChannel{
		conn:       conn,
		ch:         ch,
		exchange:   cfg.Exchange,
		instanceID: uuid.NewString(),
		logger:     logger,
		done:       make(chan struct{}),
	}
	go c.consume(deliveries)
	return c, nil
}

// Post publishes the signal. Delivery to other processes is not acknowledged.
func (c *AMQPChannel) Post() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.ch.PublishWithContext(ctx, c.exchange, "", false, false, amqp.Publishing{
		ContentType: "text/plain",
		AppId:       c.instanceID,
		Body:        []byte(Signal),
	})
	if err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

// OnReceive sets the receive handler, replacing any previous one.
func (c *AMQPChannel) OnReceive(fn func()) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
}

// Close shuts down the AMQP channel and connection.
func (c *AMQPChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ch.Close()
		err = c.conn.Close()
	})
	return err
}

func (c *AMQPChannel) consume(deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("amqp delivery channel closed")
				return
			}
			if !acceptDelivery(c.instanceID, d) {
				continue
			}
			c.mu.RLock()
			fn := c.handler
			c.mu.RUnlock()
			if fn != nil {
				fn()
			}
		}
	}
}

// acceptDelivery filters out our own posts and anything that is not the signal.
func acceptDelivery(instanceID string, d amqp.Delivery) bool {
	return d.AppId != instanceID && string(d.Body) == Signal
}
