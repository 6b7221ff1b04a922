package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"babybudget/internal/core"
	"babybudget/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialTimeout    = 5 * time.Second
	heartbeat      = 10 * time.Second
)

// ErrNotConnected is returned by Publish while the broker connection is being
// re-established in the background.
var ErrNotConnected = errors.New("not connected to AMQP broker")

// Client publishes and consumes budget events on a direct exchange. The
// queue name doubles as the routing key.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	closed  bool

	reconnecting int32

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	conn, channel, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.install(conn, channel)
	return c, nil
}

// dial connects and declares the topology. It never holds c.mu, so a slow
// broker cannot block publishers queued behind the lock.
func (c *Client) dial() (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.DialConfig(c.url, amqp091.Config{
		Dial:      amqp091.DefaultDial(dialTimeout),
		Heartbeat: heartbeat,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return conn, channel, nil
}

// install adopts a fresh connection unless another caller got there first or
// the client was closed meanwhile.
func (c *Client) install(conn *amqp091.Connection, channel *amqp091.Channel) (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		channel.Close()
		conn.Close()
		return nil, amqp091.ErrClosed
	}
	if c.connectedLocked() {
		channel.Close()
		conn.Close()
		return c.channel, nil
	}
	c.closeLocked()
	c.conn = conn
	c.channel = channel
	return channel, nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) connectedLocked() bool {
	return c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed()
}

// currentChannel returns the live channel, or nil when disconnected.
func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectedLocked() {
		return c.channel
	}
	return nil
}

// ensureChannel reconnects synchronously when the channel or connection has
// gone away. The consumer uses it; publishers go through reconnectAsync.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	if ch := c.currentChannel(); ch != nil {
		return ch, nil
	}
	conn, channel, err := c.dial()
	if err != nil {
		return nil, err
	}
	ch, err := c.install(conn, channel)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Reconnected to AMQP broker", "exchange", c.exchangeName, "queue", c.queueName)
	return ch, nil
}

// reconnectAsync starts at most one background reconnect.
func (c *Client) reconnectAsync() {
	if !atomic.CompareAndSwapInt32(&c.reconnecting, 0, 1) {
		return
	}
	go func() {
		defer atomic.StoreInt32(&c.reconnecting, 0)
		if _, err := c.ensureChannel(); err != nil {
			c.logger.Warn("AMQP reconnect failed", log.FieldOperation, log.OpPublish, log.FieldError, err)
		}
	}()
}

// Publish sends one budget event. It never dials: while disconnected it
// schedules a background reconnect and returns ErrNotConnected, and it fails
// fast while the circuit is open.
func (c *Client) Publish(ctx context.Context, event *BudgetEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, dropping %s event", event.Type)
	}

	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch := c.currentChannel()
	if ch == nil {
		c.recordFailure()
		c.reconnectAsync()
		return fmt.Errorf("publish %s event: %w", event.Type, ErrNotConnected)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         string(event.Type),
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	c.logger.DebugContext(ctx, "Published budget event",
		log.FieldOperation, log.OpPublish,
		log.FieldEventType, event.Type,
		log.FieldUserID, event.UserID,
		log.FieldVersion, event.Version)
	return nil
}

// Handler processes one decoded event. A returned error requeues the message
// unless it wraps core.ErrValidation, which no retry can fix.
type Handler func(ctx context.Context, event *BudgetEvent) error

// Consume delivers events to handler until ctx is done, reconnecting with
// exponential backoff when the broker connection drops.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}
		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.Warn("Consumer stopped, retrying", log.FieldError, err, "backoff", wait.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler Handler, connected func()) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()
	c.logger.InfoContext(ctx, "Started consuming budget events", log.FieldOperation, log.OpConsume, "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks processed messages, drops malformed ones and those the
// handler rejected as invalid, and requeues the rest of the failures.
func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler Handler) {
	event, err := BudgetEventFromJSON(delivery.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Rejecting malformed message", log.FieldError, err)
		_ = delivery.Nack(false, false)
		return
	}

	if err := handler(ctx, event); err != nil {
		requeue := !errors.Is(err, core.ErrValidation)
		c.logger.ErrorContext(ctx, "Failed to handle budget event",
			log.FieldOperation, log.OpConsume,
			log.FieldError, err,
			log.FieldEventType, event.Type,
			log.FieldUserID, event.UserID,
			"requeue", requeue)
		_ = delivery.Nack(false, requeue)
		return
	}

	_ = delivery.Ack(false)
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		elapsed := time.Since(c.lastFailure)
		c.mu.Unlock()
		if elapsed > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeLocked()
	return nil
}
