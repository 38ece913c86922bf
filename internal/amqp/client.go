package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"choreboard/internal/core"
	applog "choreboard/internal/log"
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
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

func dialAMQP(url string) (channel, io.Closer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn, nil
}

// Client publishes board events to a direct exchange and consumes the
// archive export queue. It connects lazily and reconnects after connection
// errors; repeated failures open a circuit breaker so publishing fails fast.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	dial         dialFunc
	logger       *applog.Logger

	mu      sync.Mutex
	channel channel
	conn    io.Closer

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string, logger *slog.Logger) *Client {
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		dial:         dialAMQP,
		logger:       applog.Wrap(logger, applog.ComponentAMQP),
	}
}

// Connect dials the broker and declares the topology.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.channelLocked()
	return err
}

func (c *Client) channelLocked() (channel, error) {
	if c.channel != nil {
		return c.channel, nil
	}
	dial := c.dial
	if dial == nil {
		dial = dialAMQP
	}
	ch, conn, err := dial(c.url)
	if err != nil {
		return nil, err
	}
	if err := c.setup(ch); err != nil {
		ch.Close()
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.channel, c.conn = ch, conn
	return ch, nil
}

func (c *Client) setup(ch channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// The export queue only receives archived weeks.
	err = ch.QueueBind(
		c.queueName,       // queue name
		EventWeekArchived, // routing key
		c.exchangeName,    // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// resetLocked drops the current channel so the next call reconnects.
func (c *Client) resetLocked() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.channel, c.conn = nil, nil
}

func (c *Client) PublishRewardEarned(ctx context.Context, r core.RewardEarned) error {
	return c.Publish(ctx, NewRewardEarnedEvent(r))
}

func (c *Client) PublishWeekArchived(ctx context.Context, s core.WeekSummary) error {
	return c.Publish(ctx, NewWeekArchivedEvent(s))
}

// Publish sends an event with persistent delivery, routed by its type.
func (c *Client) Publish(ctx context.Context, e *BoardEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", e.Type, ErrCircuitOpen)
	}
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	ch, err := c.channelLocked()
	if err != nil {
		c.mu.Unlock()
		c.recordFailure()
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	err = ch.PublishWithContext(
		pctx,
		c.exchangeName, // exchange
		e.Type,         // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    e.ID,
			Type:         e.Type,
			Timestamp:    e.Timestamp,
			Body:         body,
		},
	)
	cancel()
	if err != nil && isConnectionError(err) {
		c.resetLocked()
	}
	c.mu.Unlock()

	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.InfoContext(ctx, "Published board event",
		applog.FieldEventType, e.Type,
		"id", e.ID,
		"exchange", c.exchangeName)
	return nil
}

// Handler processes one event. A returned error requeues the delivery.
type Handler func(ctx context.Context, e *BoardEvent) error

// Consume processes the export queue until ctx is cancelled, reconnecting
// with exponential backoff when the broker goes away.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		started, err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if started {
			attempt = 0
		}

		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Consumer interrupted, reconnecting",
			applog.FieldError, err,
			applog.FieldAttempt, attempt+1,
			"wait", wait)
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// consumeOnce reports whether deliveries started flowing before it failed.
func (c *Client) consumeOnce(ctx context.Context, handler Handler) (bool, error) {
	c.mu.Lock()
	ch, err := c.channelLocked()
	if err == nil {
		err = ch.Qos(1, 0, false)
	}
	var msgs <-chan amqp091.Delivery
	if err == nil {
		msgs, err = ch.Consume(
			c.queueName, // queue
			"",          // consumer
			false,       // auto-ack (we want manual ack)
			false,       // exclusive
			false,       // no-local
			false,       // no-wait
			nil,         // args
		)
	}
	if err != nil {
		c.resetLocked()
		c.mu.Unlock()
		return false, fmt.Errorf("start consuming: %w", err)
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Started consuming board events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				c.mu.Lock()
				c.resetLocked()
				c.mu.Unlock()
				return true, errors.New("message channel closed")
			}
			c.handle(ctx, delivery, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, d amqp091.Delivery, handler Handler) {
	e, err := BoardEventFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode message", applog.FieldError, err)
		_ = d.Nack(false, false) // reject and don't requeue
		return
	}

	if err := handler(ctx, e); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle message",
			applog.FieldError, err,
			applog.FieldEventType, e.Type,
			"id", e.ID)
		_ = d.Nack(false, true) // reject and requeue
		return
	}

	_ = d.Ack(false)
	c.logger.DebugContext(ctx, "Processed board event", applog.FieldEventType, e.Type, "id", e.ID)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.channel, c.conn = nil, nil
	return err
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
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
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
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
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
