package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/confbus/internal/telemetry"
)

// Значения по умолчанию для ConsumerConfig.
const (
	DefaultPrefetch          = 1
	DefaultMaxAttempts       = 3
	DefaultHandlerRetryDelay = time.Second
)

// Handler — функция обработки сообщения.
// Логгер доставки доступен через telemetry.FromContext(ctx).
//
// nil — сообщение подтверждается (ack).
// Ошибка с ErrPoison — сообщение отклоняется без повтора и уходит в DLX.
// Любая другая ошибка — повтор с задержкой, пока не исчерпан MaxAttempts.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Queue — очередь, из которой пришло сообщение (для анонимных — имя от сервера).
	Queue string

	// Attempt — номер попытки обработки внутри процесса, начиная с 1.
	Attempt int

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Body возвращает тело сообщения.
func (d *Delivery) Body() []byte {
	return d.Raw.Body
}

// DeclareFunc объявляет очередь на канале и возвращает её имя.
// Вызывается при каждом (пере)подключении.
type DeclareFunc func(ch *amqp.Channel) (string, error)

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Name — имя consumer для логов и метрик.
	Name string

	// Queue — имя очереди. Используется, если Declare не задан.
	Queue Queue

	// Declare — объявление топологии перед подпиской.
	Declare DeclareFunc

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество неподтверждённых сообщений на consumer (default: 1).
	Prefetch int

	// MaxAttempts — число попыток обработки до отправки в DLX (default: 3).
	MaxAttempts int

	// Retry — задержка между попытками (default: constant 1s).
	Retry BackoffPolicy
}

// Consumer потребляет сообщения из очереди RabbitMQ.
//
// Подтверждение ручное и только после успешной обработки,
// поэтому сообщение, не дошедшее до ack, брокер доставит снова.
// После разрыва соединения Consumer заново объявляет очередь и подписывается.
type Consumer struct {
	conn        *Connection
	logger      *slog.Logger
	name        string
	queue       Queue
	declare     DeclareFunc
	handler     Handler
	prefetch    int
	maxAttempts int
	retry       BackoffPolicy

	mu         sync.Mutex
	current    string
	cancelFunc context.CancelFunc
	started    chan struct{}
	startOnce  sync.Once
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = DefaultPrefetch
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	retry := cfg.Retry
	if retry.Kind == "" && retry.Delay == 0 {
		retry = BackoffPolicy{Kind: BackoffConstant, Delay: DefaultHandlerRetryDelay}
	}

	name := cfg.Name
	if name == "" {
		name = string(cfg.Queue)
	}

	return &Consumer{
		conn:        conn,
		logger:      logger.With("consumer", name),
		name:        name,
		queue:       cfg.Queue,
		declare:     cfg.Declare,
		handler:     cfg.Handler,
		prefetch:    prefetch,
		maxAttempts: maxAttempts,
		retry:       retry,
		started:     make(chan struct{}),
	}
}

// Name возвращает имя consumer.
func (c *Consumer) Name() string {
	return c.name
}

// Queue возвращает имя очереди текущей подписки.
func (c *Consumer) Queue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Started закрывается после первой успешной подписки.
func (c *Consumer) Started() <-chan struct{} {
	return c.started
}

// Start запускает потребление и блокируется до отмены ctx, Stop или Close соединения.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()

	return c.consume(ctx)
}

// consume — основной цикл потребления.
func (c *Consumer) consume(ctx context.Context) error {
	b := c.retry.New()

	for {
		if err := c.conn.WaitReady(ctx); err != nil {
			return err
		}

		ch, deliveries, err := c.setupConsume()
		if err != nil {
			delay := nextDelay(b)
			c.logger.Error("failed to setup consume", "error", err, "retry_in", delay)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}
		b.Reset()

		c.logger.Info("consumer started", "queue", c.Queue())
		c.startOnce.Do(func() { close(c.started) })

		err = c.processDeliveries(ctx, deliveries)
		ch.Close()

		if ctx.Err() != nil {
			c.logger.Info("consumer stopped")
			return ctx.Err()
		}
		c.logger.Warn("deliveries channel closed, resubscribing", "error", err)
	}
}

// setupConsume открывает канал, объявляет очередь и начинает потребление.
func (c *Consumer) setupConsume() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	queue := string(c.queue)
	if c.declare != nil {
		queue, err = c.declare(ch)
		if err != nil {
			ch.Close()
			return nil, nil, err
		}
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue, // queue
		"",    // consumer tag (auto-generated)
		false, // auto-ack (ack вручную)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consume %q: %w", queue, err)
	}

	c.mu.Lock()
	c.current = queue
	c.mu.Unlock()

	return ch, deliveries, nil
}

// processDeliveries обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	queue := c.Queue()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handleDelivery(ctx, queue, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение и подтверждает или отклоняет его.
func (c *Consumer) handleDelivery(ctx context.Context, queue string, raw amqp.Delivery) {
	start := time.Now()
	outcome := c.process(ctx, queue, raw)

	telemetry.MessagesConsumed.WithLabelValues(c.name, outcome).Inc()
	telemetry.HandlerDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
}

// Исходы обработки сообщения.
const (
	outcomeAcked        = "acked"
	outcomePoison       = "poison"
	outcomeDeadLettered = "dead_lettered"
	outcomeRequeued     = "requeued"
)

func (c *Consumer) process(ctx context.Context, queue string, raw amqp.Delivery) string {
	b := c.retry.New()
	hctx := telemetry.WithLogger(ctx, c.logger.With("queue", queue))

	for attempt := 1; ; attempt++ {
		d := &Delivery{Queue: queue, Attempt: attempt, Raw: raw}

		err := c.handler(hctx, d)
		if err == nil {
			if err := raw.Ack(false); err != nil {
				c.logger.Error("failed to ack message", "message_id", raw.MessageId, "error", err)
			}
			return outcomeAcked
		}

		// Остановка посреди обработки: сообщение возвращается в очередь.
		if ctx.Err() != nil {
			c.requeue(raw)
			return outcomeRequeued
		}

		if errors.Is(err, ErrPoison) {
			c.logger.Error("rejecting poison message",
				"queue", queue,
				"message_id", raw.MessageId,
				"error", err,
			)
			c.reject(raw)
			return outcomePoison
		}

		if attempt >= c.maxAttempts {
			c.logger.Error("handler failed, giving up",
				"queue", queue,
				"message_id", raw.MessageId,
				"attempts", attempt,
				"error", err,
			)
			c.reject(raw)
			return outcomeDeadLettered
		}

		delay := nextDelay(b)
		c.logger.Warn("handler failed, retrying",
			"queue", queue,
			"message_id", raw.MessageId,
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.requeue(raw)
			return outcomeRequeued
		case <-timer.C:
		}
	}
}

func (c *Consumer) reject(raw amqp.Delivery) {
	if err := raw.Reject(false); err != nil {
		c.logger.Error("failed to reject message", "message_id", raw.MessageId, "error", err)
	}
}

func (c *Consumer) requeue(raw amqp.Delivery) {
	if err := raw.Nack(false, true); err != nil {
		c.logger.Error("failed to requeue message", "message_id", raw.MessageId, "error", err)
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}
