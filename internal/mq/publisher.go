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

const defaultMaxIdleChannels = 4

// Publishing — сообщение для публикации.
type Publishing struct {
	// Exchange — обменник; ExchangeDefault для публикации прямо в очередь.
	Exchange Exchange

	// RoutingKey — ключ маршрутизации (имя очереди для default exchange).
	RoutingKey string

	// Mandatory — брокер вернёт сообщение, если его некуда доставить.
	Mandatory bool

	// Persistent — сообщение переживёт рестарт брокера (если очередь durable).
	Persistent bool

	// Declare — объект топологии, объявляемый перед первой публикацией на канале.
	Declare Declaration

	MessageID string
	Type      string
	Timestamp time.Time
	Body      []byte
}

// destination возвращает имя получателя для логов и метрик.
func (p Publishing) destination() string {
	if p.Exchange != ExchangeDefault {
		return string(p.Exchange)
	}
	return p.RoutingKey
}

// pubChannel — канал в режиме publisher confirms.
type pubChannel struct {
	ch       *amqp.Channel
	returns  chan amqp.Return
	declared map[string]bool
}

// Publisher публикует сообщения в RabbitMQ.
//
// Использует долгоживущее Connection и небольшой пул каналов:
// канал берётся на одну публикацию и возвращается в пул.
// Каждый канал работает в confirm mode, поэтому Publish возвращается
// только после basic.ack / basic.nack / basic.return от брокера.
type Publisher struct {
	conn    *Connection
	logger  *slog.Logger
	maxIdle int

	mu     sync.Mutex
	idle   []*pubChannel
	closed bool
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:    conn,
		logger:  logger.With("component", "publisher"),
		maxIdle: defaultMaxIdleChannels,
	}
}

// Publish публикует сообщение и ждёт подтверждения брокера.
//
// Если соединения нет, ждёт его в пределах ctx.
// Mandatory-сообщение, которое брокер не смог маршрутизировать,
// даёт ошибку ErrUnroutable; повторной публикации нет.
func (p *Publisher) Publish(ctx context.Context, msg Publishing) error {
	dest := msg.destination()

	pc, err := p.acquire(ctx)
	if err != nil {
		telemetry.MessagesPublished.WithLabelValues(dest, "failed").Inc()
		return err
	}

	err = p.publish(ctx, pc, msg)
	p.release(pc, err == nil || errors.Is(err, ErrUnroutable))

	switch {
	case err == nil:
		telemetry.MessagesPublished.WithLabelValues(dest, "confirmed").Inc()
		p.logger.Debug("published message",
			"exchange", msg.Exchange,
			"routing_key", msg.RoutingKey,
			"message_id", msg.MessageID,
			"type", msg.Type,
		)
	case errors.Is(err, ErrUnroutable):
		telemetry.MessagesPublished.WithLabelValues(dest, "returned").Inc()
		p.logger.Warn("message was returned",
			"exchange", msg.Exchange,
			"routing_key", msg.RoutingKey,
			"message_id", msg.MessageID,
			"error", err,
		)
	case errors.Is(err, ErrNacked):
		telemetry.MessagesPublished.WithLabelValues(dest, "nacked").Inc()
	default:
		telemetry.MessagesPublished.WithLabelValues(dest, "failed").Inc()
	}

	return err
}

// publish выполняет одну публикацию на канале pc.
func (p *Publisher) publish(ctx context.Context, pc *pubChannel, msg Publishing) error {
	if msg.Declare != nil && !pc.declared[msg.Declare.Key()] {
		if err := msg.Declare.Declare(pc.ch); err != nil {
			return err
		}
		pc.declared[msg.Declare.Key()] = true
	}

	mode := amqp.Transient
	if msg.Persistent {
		mode = amqp.Persistent
	}

	confirm, err := pc.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		string(msg.Exchange), // exchange
		msg.RoutingKey,       // routing key
		msg.Mandatory,        // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: mode,
			MessageId:    msg.MessageID,
			Type:         msg.Type,
			Timestamp:    msg.Timestamp,
			Body:         msg.Body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", msg.destination(), err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait confirm from %s: %w", msg.destination(), err)
	}

	// basic.return приходит раньше basic.ack на том же канале.
	select {
	case ret, ok := <-pc.returns:
		if ok {
			return fmt.Errorf("%w: %s: %d %s", ErrUnroutable, msg.destination(), ret.ReplyCode, ret.ReplyText)
		}
	default:
	}

	if !acked {
		return fmt.Errorf("%w: %s", ErrNacked, msg.destination())
	}
	return nil
}

// acquire берёт канал из пула или открывает новый.
func (p *Publisher) acquire(ctx context.Context) (*pubChannel, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !pc.ch.IsClosed() {
			p.mu.Unlock()
			return pc, nil
		}
	}
	p.mu.Unlock()

	if err := p.conn.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &pubChannel{
		ch:       ch,
		returns:  ch.NotifyReturn(make(chan amqp.Return, 1)),
		declared: make(map[string]bool),
	}, nil
}

// release возвращает канал в пул или закрывает его.
func (p *Publisher) release(pc *pubChannel, reuse bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || !reuse || pc.ch.IsClosed() || len(p.idle) >= p.maxIdle {
		pc.ch.Close()
		return
	}
	p.idle = append(p.idle, pc)
}

// Close закрывает каналы пула. Соединение не закрывается.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for _, pc := range p.idle {
		pc.ch.Close()
	}
	p.idle = nil
	return nil
}
