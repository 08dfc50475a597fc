package accounts

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
	"github.com/shaiso/confbus/internal/telemetry"
)

// SyncerConfig — конфигурация Syncer.
type SyncerConfig struct {
	Conn       *mq.Connection
	Projection *Projection
	Logger     *slog.Logger

	// Prefetch, MaxAttempts, Retry передаются в mq.Consumer.
	Prefetch    int
	MaxAttempts int
	Retry       mq.BackoffPolicy
}

// Syncer подписывается на account_info и обновляет проекцию.
//
// Очередь подписчика приватная: события, опубликованные до подписки
// или за время разрыва соединения, до Syncer не доходят.
type Syncer struct {
	consumer   *mq.Consumer
	projection *Projection
}

// NewSyncer создаёт Syncer.
func NewSyncer(cfg SyncerConfig) *Syncer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Syncer{projection: cfg.Projection}

	s.consumer = mq.NewConsumer(cfg.Conn, logger.With("component", "account-syncer"), mq.ConsumerConfig{
		Name:        "account-syncer",
		Declare:     declareSubscription,
		Handler:     s.Handle,
		Prefetch:    cfg.Prefetch,
		MaxAttempts: cfg.MaxAttempts,
		Retry:       cfg.Retry,
	})

	return s
}

func declareSubscription(ch *amqp.Channel) (string, error) {
	return mq.DeclareSubscription(ch, mq.AccountInfo, mq.AccountSubscription)
}

// Run потребляет события до отмены ctx.
func (s *Syncer) Run(ctx context.Context) error {
	return s.consumer.Start(ctx)
}

// Started закрывается после первой подписки на account_info.
func (s *Syncer) Started() <-chan struct{} {
	return s.consumer.Started()
}

// Handle обрабатывает одно сообщение из account_info.
//
// Неразбираемое сообщение помечается mq.ErrPoison. Ошибка записи
// в проекцию возвращается как есть и приводит к повтору.
func (s *Syncer) Handle(ctx context.Context, d *mq.Delivery) error {
	msg, err := events.Decode(d.Body(), events.KindAccountChanged)
	if err != nil {
		return fmt.Errorf("%w: %w", mq.ErrPoison, err)
	}

	ev, ok := msg.Account()
	if !ok {
		return fmt.Errorf("%w: unexpected event kind %q on account_info", mq.ErrPoison, msg.Kind)
	}

	logger := telemetry.WithMessage(telemetry.FromContext(ctx), msg.ID, string(msg.Kind))
	logger.Debug("account event received",
		"email", ev.Email,
		"is_active", ev.IsActive,
		"legacy", msg.Legacy,
		"attempt", d.Attempt,
	)

	_, err = s.projection.Apply(ctx, ev)
	return err
}
