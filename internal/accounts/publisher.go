package accounts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
)

// MessagePublisher — публикация сообщения в брокер (реализует *mq.Publisher).
type MessagePublisher interface {
	Publish(ctx context.Context, msg mq.Publishing) error
}

// Publisher публикует изменения аккаунтов в account_info.
//
// Публикация синхронная: события одного аккаунта уходят в порядке вызовов.
// Без mandatory: fanout без подписчиков — нормальное состояние.
type Publisher struct {
	pub    MessagePublisher
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(pub MessagePublisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		pub:    pub,
		logger: logger.With("component", "account-publisher"),
	}
}

// Publish публикует событие и возвращает id сообщения.
func (p *Publisher) Publish(ctx context.Context, ev events.AccountEvent) (string, error) {
	env, body, err := events.Encode(ev)
	if err != nil {
		return "", err
	}

	err = p.pub.Publish(ctx, mq.Publishing{
		Exchange:  mq.ExchangeAccountInfo,
		Declare:   mq.AccountInfo,
		MessageID: env.ID,
		Type:      string(env.Kind),
		Timestamp: env.OccurredAt,
		Body:      body,
	})
	if err != nil {
		return "", fmt.Errorf("publish account event for %s: %w", ev.Email, err)
	}

	p.logger.Info("account event published",
		"message_id", env.ID,
		"email", ev.Email,
		"is_active", ev.IsActive,
	)
	return env.ID, nil
}
