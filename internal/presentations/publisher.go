package presentations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
)

// MessagePublisher — публикация сообщения в брокер (реализует *mq.Publisher).
type MessagePublisher interface {
	Publish(ctx context.Context, msg mq.Publishing) error
}

// DecisionPublisher публикует решения по докладам в рабочие очереди.
//
// Сообщения публикуются через default exchange с mandatory:
// если очередь не существует, брокер вернёт сообщение и Publish
// вернёт mq.ErrUnroutable. Повторной публикации нет.
type DecisionPublisher struct {
	pub    MessagePublisher
	logger *slog.Logger
}

// NewDecisionPublisher создаёт DecisionPublisher.
func NewDecisionPublisher(pub MessagePublisher, logger *slog.Logger) *DecisionPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionPublisher{
		pub:    pub,
		logger: logger.With("component", "decision-publisher"),
	}
}

// Approve публикует одобрение доклада.
func (p *DecisionPublisher) Approve(ctx context.Context, ev events.PresentationDecisionEvent) (string, error) {
	return p.Publish(ctx, ev, mq.QueuePresentationApprovals)
}

// Reject публикует отказ по докладу.
func (p *DecisionPublisher) Reject(ctx context.Context, ev events.PresentationDecisionEvent) (string, error) {
	return p.Publish(ctx, ev, mq.QueuePresentationRejections)
}

// Publish публикует решение в очередь queue и возвращает id сообщения.
// Решение события определяется очередью.
func (p *DecisionPublisher) Publish(ctx context.Context, ev events.PresentationDecisionEvent, queue mq.Queue) (string, error) {
	route, err := RouteForQueue(queue)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, queue)
	}
	ev.Decision = route.Decision

	env, body, err := events.Encode(ev)
	if err != nil {
		return "", err
	}

	err = p.pub.Publish(ctx, mq.Publishing{
		Exchange:   mq.ExchangeDefault,
		RoutingKey: string(queue),
		Mandatory:  true,
		Persistent: true,
		Declare:    route.Queue,
		MessageID:  env.ID,
		Type:       string(env.Kind),
		Timestamp:  env.OccurredAt,
		Body:       body,
	})
	if errors.Is(err, mq.ErrUnroutable) {
		p.logger.Warn("decision was not routed to any queue",
			"queue", queue,
			"message_id", env.ID,
			"presenter_email", ev.PresenterEmail,
		)
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("publish decision to %s: %w", queue, err)
	}

	p.logger.Info("decision published",
		"queue", queue,
		"message_id", env.ID,
		"presenter_email", ev.PresenterEmail,
		"title", ev.Title,
	)
	return env.ID, nil
}
