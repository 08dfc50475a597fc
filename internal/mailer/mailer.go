package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
	"github.com/shaiso/confbus/internal/presentations"
	"github.com/shaiso/confbus/internal/telemetry"
)

// Config — конфигурация Mailer.
type Config struct {
	Conn   *mq.Connection
	Sender Sender
	Logger *slog.Logger

	// From — адрес отправителя (default: admin@conference.go).
	From string

	// Prefetch, MaxAttempts, Retry передаются в mq.Consumer.
	Prefetch    int
	MaxAttempts int
	Retry       mq.BackoffPolicy
}

// Mailer читает очереди решений и отправляет письма докладчикам.
type Mailer struct {
	sender    Sender
	from      string
	consumers []*mq.Consumer
}

// New создаёт Mailer с consumer на каждую очередь решений.
func New(cfg Config) *Mailer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	from := cfg.From
	if from == "" {
		from = DefaultFrom
	}

	m := &Mailer{
		sender: cfg.Sender,
		from:   from,
	}
	logger = logger.With("component", "mailer")

	for _, route := range presentations.Routes {
		m.consumers = append(m.consumers, mq.NewConsumer(cfg.Conn, logger, mq.ConsumerConfig{
			Name:        "mailer-" + string(route.Decision),
			Queue:       route.Queue.Name,
			Declare:     declareWorkQueue(route.Queue),
			Handler:     m.handlerFor(route),
			Prefetch:    cfg.Prefetch,
			MaxAttempts: cfg.MaxAttempts,
			Retry:       cfg.Retry,
		}))
	}

	return m
}

func declareWorkQueue(spec mq.QueueSpec) mq.DeclareFunc {
	return func(ch *amqp.Channel) (string, error) {
		if err := mq.DeclareWorkQueue(ch, spec); err != nil {
			return "", err
		}
		return string(spec.Name), nil
	}
}

// Run потребляет обе очереди до отмены ctx.
// Ошибка одного consumer останавливает и остальные.
func (m *Mailer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range m.consumers {
		g.Go(func() error {
			return c.Start(ctx)
		})
	}
	return g.Wait()
}

// Started закрывается, когда все consumer подписались на свои очереди.
func (m *Mailer) Started() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for _, c := range m.consumers {
			<-c.Started()
		}
		close(done)
	}()
	return done
}

// handlerFor возвращает обработчик очереди route.
func (m *Mailer) handlerFor(route presentations.Route) mq.Handler {
	return func(ctx context.Context, d *mq.Delivery) error {
		msg, err := events.Decode(d.Body(), route.Kind)
		if err != nil {
			return fmt.Errorf("%w: %w", mq.ErrPoison, err)
		}

		if msg.Kind != route.Kind {
			return fmt.Errorf("%w: event %q arrived on %s", mq.ErrPoison, msg.Kind, route.Queue.Name)
		}

		ev, ok := msg.Decision()
		if !ok {
			return fmt.Errorf("%w: unexpected event kind %q", mq.ErrPoison, msg.Kind)
		}

		logger := telemetry.WithMessage(telemetry.FromContext(ctx), msg.ID, string(msg.Kind))
		if err := m.Notify(ctx, ev); err != nil {
			if errors.Is(err, ErrInvalidMail) {
				return fmt.Errorf("%w: %w", mq.ErrPoison, err)
			}
			return err
		}

		logger.Info("decision notification sent",
			"to", ev.PresenterEmail,
			"title", ev.Title,
			"attempt", d.Attempt,
			"legacy", msg.Legacy,
		)
		return nil
	}
}

// Notify рендерит и отправляет письмо о решении.
func (m *Mailer) Notify(ctx context.Context, ev events.PresentationDecisionEvent) error {
	mail, err := Render(ev, m.from)
	if err != nil {
		telemetry.NotificationsSent.WithLabelValues(string(ev.Decision), "invalid").Inc()
		return err
	}

	if err := m.sender.Send(ctx, mail); err != nil {
		telemetry.NotificationsSent.WithLabelValues(string(ev.Decision), "failed").Inc()
		return err
	}

	telemetry.NotificationsSent.WithLabelValues(string(ev.Decision), "sent").Inc()
	return nil
}
