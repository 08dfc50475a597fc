// Presentation Mailer — отправляет докладчикам письма о решениях по докладам.
//
// Сервис:
//   - Читает presentation_approvals и presentation_rejections
//   - Отправляет письмо через log, SMTP или Resend
//   - Отдаёт /healthz и /metrics
//
// Экземпляры конкурируют за сообщения: каждое решение обрабатывает один из них.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/confbus/internal/config"
	"github.com/shaiso/confbus/internal/mailer"
	"github.com/shaiso/confbus/internal/mq"
	"github.com/shaiso/confbus/internal/telemetry"
)

const defaultPort = "8082"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting presentation-mailer", "provider", cfg.Mail.Provider)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sender, err := newSender(cfg.Mail, logger)
	if err != nil {
		logger.Error("failed to create mail sender", "error", err)
		os.Exit(1)
	}

	var conn atomic.Pointer[mq.Connection]
	health := func() error {
		c := conn.Load()
		if c == nil || !c.IsConnected() {
			return mq.ErrNotConnected
		}
		return nil
	}

	port := cfg.MetricsPort
	if port == "" {
		port = defaultPort
	}
	srv := telemetry.NewServer(":"+port, health, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return telemetry.Serve(ctx, srv, logger)
	})

	g.Go(func() error {
		c, err := mq.NewConnection(ctx, mq.ConnectionConfig{
			URL:     cfg.RabbitMQURL,
			Name:    "presentation-mailer",
			Backoff: cfg.Reconnect,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		defer c.Close()
		conn.Store(c)

		m := mailer.New(mailer.Config{
			Conn:        c,
			Sender:      sender,
			Logger:      logger,
			From:        cfg.Mail.From,
			Prefetch:    cfg.Prefetch,
			MaxAttempts: cfg.MaxAttempts,
			Retry:       cfg.HandlerRetry,
		})
		return m.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("presentation-mailer failed", "error", err)
		os.Exit(1)
	}

	logger.Info("presentation-mailer stopped")
}

// newSender создаёт Sender по MAIL_PROVIDER с ограничением частоты.
func newSender(cfg config.MailConfig, logger *slog.Logger) (mailer.Sender, error) {
	var sender mailer.Sender

	switch cfg.Provider {
	case config.MailProviderLog:
		sender = mailer.NewLogSender(logger)
	case config.MailProviderSMTP:
		sender = mailer.NewSMTPSender(cfg.SMTP)
	case config.MailProviderResend:
		s, err := mailer.NewResendSender(cfg.ResendAPIKey, cfg.ResendURL)
		if err != nil {
			return nil, err
		}
		sender = s
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}

	return mailer.NewRateLimitedSender(sender, cfg.RatePerSec), nil
}
