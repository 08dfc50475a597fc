package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/resend/resend-go/v2"
	"golang.org/x/time/rate"
)

// LogSender только логирует письма. Используется, когда отправка отключена.
type LogSender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Mail
}

// NewLogSender создаёт LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "log-sender")}
}

func (s *LogSender) Send(_ context.Context, m Mail) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.sent = append(s.sent, m)
	s.mu.Unlock()

	s.logger.Info("mail (not sent)",
		"from", m.From,
		"to", m.To,
		"subject", m.Subject,
		"body", m.Body,
	)
	return nil
}

// Sent возвращает копию всех писем, прошедших через LogSender.
func (s *LogSender) Sent() []Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mail(nil), s.sent...)
}

// SMTPConfig — параметры SMTP-сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SMTPSender отправляет письма через SMTP.
//
// Если сервер поддерживает STARTTLS, соединение шифруется;
// аутентификация выполняется только при заданном User.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender создаёт SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, m Mail) error {
	if err := m.Validate(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %w", ErrDelivery, addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: smtp handshake: %w", ErrDelivery, err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("%w: start tls: %w", ErrDelivery, err)
		}
	}

	if s.cfg.User != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("%w: smtp auth: %w", ErrDelivery, err)
		}
	}

	if err := client.Mail(m.From); err != nil {
		return fmt.Errorf("%w: set sender: %w", ErrDelivery, err)
	}
	for _, to := range m.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("%w: set recipient %s: %w", ErrDelivery, to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%w: open data writer: %w", ErrDelivery, err)
	}
	if _, err := w.Write(buildMessage(m)); err != nil {
		return fmt.Errorf("%w: write body: %w", ErrDelivery, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: close data writer: %w", ErrDelivery, err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("%w: quit: %w", ErrDelivery, err)
	}
	return nil
}

// buildMessage собирает RFC 5322 сообщение с заголовками в фиксированном порядке.
func buildMessage(m Mail) []byte {
	var buf bytes.Buffer
	buf.WriteString("From: " + m.From + "\r\n")
	buf.WriteString("To: " + strings.Join(m.To, ", ") + "\r\n")
	buf.WriteString("Subject: " + m.Subject + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// ResendSender отправляет письма через Resend API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender создаёт ResendSender. Пустой baseURL — production API.
func NewResendSender(apiKey, baseURL string) (*ResendSender, error) {
	client := resend.NewClient(apiKey)
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendSender{client: client}, nil
}

func (s *ResendSender) Send(ctx context.Context, m Mail) error {
	if err := m.Validate(); err != nil {
		return err
	}

	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.From,
		To:      m.To,
		Subject: m.Subject,
		Text:    m.Body,
	})
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			return fmt.Errorf("%w: resend rate limit exceeded (resets in %s s): %w", ErrDelivery, rateLimitErr.Reset, err)
		}
		return fmt.Errorf("%w: resend: %w", ErrDelivery, err)
	}
	return nil
}

// RateLimitedSender ограничивает частоту отправки писем.
type RateLimitedSender struct {
	next    Sender
	limiter *rate.Limiter
}

// NewRateLimitedSender оборачивает next. perSecond <= 0 — без ограничения.
func NewRateLimitedSender(next Sender, perSecond float64) Sender {
	if perSecond <= 0 {
		return next
	}
	return &RateLimitedSender{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (s *RateLimitedSender) Send(ctx context.Context, m Mail) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: wait for rate limiter: %w", ErrDelivery, err)
	}
	return s.next.Send(ctx, m)
}
