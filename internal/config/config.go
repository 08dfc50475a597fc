// Package config загружает конфигурацию сервисов из окружения.
//
// Перед чтением переменных подгружается .env (если есть) через godotenv;
// уже заданные переменные окружения не перезаписываются.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shaiso/confbus/internal/mailer"
	"github.com/shaiso/confbus/internal/mq"
)

// Провайдеры отправки писем.
const (
	MailProviderLog    = "log"
	MailProviderSMTP   = "smtp"
	MailProviderResend = "resend"
)

// Хранилища проекции аккаунтов.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config — конфигурация процесса.
type Config struct {
	RabbitMQURL string
	DBURL       string

	LogLevel  string
	LogFormat string

	// Reconnect — задержки между попытками подключения к брокеру.
	Reconnect mq.BackoffPolicy

	Prefetch     int
	MaxAttempts  int
	HandlerRetry mq.BackoffPolicy

	Mail MailConfig

	ProjectionStore string

	// MetricsPort — порт /healthz и /metrics; пустой — порт сервиса по умолчанию.
	MetricsPort string
}

// MailConfig — настройки отправки писем.
type MailConfig struct {
	Provider     string
	From         string
	SMTP         mailer.SMTPConfig
	ResendAPIKey string
	ResendURL    string
	RatePerSec   float64
}

// Load подгружает .env-файлы (по умолчанию ./.env) и читает конфигурацию.
// Отсутствующий файл не ошибка.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv читает конфигурацию из переменных окружения.
// Все ошибки разбора возвращаются вместе.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		RabbitMQURL: p.str("RABBITMQ_URL", mq.DefaultURL()),
		DBURL:       p.str("DB_URL", ""),
		LogLevel:    p.str("LOG_LEVEL", "INFO"),
		LogFormat:   p.str("LOG_FORMAT", "json"),
		Reconnect: mq.BackoffPolicy{
			Kind:     p.str("RECONNECT_BACKOFF", mq.BackoffConstant),
			Delay:    p.duration("RECONNECT_DELAY", mq.DefaultRetryDelay),
			MaxDelay: p.duration("RECONNECT_MAX_DELAY", 30*time.Second),
		},
		Prefetch:    p.integer("CONSUMER_PREFETCH", mq.DefaultPrefetch),
		MaxAttempts: p.integer("HANDLER_MAX_ATTEMPTS", mq.DefaultMaxAttempts),
		HandlerRetry: mq.BackoffPolicy{
			Kind:  mq.BackoffExponential,
			Delay: p.duration("HANDLER_RETRY_DELAY", mq.DefaultHandlerRetryDelay),
		},
		Mail: MailConfig{
			Provider: strings.ToLower(p.str("MAIL_PROVIDER", MailProviderLog)),
			From:     p.str("MAIL_FROM", mailer.DefaultFrom),
			SMTP: mailer.SMTPConfig{
				Host:     p.str("SMTP_HOST", ""),
				Port:     p.integer("SMTP_PORT", 587),
				User:     p.str("SMTP_USER", ""),
				Password: p.str("SMTP_PASSWORD", ""),
			},
			ResendAPIKey: p.str("RESEND_API_KEY", ""),
			ResendURL:    p.str("RESEND_BASE_URL", ""),
			RatePerSec:   p.float("MAIL_RATE_PER_SEC", 0),
		},
		ProjectionStore: strings.ToLower(p.str("PROJECTION_STORE", StoreMemory)),
		MetricsPort:     p.str("METRICS_PORT", ""),
	}

	p.check(cfg.Reconnect.Validate())

	if cfg.Prefetch <= 0 {
		p.fail("CONSUMER_PREFETCH must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		p.fail("HANDLER_MAX_ATTEMPTS must be positive")
	}

	switch cfg.Mail.Provider {
	case MailProviderLog:
	case MailProviderSMTP:
		if cfg.Mail.SMTP.Host == "" {
			p.fail("SMTP_HOST is required for MAIL_PROVIDER=smtp")
		}
	case MailProviderResend:
		if cfg.Mail.ResendAPIKey == "" {
			p.fail("RESEND_API_KEY is required for MAIL_PROVIDER=resend")
		}
	default:
		p.fail(fmt.Sprintf("unknown MAIL_PROVIDER %q", cfg.Mail.Provider))
	}

	switch cfg.ProjectionStore {
	case StoreMemory:
	case StorePostgres:
		if cfg.DBURL == "" {
			p.fail("DB_URL is required for PROJECTION_STORE=postgres")
		}
	default:
		p.fail(fmt.Sprintf("unknown PROJECTION_STORE %q", cfg.ProjectionStore))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parser читает переменные и копит ошибки разбора.
type parser struct {
	errs []error
}

func (p *parser) fail(msg string) {
	p.errs = append(p.errs, errors.New(msg))
}

func (p *parser) check(err error) {
	if err != nil {
		p.errs = append(p.errs, err)
	}
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
