package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/confbus/internal/accounts"
	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
	"github.com/shaiso/confbus/internal/presentations"
	"github.com/shaiso/confbus/internal/repo"
)

// Backend — операции, которые выполняют команды CLI.
type Backend interface {
	PublishAccount(ctx context.Context, ev events.AccountEvent) (string, error)
	PublishDecision(ctx context.Context, ev events.PresentationDecisionEvent) (string, error)
	SetupTopology(ctx context.Context) error
	ListAccounts(ctx context.Context) ([]accounts.Account, error)
	Close() error
}

// ClientConfig — параметры подключения CLI.
type ClientConfig struct {
	RabbitMQURL string
	DBURL       string
	Logger      *slog.Logger
}

// Client — Backend поверх RabbitMQ и Postgres.
// Соединения открываются лениво, при первой команде, которой они нужны.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *mq.Connection
	pub  *mq.Publisher
	pool *pgxpool.Pool
}

// NewClient создаёт Client. По умолчанию логи CLI отключены.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{cfg: cfg, logger: logger}
}

// broker подключается к брокеру. Ожидание ограничено ctx.
func (c *Client) broker(ctx context.Context) (*mq.Publisher, error) {
	if c.pub != nil {
		return c.pub, nil
	}

	conn, err := mq.NewConnection(ctx, mq.ConnectionConfig{
		URL:     c.cfg.RabbitMQURL,
		Name:    "confbus-cli",
		Backoff: mq.BackoffPolicy{Kind: mq.BackoffConstant, Delay: 500 * time.Millisecond},
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", redactURL(c.cfg.RabbitMQURL), err)
	}

	c.conn = conn
	c.pub = mq.NewPublisher(conn, c.logger)
	return c.pub, nil
}

func (c *Client) PublishAccount(ctx context.Context, ev events.AccountEvent) (string, error) {
	pub, err := c.broker(ctx)
	if err != nil {
		return "", err
	}
	return accounts.NewPublisher(pub, c.logger).Publish(ctx, ev)
}

func (c *Client) PublishDecision(ctx context.Context, ev events.PresentationDecisionEvent) (string, error) {
	pub, err := c.broker(ctx)
	if err != nil {
		return "", err
	}

	route, err := presentations.RouteForDecision(ev.Decision)
	if err != nil {
		return "", err
	}
	return presentations.NewDecisionPublisher(pub, c.logger).Publish(ctx, ev, route.Queue.Name)
}

func (c *Client) SetupTopology(ctx context.Context) error {
	if _, err := c.broker(ctx); err != nil {
		return err
	}
	return mq.SetupTopology(ctx, c.conn)
}

func (c *Client) ListAccounts(ctx context.Context) ([]accounts.Account, error) {
	if c.pool == nil {
		pool, err := repo.NewPool(ctx, c.cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect to projection database: %w", err)
		}
		c.pool = pool
	}
	return repo.NewAccountRepo(c.pool).List(ctx)
}

// Close закрывает открытые соединения.
func (c *Client) Close() error {
	if c.pub != nil {
		c.pub.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

// redactURL скрывает пароль в URL для вывода пользователю.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
