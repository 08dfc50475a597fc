// Attendees Sync — поддерживает локальную проекцию аккаунтов участников.
//
// Сервис:
//   - Подписывается на fanout account_info приватной очередью
//   - Применяет события к проекции (memory или PostgreSQL)
//   - Отдаёт /healthz и /metrics
//
// Каждый экземпляр получает все события, опубликованные после его подписки.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/confbus/internal/accounts"
	"github.com/shaiso/confbus/internal/config"
	"github.com/shaiso/confbus/internal/mq"
	"github.com/shaiso/confbus/internal/repo"
	"github.com/shaiso/confbus/internal/telemetry"
)

const defaultPort = "8081"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting attendees-sync", "store", cfg.ProjectionStore)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open projection store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	projection := accounts.NewProjection(store, logger)

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
			Name:    "attendees-sync",
			Backoff: cfg.Reconnect,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		defer c.Close()
		conn.Store(c)

		syncer := accounts.NewSyncer(accounts.SyncerConfig{
			Conn:        c,
			Projection:  projection,
			Logger:      logger,
			Prefetch:    cfg.Prefetch,
			MaxAttempts: cfg.MaxAttempts,
			Retry:       cfg.HandlerRetry,
		})
		return syncer.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("attendees-sync failed", "error", err)
		os.Exit(1)
	}

	logger.Info("attendees-sync stopped")
}

// openStore создаёт хранилище проекции по cfg.ProjectionStore.
func openStore(ctx context.Context, cfg *config.Config) (accounts.Store, func(), error) {
	if cfg.ProjectionStore != config.StorePostgres {
		return accounts.NewMemoryStore(), func() {}, nil
	}

	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}

	accountRepo := repo.NewAccountRepo(pool)
	if err := accountRepo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return accountRepo, pool.Close, nil
}
