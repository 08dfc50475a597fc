//go:build integration

// Package mqtest поднимает RabbitMQ в контейнере для интеграционных тестов.
package mqtest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/shaiso/confbus/internal/mq"
)

// Image — образ брокера для тестов.
const Image = "rabbitmq:3.13-management-alpine"

// StartRabbitMQ запускает брокер и возвращает его AMQP URL.
// Контейнер останавливается в t.Cleanup.
func StartRabbitMQ(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcrabbitmq.Run(ctx, Image)
	if err != nil {
		t.Fatalf("start rabbitmq container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate rabbitmq container: %v", err)
		}
	})

	url, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("rabbitmq url: %v", err)
	}
	return url
}

// Connect открывает Connection к брокеру по url.
func Connect(t *testing.T, url string) *mq.Connection {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := mq.NewConnection(ctx, mq.ConnectionConfig{
		URL:     url,
		Name:    t.Name(),
		Backoff: mq.BackoffPolicy{Kind: mq.BackoffConstant, Delay: 200 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("connect to rabbitmq: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
