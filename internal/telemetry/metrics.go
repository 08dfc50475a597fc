package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики брокера.
var (
	// BrokerConnectAttempts — попытки подключения к RabbitMQ по результату (success, failure).
	BrokerConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confbus_broker_connect_attempts_total",
		Help: "Connection attempts to RabbitMQ by result",
	}, []string{"result"})

	BrokerReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "confbus_broker_reconnects_total",
		Help: "Successful reconnects after a lost connection",
	})

	// BrokerConnected — 1, пока соединение установлено.
	BrokerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "confbus_broker_connected",
		Help: "Whether the process is connected to RabbitMQ",
	})
)

// Метрики сообщений.
var (
	// MessagesPublished — публикации по получателю и исходу
	// (confirmed, returned, nacked, failed).
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confbus_messages_published_total",
		Help: "Published messages by destination and outcome",
	}, []string{"destination", "outcome"})

	// MessagesConsumed — обработанные сообщения по consumer и исходу
	// (acked, poison, dead_lettered, requeued).
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confbus_messages_consumed_total",
		Help: "Consumed messages by consumer and outcome",
	}, []string{"consumer", "outcome"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "confbus_handler_duration_seconds",
		Help:    "Time spent handling one delivery, retries included",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer"})
)

// Метрики сервисов.
var (
	// ProjectionOperations — изменения проекции аккаунтов (upserted, removed, stale).
	ProjectionOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confbus_projection_operations_total",
		Help: "Account projection changes by operation",
	}, []string{"op"})

	ProjectionSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "confbus_projection_accounts",
		Help: "Number of active accounts in the local projection",
	})

	// NotificationsSent — письма о решениях по результату (sent, failed).
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confbus_notifications_total",
		Help: "Decision notifications by decision and result",
	}, []string{"decision", "result"})
)
