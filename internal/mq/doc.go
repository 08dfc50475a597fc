// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с бесконечным retry и reconnect
//   - backoff.go    — политики задержек между попытками
//   - topology.go   — объявление exchanges, queues, bindings, DLX
//   - publisher.go  — публикация с publisher confirms и mandatory
//   - consumer.go   — потребление с ручным ack, retry и dead-lettering
//
// Exchanges:
//   - account_info   — fanout, события аккаунтов (broadcast)
//   - (default)      — presentation_approvals, presentation_rejections (competing consumers)
//   - confbus.dlx    — dead letter exchange
package mq
