package mq

import "errors"

// Ошибки слоя сообщений.
var (
	// ErrBrokerUnavailable — не удалось установить соединение с брокером.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrNotConnected — соединение сейчас не установлено.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed — соединение закрыто через Close.
	ErrClosed = errors.New("connection closed")

	// ErrUnroutable — брокер вернул mandatory-сообщение (basic.return).
	ErrUnroutable = errors.New("message returned as unroutable")

	// ErrNacked — брокер не подтвердил публикацию (basic.nack).
	ErrNacked = errors.New("publish not acknowledged by broker")

	// ErrPoison — сообщение нельзя обработать никогда.
	// Consumer отклоняет его без requeue (уходит в dead-letter exchange).
	ErrPoison = errors.New("poison message")
)
