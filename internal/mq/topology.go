package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// Exchanges — имена обменников.
const (
	// ExchangeDefault — default exchange, routing key = имя очереди.
	ExchangeDefault Exchange = ""

	ExchangeAccountInfo Exchange = "account_info"
	ExchangeDeadLetter  Exchange = "confbus.dlx"
)

// Queues — имена очередей.
const (
	QueuePresentationApprovals  Queue = "presentation_approvals"
	QueuePresentationRejections Queue = "presentation_rejections"
	QueueDeadLetters            Queue = "confbus.dead_letters"
)

// Declaration — объект топологии, который можно объявить на канале.
// Объявление идемпотентно.
type Declaration interface {
	Key() string
	Declare(ch *amqp.Channel) error
}

// ExchangeSpec описывает обменник.
type ExchangeSpec struct {
	Name    Exchange
	Kind    string
	Durable bool
}

// Key реализует Declaration.
func (e ExchangeSpec) Key() string {
	return "exchange:" + string(e.Name)
}

// Declare объявляет обменник.
func (e ExchangeSpec) Declare(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(e.Name), // name
		e.Kind,         // type
		e.Durable,      // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", e.Name, err)
	}
	return nil
}

// QueueSpec описывает очередь.
// Пустое имя — очередь с именем, выданным сервером.
type QueueSpec struct {
	Name       Queue
	Durable    bool
	Exclusive  bool
	AutoDelete bool

	// DeadLetter — отклонённые сообщения уходят в ExchangeDeadLetter.
	DeadLetter bool
}

// Key реализует Declaration.
func (q QueueSpec) Key() string {
	return "queue:" + string(q.Name)
}

// Args возвращает аргументы объявления очереди.
func (q QueueSpec) Args() amqp.Table {
	if !q.DeadLetter {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange": string(ExchangeDeadLetter),
	}
}

// Declare объявляет очередь.
func (q QueueSpec) Declare(ch *amqp.Channel) error {
	_, err := q.DeclareQueue(ch)
	return err
}

// DeclareQueue объявляет очередь и возвращает её (с именем от сервера для анонимных).
func (q QueueSpec) DeclareQueue(ch *amqp.Channel) (amqp.Queue, error) {
	queue, err := ch.QueueDeclare(
		string(q.Name), // name
		q.Durable,      // durable
		q.AutoDelete,   // delete when unused
		q.Exclusive,    // exclusive
		false,          // no-wait
		q.Args(),       // arguments
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %q: %w", q.Name, err)
	}
	return queue, nil
}

// Топология системы.
var (
	// AccountInfo — fanout для событий аккаунтов. Transient: своего состояния нет.
	AccountInfo = ExchangeSpec{Name: ExchangeAccountInfo, Kind: amqp.ExchangeFanout}

	// AccountSubscription — приватная очередь подписчика account_info.
	AccountSubscription = QueueSpec{Exclusive: true, AutoDelete: true, DeadLetter: true}

	PresentationApprovals  = QueueSpec{Name: QueuePresentationApprovals, Durable: true, DeadLetter: true}
	PresentationRejections = QueueSpec{Name: QueuePresentationRejections, Durable: true, DeadLetter: true}

	DeadLetterExchange = ExchangeSpec{Name: ExchangeDeadLetter, Kind: amqp.ExchangeFanout, Durable: true}
	DeadLetterQueue    = QueueSpec{Name: QueueDeadLetters, Durable: true}
)

// DeclareDeadLetter объявляет dead-letter exchange и очередь для него.
func DeclareDeadLetter(ch *amqp.Channel) error {
	if err := DeadLetterExchange.Declare(ch); err != nil {
		return err
	}
	if err := DeadLetterQueue.Declare(ch); err != nil {
		return err
	}
	if err := ch.QueueBind(string(QueueDeadLetters), "", string(ExchangeDeadLetter), false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueDeadLetters, ExchangeDeadLetter, err)
	}
	return nil
}

// DeclareSubscription объявляет fanout-обменник и приватную очередь,
// привязанную к нему. Возвращает имя очереди, выданное сервером.
//
// Очередь exclusive и auto-delete: подписчик, который был недоступен,
// пропускает события за время простоя.
func DeclareSubscription(ch *amqp.Channel, exchange ExchangeSpec, queue QueueSpec) (string, error) {
	if err := exchange.Declare(ch); err != nil {
		return "", err
	}
	if queue.DeadLetter {
		if err := DeclareDeadLetter(ch); err != nil {
			return "", err
		}
	}

	q, err := queue.DeclareQueue(ch)
	if err != nil {
		return "", err
	}

	if err := ch.QueueBind(q.Name, "", string(exchange.Name), false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, exchange.Name, err)
	}

	return q.Name, nil
}

// DeclareWorkQueue объявляет именованную рабочую очередь вместе с DLX.
func DeclareWorkQueue(ch *amqp.Channel, queue QueueSpec) error {
	if queue.DeadLetter {
		if err := DeclareDeadLetter(ch); err != nil {
			return err
		}
	}
	return queue.Declare(ch)
}

// SetupTopology объявляет все именованные объекты топологии.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := AccountInfo.Declare(ch); err != nil {
			return err
		}
		for _, q := range []QueueSpec{PresentationApprovals, PresentationRejections} {
			if err := DeclareWorkQueue(ch, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conference RabbitMQ Topology:

    account_info (fanout, transient)
    └── amq.gen-* [exclusive, auto-delete, one per subscriber]
            Consumer: attendees-sync (broadcast)

    (default exchange)
    ├── presentation_approvals [durable, routing: queue name]
    │       Consumer: presentation-mailer (competing)
    └── presentation_rejections [durable, routing: queue name]
            Consumer: presentation-mailer (competing)

    confbus.dlx (fanout, durable)
    └── confbus.dead_letters
            Manual processing
`
}
