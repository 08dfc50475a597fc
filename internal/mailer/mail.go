package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// DefaultFrom — отправитель писем по умолчанию.
const DefaultFrom = "admin@conference.go"

var (
	// ErrDelivery — транспорт не смог доставить письмо. Повторяемая ошибка.
	ErrDelivery = errors.New("mail delivery failed")

	// ErrInvalidMail — письмо нельзя отправить ни при каком повторе.
	ErrInvalidMail = errors.New("invalid mail")
)

// Mail — письмо.
type Mail struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Validate проверяет адреса и заголовки письма.
func (m Mail) Validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("%w: from %q: %w", ErrInvalidMail, m.From, err)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidMail)
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("%w: recipient %q: %w", ErrInvalidMail, to, err)
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return fmt.Errorf("%w: subject contains line breaks", ErrInvalidMail)
	}
	return nil
}

// Sender отправляет письма.
//
// Ошибка транспорта оборачивается в ErrDelivery,
// некорректное письмо — в ErrInvalidMail.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}
