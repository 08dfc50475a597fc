package accounts

import (
	"strings"
	"time"

	"github.com/shaiso/confbus/internal/events"
)

// Account — запись локальной проекции аккаунтов.
type Account struct {
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Updated   time.Time `json:"updated"`
}

// FromEvent строит запись проекции из события.
func FromEvent(ev events.AccountEvent) Account {
	return Account{
		Email:     NormalizeEmail(ev.Email),
		FirstName: ev.FirstName,
		LastName:  ev.LastName,
		Updated:   ev.Updated.UTC(),
	}
}

// NormalizeEmail приводит email к виду ключа проекции.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
