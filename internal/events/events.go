package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Kind — тип события в конверте.
type Kind string

// Типы событий.
const (
	KindAccountChanged       Kind = "account.changed"
	KindPresentationApproved Kind = "presentation.approved"
	KindPresentationRejected Kind = "presentation.rejected"
)

// Decision — решение по докладу.
type Decision string

// Решения.
const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Event — событие, которое можно опубликовать.
type Event interface {
	Kind() Kind
	Validate() error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// AccountEvent — полное состояние аккаунта на момент публикации.
//
// Email — естественный ключ. Событие идемпотентно: повторное применение
// даёт ту же проекцию.
type AccountEvent struct {
	Email     string    `json:"email" validate:"required,email,max=254"`
	FirstName string    `json:"first_name" validate:"max=200"`
	LastName  string    `json:"last_name" validate:"max=200"`
	IsActive  bool      `json:"is_active"`
	Updated   time.Time `json:"updated"`
}

// Kind реализует Event.
func (e AccountEvent) Kind() Kind {
	return KindAccountChanged
}

// Validate проверяет поля события.
func (e AccountEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if e.Updated.IsZero() {
		return fmt.Errorf("%w: updated is required", ErrMalformed)
	}
	return nil
}

// accountEventWire — форма на проводе. Указатели нужны, чтобы отличить
// отсутствующий ключ от нулевого значения.
type accountEventWire struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsActive  *bool   `json:"is_active"`
	Updated   *string `json:"updated"`
}

// UnmarshalJSON требует наличия всех пяти ключей и принимает
// updated как в RFC3339, так и в «наивном» ISO-8601.
func (e *AccountEvent) UnmarshalJSON(data []byte) error {
	var w accountEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var missing []string
	if w.Email == nil {
		missing = append(missing, "email")
	}
	if w.FirstName == nil {
		missing = append(missing, "first_name")
	}
	if w.LastName == nil {
		missing = append(missing, "last_name")
	}
	if w.IsActive == nil {
		missing = append(missing, "is_active")
	}
	if w.Updated == nil {
		missing = append(missing, "updated")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	updated, err := ParseTimestamp(*w.Updated)
	if err != nil {
		return err
	}

	*e = AccountEvent{
		Email:     *w.Email,
		FirstName: *w.FirstName,
		LastName:  *w.LastName,
		IsActive:  *w.IsActive,
		Updated:   updated,
	}
	return nil
}

// naiveLayouts — форматы datetime.isoformat() без смещения и str(datetime).
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp разбирает метку времени события.
// Метки без часового пояса считаются UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// PresentationDecisionEvent — решение по докладу.
//
// Decision не сериализуется: на проводе его несёт тип конверта
// или имя очереди.
type PresentationDecisionEvent struct {
	PresenterName  string   `json:"presenter_name" validate:"required,max=200"`
	PresenterEmail string   `json:"presenter_email" validate:"required,email,max=254"`
	Title          string   `json:"title" validate:"required,max=200"`
	Decision       Decision `json:"-" validate:"oneof=approved rejected"`
}

// Kind реализует Event.
func (e PresentationDecisionEvent) Kind() Kind {
	switch e.Decision {
	case DecisionApproved:
		return KindPresentationApproved
	case DecisionRejected:
		return KindPresentationRejected
	default:
		return ""
	}
}

// Validate проверяет поля события.
func (e PresentationDecisionEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// decisionFor возвращает решение для типа события.
func decisionFor(kind Kind) (Decision, bool) {
	switch kind {
	case KindPresentationApproved:
		return DecisionApproved, true
	case KindPresentationRejected:
		return DecisionRejected, true
	default:
		return "", false
	}
}
