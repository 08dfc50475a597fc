package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion — текущая версия схемы конверта.
const SchemaVersion = 1

// Envelope — версионированный конверт сообщения.
type Envelope struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Kind — тип события.
	Kind Kind `json:"type"`

	// Version — версия схемы.
	Version int `json:"version"`

	// OccurredAt — время публикации.
	OccurredAt time.Time `json:"occurred_at"`

	// Payload — тело события.
	Payload json.RawMessage `json:"payload"`
}

// Message — разобранное входящее сообщение.
type Message struct {
	ID         string
	Kind       Kind
	Version    int
	OccurredAt time.Time

	// Legacy — сообщение пришло без конверта.
	Legacy bool

	Event Event
}

// Account возвращает AccountEvent, если сообщение его содержит.
func (m *Message) Account() (AccountEvent, bool) {
	ev, ok := m.Event.(AccountEvent)
	return ev, ok
}

// Decision возвращает PresentationDecisionEvent, если сообщение его содержит.
func (m *Message) Decision() (PresentationDecisionEvent, bool) {
	ev, ok := m.Event.(PresentationDecisionEvent)
	return ev, ok
}

// Encode валидирует событие и упаковывает его в конверт.
func Encode(ev Event) (*Envelope, []byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, nil, err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}

	env := &Envelope{
		ID:         uuid.NewString(),
		Kind:       ev.Kind(),
		Version:    SchemaVersion,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return env, body, nil
}

// envelopeProbe определяет, есть ли у тела конверт.
type envelopeProbe struct {
	ID         string          `json:"id"`
	Kind       *Kind           `json:"type"`
	Version    *int            `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode разбирает тело сообщения.
//
// Если у тела нет конверта, оно считается событием типа fallback.
// Пустой fallback означает, что сообщения без конверта не принимаются.
func Decode(body []byte, fallback Kind) (*Message, error) {
	var probe envelopeProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if probe.Kind == nil {
		if fallback == "" {
			return nil, fmt.Errorf("%w: message has no envelope", ErrUnknownKind)
		}
		ev, err := decodePayload(fallback, body)
		if err != nil {
			return nil, err
		}
		return &Message{Kind: fallback, Legacy: true, Event: ev}, nil
	}

	if probe.Version == nil || *probe.Version != SchemaVersion {
		v := 0
		if probe.Version != nil {
			v = *probe.Version
		}
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	if len(probe.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	ev, err := decodePayload(*probe.Kind, probe.Payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:         probe.ID,
		Kind:       *probe.Kind,
		Version:    *probe.Version,
		OccurredAt: probe.OccurredAt,
		Event:      ev,
	}, nil
}

// decodePayload разбирает тело события указанного типа и валидирует его.
func decodePayload(kind Kind, raw []byte) (Event, error) {
	var ev Event

	switch kind {
	case KindAccountChanged:
		var account AccountEvent
		if err := json.Unmarshal(raw, &account); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		ev = account

	case KindPresentationApproved, KindPresentationRejected:
		var decision PresentationDecisionEvent
		if err := json.Unmarshal(raw, &decision); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		decision.Decision, _ = decisionFor(kind)
		ev = decision

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
