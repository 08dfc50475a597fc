package events

import "errors"

// Ошибки разбора сообщений. Все они означают, что сообщение
// нельзя обработать ни сейчас, ни после повторной доставки.
var (
	// ErrMalformed — тело не является корректным JSON нужной формы
	// или не прошло валидацию.
	ErrMalformed = errors.New("malformed payload")

	// ErrUnknownKind — тип события не поддерживается.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrUnsupportedVersion — версия схемы конверта не поддерживается.
	ErrUnsupportedVersion = errors.New("unsupported schema version")
)
