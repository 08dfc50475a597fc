package accounts

import "errors"

var (
	// ErrNotFound — аккаунта нет в проекции.
	ErrNotFound = errors.New("account not found")

	// ErrProjectionWrite — не удалось записать изменение в хранилище проекции.
	ErrProjectionWrite = errors.New("projection write failed")
)
