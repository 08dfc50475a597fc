package accounts

import (
	"context"
	"sort"
	"sync"
)

// Store — хранилище проекции аккаунтов.
type Store interface {
	// Upsert сохраняет аккаунт. Если сохранённая запись новее
	// (Updated строго больше), ничего не меняет и возвращает false.
	Upsert(ctx context.Context, acc Account) (bool, error)

	// Delete удаляет аккаунт. Возвращает false, если записи не было.
	Delete(ctx context.Context, email string) (bool, error)

	// Get возвращает аккаунт или ErrNotFound.
	Get(ctx context.Context, email string) (Account, error)

	// List возвращает все аккаунты, отсортированные по email.
	List(ctx context.Context) ([]Account, error)

	// Count возвращает число аккаунтов.
	Count(ctx context.Context) (int, error)
}

// MemoryStore — Store в памяти процесса.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account)}
}

func (s *MemoryStore) Upsert(_ context.Context, acc Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.accounts[acc.Email]; ok && cur.Updated.After(acc.Updated) {
		return false, nil
	}
	s.accounts[acc.Email] = acc
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.accounts[email]
	delete(s.accounts, email)
	return ok, nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		list = append(list, acc)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })
	return list, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}
