package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/confbus/internal/accounts"
)

// AccountRepo — проекция аккаунтов в таблице account_vo.
// Реализует accounts.Store.
type AccountRepo struct {
	pool *pgxpool.Pool
}

// NewAccountRepo создаёт новый AccountRepo.
func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

var _ accounts.Store = (*AccountRepo)(nil)

const accountSchema = `
	CREATE TABLE IF NOT EXISTS account_vo (
		email      TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name  TEXT NOT NULL DEFAULT '',
		updated    TIMESTAMPTZ NOT NULL
	)
`

// EnsureSchema создаёт таблицу account_vo, если её нет.
func (r *AccountRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, accountSchema); err != nil {
		return fmt.Errorf("create account_vo: %w", err)
	}
	return nil
}

// Upsert сохраняет аккаунт, если он не старше сохранённого.
// Проверка и запись выполняются одним запросом.
func (r *AccountRepo) Upsert(ctx context.Context, acc accounts.Account) (bool, error) {
	query := `
		INSERT INTO account_vo (email, first_name, last_name, updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name  = EXCLUDED.last_name,
		    updated    = EXCLUDED.updated
		WHERE account_vo.updated <= EXCLUDED.updated
	`
	tag, err := r.pool.Exec(ctx, query, acc.Email, acc.FirstName, acc.LastName, acc.Updated)
	if err != nil {
		return false, fmt.Errorf("upsert account: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete удаляет аккаунт.
func (r *AccountRepo) Delete(ctx context.Context, email string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM account_vo WHERE email = $1`, email)
	if err != nil {
		return false, fmt.Errorf("delete account: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get возвращает аккаунт по email.
func (r *AccountRepo) Get(ctx context.Context, email string) (accounts.Account, error) {
	query := `
		SELECT email, first_name, last_name, updated
		FROM account_vo
		WHERE email = $1
	`
	var acc accounts.Account
	err := r.pool.QueryRow(ctx, query, email).Scan(&acc.Email, &acc.FirstName, &acc.LastName, &acc.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return accounts.Account{}, accounts.ErrNotFound
	}
	if err != nil {
		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}
	acc.Updated = acc.Updated.UTC()
	return acc, nil
}

// List возвращает все аккаунты, отсортированные по email.
func (r *AccountRepo) List(ctx context.Context) ([]accounts.Account, error) {
	query := `
		SELECT email, first_name, last_name, updated
		FROM account_vo
		ORDER BY email
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var list []accounts.Account
	for rows.Next() {
		var acc accounts.Account
		if err := rows.Scan(&acc.Email, &acc.FirstName, &acc.LastName, &acc.Updated); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		acc.Updated = acc.Updated.UTC()
		list = append(list, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return list, nil
}

// Count возвращает число аккаунтов.
func (r *AccountRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM account_vo`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}
