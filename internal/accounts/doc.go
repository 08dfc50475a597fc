// Package accounts распространяет изменения аккаунтов между сервисами.
//
// Сервис аккаунтов публикует полное состояние аккаунта через Publisher
// в fanout-обменник account_info. Каждый экземпляр attendees держит
// собственную проекцию (email → аккаунт), которую обновляет Syncer.
//
// Проекция:
//   - is_active=true  — upsert (все поля перезаписываются)
//   - is_active=false — удаление записи
//   - событие старше сохранённого (по updated) — игнорируется
package accounts
