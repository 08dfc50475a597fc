// Package cli реализует инструмент командной строки confbus.
//
// # Обзор
//
// CLI заменяет сервисы-источники событий при отладке и эксплуатации:
// публикует изменения аккаунтов и решения по докладам, объявляет
// топологию брокера и показывает проекцию аккаунтов из Postgres.
//
// # Ключевые компоненты
//
// ## Backend
//
// Интерфейс операций CLI. Client реализует его поверх RabbitMQ
// (mq.Connection + mq.Publisher) и Postgres (repo.AccountRepo).
// Соединения открываются лениво: команде topology show брокер не нужен.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) — в stderr.
//
// ## Commands
//
//   - account: publish
//   - presentation: approve, reject
//   - topology: show, setup
//   - projection: list
//
// Каждая группа создаётся через фабричную функцию (NewAccountCmd и т.д.),
// принимающую backendFn и outputFn — замыкания для ленивого создания
// Backend и Output после парсинга PersistentFlags.
package cli
