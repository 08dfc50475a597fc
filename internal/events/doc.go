// Package events описывает контракт сообщений между сервисами конференции.
//
// Типы событий:
//   - account.changed        — AccountEvent, полное состояние аккаунта на момент публикации
//   - presentation.approved  — PresentationDecisionEvent, доклад принят
//   - presentation.rejected  — PresentationDecisionEvent, доклад отклонён
//
// Формат на проводе — версионированный конверт:
//
//	{"id": "...", "type": "account.changed", "version": 1, "occurred_at": "...", "payload": {...}}
//
// Decode также принимает «голые» JSON-тела без конверта (старый формат продюсеров).
// Тип такого сообщения определяется очередью, из которой оно пришло.
package events
