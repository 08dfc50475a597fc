// Package presentations доставляет решения по докладам в рабочие очереди.
//
// Одобрение уходит в presentation_approvals, отказ в presentation_rejections.
// Тип решения определяется очередью; получатель (mailer) читает обе.
package presentations
