// Package mailer рассылает докладчикам письма о решениях по их докладам.
//
// Mailer читает очереди presentation_approvals и presentation_rejections
// (competing consumers: каждое сообщение получает один экземпляр),
// рендерит шаблон письма и отправляет его через Sender.
//
// Сообщение подтверждается только после успешной отправки.
// Ошибка отправки повторяется с задержкой, затем сообщение уходит в DLX.
//
// Реализации Sender:
//   - LogSender    — только логирует письмо (MAIL_PROVIDER=log)
//   - SMTPSender   — net/smtp со STARTTLS
//   - ResendSender — Resend API
package mailer
