package mailer

import (
	"fmt"

	"github.com/shaiso/confbus/internal/events"
)

// Темы писем.
const (
	SubjectApproved = "Your presentation has been accepted"
	SubjectRejected = "Your presentation has been rejected."
)

// Render строит письмо о решении по докладу.
func Render(ev events.PresentationDecisionEvent, from string) (Mail, error) {
	var subject, body string

	switch ev.Decision {
	case events.DecisionApproved:
		subject = SubjectApproved
		body = fmt.Sprintf("%s, we're happy to tell you that your presentation %s has been accepted",
			ev.PresenterName, ev.Title)
	case events.DecisionRejected:
		subject = SubjectRejected
		body = fmt.Sprintf("%s, we're saddened to inform you that your presentation %s has not been accepted",
			ev.PresenterName, ev.Title)
	default:
		return Mail{}, fmt.Errorf("%w: unknown decision %q", ErrInvalidMail, ev.Decision)
	}

	m := Mail{
		From:    from,
		To:      []string{ev.PresenterEmail},
		Subject: subject,
		Body:    body,
	}
	if err := m.Validate(); err != nil {
		return Mail{}, err
	}
	return m, nil
}
