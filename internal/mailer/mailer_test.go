package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
	"github.com/shaiso/confbus/internal/presentations"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (s *recordingSender) Send(_ context.Context, m Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *recordingSender) Sent() []Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mail(nil), s.sent...)
}

func joDecision(d events.Decision) events.PresentationDecisionEvent {
	return events.PresentationDecisionEvent{
		PresenterName:  "Jo",
		PresenterEmail: "jo@x.com",
		Title:          "Go at scale",
		Decision:       d,
	}
}

func delivery(body []byte) *mq.Delivery {
	return &mq.Delivery{Attempt: 1, Raw: amqp.Delivery{Body: body}}
}

func handler(t *testing.T, m *Mailer, queue mq.Queue) mq.Handler {
	t.Helper()
	route, err := presentations.RouteForQueue(queue)
	require.NoError(t, err)
	return m.handlerFor(route)
}

// --- Templates ---

func TestRender_Approved(t *testing.T) {
	m, err := Render(joDecision(events.DecisionApproved), DefaultFrom)
	require.NoError(t, err)

	assert.Equal(t, "admin@conference.go", m.From)
	assert.Equal(t, []string{"jo@x.com"}, m.To)
	assert.Equal(t, "Your presentation has been accepted", m.Subject)
	assert.Equal(t, "Jo, we're happy to tell you that your presentation Go at scale has been accepted", m.Body)
}

func TestRender_Rejected(t *testing.T) {
	m, err := Render(joDecision(events.DecisionRejected), DefaultFrom)
	require.NoError(t, err)

	assert.Equal(t, "Your presentation has been rejected.", m.Subject)
	assert.Equal(t, "Jo, we're saddened to inform you that your presentation Go at scale has not been accepted", m.Body)
}

func TestRender_UnknownDecision(t *testing.T) {
	_, err := Render(joDecision(""), DefaultFrom)
	assert.ErrorIs(t, err, ErrInvalidMail)
}

func TestMail_Validate(t *testing.T) {
	valid := Mail{From: DefaultFrom, To: []string{"jo@x.com"}, Subject: "Hi"}
	require.NoError(t, valid.Validate())

	tests := map[string]Mail{
		"bad from":        {From: "nope", To: []string{"jo@x.com"}},
		"no recipients":   {From: DefaultFrom},
		"bad recipient":   {From: DefaultFrom, To: []string{"jo"}},
		"header injected": {From: DefaultFrom, To: []string{"jo@x.com"}, Subject: "Hi\r\nBcc: all@x.com"},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, m.Validate(), ErrInvalidMail)
		})
	}
}

// --- Mailer ---

func TestMailer_NotifyApprovalSendsExactlyOneMail(t *testing.T) {
	sender := &recordingSender{}
	m := New(Config{Sender: sender})

	require.NoError(t, m.Notify(context.Background(), joDecision(events.DecisionApproved)))

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Your presentation has been accepted", sent[0].Subject)
	assert.Equal(t, []string{"jo@x.com"}, sent[0].To)
}

func TestMailer_HandleEnvelope(t *testing.T) {
	sender := &recordingSender{}
	m := New(Config{Sender: sender, From: "program@conference.go"})

	_, body, err := events.Encode(joDecision(events.DecisionApproved))
	require.NoError(t, err)

	err = handler(t, m, mq.QueuePresentationApprovals)(context.Background(), delivery(body))
	require.NoError(t, err)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "program@conference.go", sent[0].From)
	assert.Equal(t, SubjectApproved, sent[0].Subject)
}

func TestMailer_HandleLegacyBodyUsesQueueDecision(t *testing.T) {
	sender := &recordingSender{}
	m := New(Config{Sender: sender})

	body := []byte(`{"presenter_name":"Jo","presenter_email":"jo@x.com","title":"Go at scale"}`)
	err := handler(t, m, mq.QueuePresentationRejections)(context.Background(), delivery(body))
	require.NoError(t, err)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, SubjectRejected, sent[0].Subject)
}

func TestMailer_PoisonMessages(t *testing.T) {
	sender := &recordingSender{}
	m := New(Config{Sender: sender})

	_, approval, err := events.Encode(joDecision(events.DecisionApproved))
	require.NoError(t, err)

	tests := []struct {
		name  string
		queue mq.Queue
		body  []byte
	}{
		{"not json", mq.QueuePresentationApprovals, []byte(`{{{`)},
		{"missing title", mq.QueuePresentationApprovals, []byte(`{"presenter_name":"Jo","presenter_email":"jo@x.com"}`)},
		{"bad email", mq.QueuePresentationRejections, []byte(`{"presenter_name":"Jo","presenter_email":"jo","title":"T"}`)},
		{"kind does not match queue", mq.QueuePresentationRejections, approval},
		{"unsupported version", mq.QueuePresentationApprovals, []byte(`{"id":"1","type":"presentation.approved","version":7,"payload":{}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(t, m, tt.queue)(context.Background(), delivery(tt.body))
			assert.ErrorIs(t, err, mq.ErrPoison)
		})
	}
	assert.Empty(t, sender.Sent())
}

func TestMailer_DeliveryFailureIsRetryable(t *testing.T) {
	sender := &recordingSender{err: fmt.Errorf("%w: connection refused", ErrDelivery)}
	m := New(Config{Sender: sender})

	_, body, err := events.Encode(joDecision(events.DecisionApproved))
	require.NoError(t, err)

	err = handler(t, m, mq.QueuePresentationApprovals)(context.Background(), delivery(body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.NotErrorIs(t, err, mq.ErrPoison)
}

func TestMailer_ConsumersPerQueue(t *testing.T) {
	m := New(Config{Sender: &recordingSender{}})

	require.Len(t, m.consumers, 2)
	assert.Equal(t, "mailer-approved", m.consumers[0].Name())
	assert.Equal(t, "mailer-rejected", m.consumers[1].Name())
}

// --- Senders ---

func TestLogSender(t *testing.T) {
	s := NewLogSender(nil)
	m, err := Render(joDecision(events.DecisionApproved), DefaultFrom)
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), m))
	assert.Equal(t, []Mail{m}, s.Sent())

	err = s.Send(context.Background(), Mail{From: DefaultFrom})
	assert.ErrorIs(t, err, ErrInvalidMail)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage(Mail{
		From:    DefaultFrom,
		To:      []string{"jo@x.com", "al@x.com"},
		Subject: SubjectApproved,
		Body:    "line1\nline2",
	}))

	assert.True(t, strings.HasPrefix(msg, "From: admin@conference.go\r\nTo: jo@x.com, al@x.com\r\nSubject: Your presentation has been accepted\r\n"))
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline1\r\nline2\r\n"))
}

func TestResendSender_Success(t *testing.T) {
	var got resend.SendEmailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-1"})
	}))
	defer server.Close()

	s, err := NewResendSender("test-key", server.URL+"/")
	require.NoError(t, err)

	m, err := Render(joDecision(events.DecisionRejected), DefaultFrom)
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), m))

	assert.Equal(t, DefaultFrom, got.From)
	assert.Equal(t, []string{"jo@x.com"}, got.To)
	assert.Equal(t, SubjectRejected, got.Subject)
	assert.Equal(t, m.Body, got.Text)
}

func TestResendSender_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"statusCode": 500, "name": "internal_server_error", "message": "boom",
		})
	}))
	defer server.Close()

	s, err := NewResendSender("test-key", server.URL+"/")
	require.NoError(t, err)

	m, err := Render(joDecision(events.DecisionApproved), DefaultFrom)
	require.NoError(t, err)

	err = s.Send(context.Background(), m)
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestRateLimitedSender(t *testing.T) {
	next := &recordingSender{}
	assert.Same(t, next, NewRateLimitedSender(next, 0).(*recordingSender))

	s := NewRateLimitedSender(next, 0.001)
	m, err := Render(joDecision(events.DecisionApproved), DefaultFrom)
	require.NoError(t, err)

	// первый токен доступен сразу
	require.NoError(t, s.Send(context.Background(), m))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Send(ctx, m)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Len(t, next.Sent(), 1)
}

func TestSMTPSender_ConnectFailure(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1})

	m, err := Render(joDecision(events.DecisionApproved), DefaultFrom)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = s.Send(ctx, m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDelivery))
}
