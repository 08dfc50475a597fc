package presentations

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
)

type recordingPublisher struct {
	published []mq.Publishing
	err       error
}

func (r *recordingPublisher) Publish(_ context.Context, msg mq.Publishing) error {
	r.published = append(r.published, msg)
	return r.err
}

func decision() events.PresentationDecisionEvent {
	return events.PresentationDecisionEvent{
		PresenterName:  "Jo",
		PresenterEmail: "jo@x.com",
		Title:          "Go at scale",
	}
}

func TestDecisionPublisher_Approve(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewDecisionPublisher(rec, nil)

	id, err := p.Approve(context.Background(), decision())
	require.NoError(t, err)
	require.Len(t, rec.published, 1)

	msg := rec.published[0]
	assert.Equal(t, mq.ExchangeDefault, msg.Exchange)
	assert.Equal(t, "presentation_approvals", msg.RoutingKey)
	assert.True(t, msg.Mandatory)
	assert.True(t, msg.Persistent)
	assert.Equal(t, mq.PresentationApprovals, msg.Declare)
	assert.Equal(t, id, msg.MessageID)
	assert.Equal(t, string(events.KindPresentationApproved), msg.Type)

	decoded, err := events.Decode(msg.Body, "")
	require.NoError(t, err)
	ev, ok := decoded.Decision()
	require.True(t, ok)
	assert.Equal(t, events.DecisionApproved, ev.Decision)
	assert.Equal(t, "jo@x.com", ev.PresenterEmail)
}

func TestDecisionPublisher_Reject(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewDecisionPublisher(rec, nil)

	// решение в событии перекрывается очередью
	ev := decision()
	ev.Decision = events.DecisionApproved

	_, err := p.Reject(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, rec.published, 1)

	msg := rec.published[0]
	assert.Equal(t, "presentation_rejections", msg.RoutingKey)
	assert.Equal(t, string(events.KindPresentationRejected), msg.Type)
}

func TestDecisionPublisher_UnknownQueue(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewDecisionPublisher(rec, nil)

	_, err := p.Publish(context.Background(), decision(), mq.Queue("presentation_maybes"))
	assert.ErrorIs(t, err, ErrUnknownQueue)
	assert.Empty(t, rec.published)
}

func TestDecisionPublisher_Unroutable(t *testing.T) {
	rec := &recordingPublisher{err: fmt.Errorf("%w: presentation_approvals: 312 NO_ROUTE", mq.ErrUnroutable)}
	p := NewDecisionPublisher(rec, nil)

	_, err := p.Approve(context.Background(), decision())
	assert.ErrorIs(t, err, mq.ErrUnroutable)
	assert.Len(t, rec.published, 1, "unroutable message must not be retried")
}

func TestDecisionPublisher_InvalidEvent(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewDecisionPublisher(rec, nil)

	ev := decision()
	ev.PresenterEmail = "not-an-email"

	_, err := p.Approve(context.Background(), ev)
	assert.ErrorIs(t, err, events.ErrMalformed)
	assert.Empty(t, rec.published)
}

func TestRoutes(t *testing.T) {
	r, err := RouteForQueue(mq.QueuePresentationRejections)
	require.NoError(t, err)
	assert.Equal(t, events.DecisionRejected, r.Decision)
	assert.Equal(t, events.KindPresentationRejected, r.Kind)

	r, err = RouteForDecision(events.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, mq.QueuePresentationApprovals, r.Queue.Name)

	_, err = RouteForDecision("maybe")
	assert.ErrorIs(t, err, ErrUnknownQueue)
}
