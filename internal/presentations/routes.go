package presentations

import (
	"errors"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
)

// ErrUnknownQueue — очередь не относится к решениям по докладам.
var ErrUnknownQueue = errors.New("unknown decision queue")

// Route связывает рабочую очередь с типом решения.
type Route struct {
	Queue    mq.QueueSpec
	Decision events.Decision
	Kind     events.Kind
}

// Routes — очереди решений.
var Routes = []Route{
	{Queue: mq.PresentationApprovals, Decision: events.DecisionApproved, Kind: events.KindPresentationApproved},
	{Queue: mq.PresentationRejections, Decision: events.DecisionRejected, Kind: events.KindPresentationRejected},
}

// RouteForQueue возвращает маршрут по имени очереди.
func RouteForQueue(queue mq.Queue) (Route, error) {
	for _, r := range Routes {
		if r.Queue.Name == queue {
			return r, nil
		}
	}
	return Route{}, ErrUnknownQueue
}

// RouteForDecision возвращает маршрут по решению.
func RouteForDecision(d events.Decision) (Route, error) {
	for _, r := range Routes {
		if r.Decision == d {
			return r, nil
		}
	}
	return Route{}, ErrUnknownQueue
}
