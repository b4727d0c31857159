package events

import (
	"context"

	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/observability/log"
)

// Broadcaster delivers notifications. Delivery is best effort: a failure is
// logged and never undoes the change being announced.
type Broadcaster interface {
	Publish(ctx context.Context, n Notification)
}

// BusBroadcaster publishes every notification on the topic named after its
// session.
type BusBroadcaster struct {
	bus    bus.EventBus
	logger log.Log
}

func NewBusBroadcaster(b bus.EventBus, logger log.Log) *BusBroadcaster {
	if logger == nil {
		logger = log.Nop()
	}
	return &BusBroadcaster{bus: b, logger: logger.With(log.Component("broadcast"))}
}

func (b *BusBroadcaster) Publish(ctx context.Context, n Notification) {
	if err := b.bus.Publish(n.SessionID, n); err != nil {
		b.logger.WithContext(ctx).Warn("notification delivery failed",
			log.Session(n.SessionID), log.String("kind", string(n.Kind)), log.Error(err))
	}
}

// Watch subscribes fn to every notification of a session.
func (b *BusBroadcaster) Watch(sessionID string, fn func(Notification) error) (bus.Subscription, error) {
	return b.bus.Subscribe(sessionID, bus.AnyType, func(e bus.Event) error {
		n, ok := e.(Notification)
		if !ok {
			return nil
		}
		return fn(n)
	})
}

// Recorder keeps every notification it receives. Tests use it as a
// Broadcaster.
type Recorder struct {
	ch chan Notification
}

func NewRecorder(capacity int) *Recorder {
	return &Recorder{ch: make(chan Notification, capacity)}
}

func (r *Recorder) Publish(_ context.Context, n Notification) {
	select {
	case r.ch <- n:
	default:
	}
}

// Drain returns what was recorded so far.
func (r *Recorder) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-r.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

// Kinds lists the kinds of the recorded notifications, draining them.
func (r *Recorder) Kinds() []Kind {
	var out []Kind
	for _, n := range r.Drain() {
		out = append(out, n.Kind)
	}
	return out
}
