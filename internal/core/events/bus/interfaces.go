package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// - Topics isolate subscribers; the game uses one topic per session.
// - Handlers subscribe to one event type, or to every type with AnyType.
// - Delivery is synchronous, in subscription order, in the publisher's goroutine.
// - Handler errors are joined and returned from Publish.
// - Metrics are collected only while an observer is registered.
type EventBus interface {
	// Publish delivers the event to the subscribers of topic.
	Publish(topic string, event Event) error
	// PublishAsync publishes in a separate goroutine. The returned channel
	// receives the joined error (or nil) and is then closed.
	PublishAsync(topic string, event Event) <-chan error

	// Subscribe registers handler for eventType within topic.
	Subscribe(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is ignored.
	Unsubscribe(Subscription) error
	// DropTopic cancels every subscription of topic.
	DropTopic(topic string)

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	GetMetrics() EventBusMetrics
	GetTopics() []TopicInfo
}

// AnyType subscribes a handler to every event type of a topic.
const AnyType = "*"

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type EventHandler func(event Event) error

// Subscription is a registered handler. Cancel is safe to call repeatedly.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(topic, eventType string, event Event)
	OnDelivered(topic, eventType string, handlers int, err error, duration time.Duration)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
	Topics            uint64
}

type TopicInfo struct {
	Name       string
	EventTypes int
	Subs       int
}
