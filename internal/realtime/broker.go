// Package realtime is the publish/subscribe fan-out for live dashboard
// updates. It is a best-effort convenience channel, not a durable event
// log: only currently connected subscribers receive a publish, slow
// subscribers drop messages, and disconnected clients re-fetch state via
// the pull API instead of relying on replay.
package realtime

import (
	"log/slog"
	"sync"
)

// GlobalTopic carries cross-link aggregate updates.
const GlobalTopic = "analytics-update"

// CodeTopic returns the per-link topic for a short code.
func CodeTopic(code string) string {
	return "analytics:" + code
}

// Envelope is one delivered publish.
type Envelope struct {
	Topic   string
	Payload any
}

// Broker routes publishes to subscribed channels by topic.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[chan<- Envelope]struct{}
	logger *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		topics: make(map[string]map[chan<- Envelope]struct{}),
		logger: logger,
	}
}

var (
	defaultBroker *Broker
	brokerOnce    sync.Once
)

// Default returns the process-wide broker shared by the HTTP layer and
// the aggregation pipeline.
func Default(logger *slog.Logger) *Broker {
	brokerOnce.Do(func() {
		defaultBroker = NewBroker(logger)
	})
	return defaultBroker
}

// ResetDefault discards the process-wide broker; intended for tests.
func ResetDefault() {
	brokerOnce = sync.Once{}
	defaultBroker = nil
}

// Subscribe registers ch for every subsequent publish on topic and
// returns the matching unsubscribe function. Unsubscribing never closes
// ch; channel lifecycle belongs to the subscriber.
func (b *Broker) Subscribe(topic string, ch chan<- Envelope) func() {
	b.mu.Lock()
	subscribers, ok := b.topics[topic]
	if !ok {
		subscribers = make(map[chan<- Envelope]struct{})
		b.topics[topic] = subscribers
	}
	subscribers[ch] = struct{}{}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subscribers, ok := b.topics[topic]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(b.topics, topic)
			}
		}
	}
}

// Publish delivers payload to every current subscriber of topic. Sends
// never block: a subscriber whose buffer is full misses the update.
// Within one topic, subscribers observe publishes in call order.
func (b *Broker) Publish(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.topics[topic] {
		select {
		case ch <- Envelope{Topic: topic, Payload: payload}:
		default:
			b.logger.Debug("Dropping realtime update for slow subscriber",
				slog.String("topic", topic))
		}
	}
}

// SubscriberCount reports how many channels are joined to a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
