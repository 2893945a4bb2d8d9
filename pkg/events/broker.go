package events

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler receives events matching a subscription's interest.
type Handler func(Event)

// Subscription identifies a registered handler for later removal.
type Subscription struct {
	id  string
	key string
}

// Broker owns the subscriber list and broadcasts events one-to-many.
// Delivery is fire-and-forget: a panicking handler is isolated and logged,
// and no handler can veto delivery to the others.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*subscriber
	logger *zap.Logger
}

type subscriber struct {
	interest Interest
	handler  Handler
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithLogger sets the broker's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) BrokerOption {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroker creates an empty broker.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		subs:   make(map[string]map[string]*subscriber),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for events on the given key, filtered by
// interest. The returned subscription must be passed to Unsubscribe on
// teardown.
func (b *Broker) Subscribe(key string, interest Interest, h Handler) Subscription {
	sub := Subscription{id: uuid.NewString(), key: key}
	if h == nil {
		return sub
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	byID, ok := b.subs[key]
	if !ok {
		byID = make(map[string]*subscriber)
		b.subs[key] = byID
	}
	byID[sub.id] = &subscriber{interest: interest, handler: h}
	return sub
}

// Unsubscribe removes a previously registered handler. Unknown
// subscriptions are ignored.
func (b *Broker) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	byID, ok := b.subs[sub.key]
	if !ok {
		return
	}
	delete(byID, sub.id)
	if len(byID) == 0 {
		delete(b.subs, sub.key)
	}
}

// SubscriberCount returns the number of handlers registered for a key.
func (b *Broker) SubscriberCount(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}

// Publish broadcasts the event to every subscriber of its key whose
// interest matches.
func (b *Broker) Publish(e Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs[e.Key]))
	for _, sub := range b.subs[e.Key] {
		if sub.interest.Matches(e) {
			matched = append(matched, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		b.deliver(h, e)
	}
}

func (b *Broker) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event handler panicked",
				zap.String("key", e.Key),
				zap.String("request", string(e.Request)),
				zap.Any("panic", r))
		}
	}()
	h(e)
}
