// Package notify implements the synchronous change broadcast shared by the
// ledger stores. Publish runs every subscriber before it returns, so a
// derived cache is always invalidated by the time the mutating call that
// triggered it completes.
package notify

import (
	"slices"
	"sync"
)

// Topic identifies the store that changed.
type Topic string

const (
	TopicCategories   Topic = "categories"
	TopicTransactions Topic = "transactions"
	TopicBudgets      Topic = "budgets"
	TopicCurrency     Topic = "currency"
)

// Event describes a committed mutation.
type Event struct {
	Topic Topic
	// Action is a short verb such as "add", "update" or "delete".
	Action string
	// ID of the affected entity, empty for store-wide changes.
	ID string
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	topics  []Topic
	handler Handler
}

// Hub fans events out to subscribers.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers h for the given topics, or every topic when none are
// given. The returned func removes the subscription.
func (h *Hub) Subscribe(handler Handler, topics ...Topic) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription{id: id, topics: topics, handler: handler})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.subs = slices.DeleteFunc(h.subs, func(s subscription) bool { return s.id == id })
	}
}

// Publish delivers ev to every matching subscriber in subscription order.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	subs := slices.Clone(h.subs)
	h.mu.RUnlock()

	for _, s := range subs {
		if len(s.topics) == 0 || slices.Contains(s.topics, ev.Topic) {
			s.handler(ev)
		}
	}
}
