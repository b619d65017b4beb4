package event

import (
	"strings"
	"sync"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// subscription is one (topic, handler) registration
type subscription struct {
	handle  shared.SubscriptionHandle
	handler shared.EventHandler
}

// matches reports whether the subscription topic covers eventType.
// Topics are an exact type, "*" or a prefix ending in "*" (e.g. "case-*").
func (s subscription) matches(eventType shared.EventType) bool {
	return TopicMatches(s.handle.Topic, eventType)
}

// TopicMatches reports whether topic selects eventType
func TopicMatches(topic string, eventType shared.EventType) bool {
	if topic == shared.WildcardTopic {
		return true
	}
	if prefix, ok := strings.CutSuffix(topic, "*"); ok {
		return strings.HasPrefix(string(eventType), prefix)
	}
	return topic == string(eventType)
}

// SubscriptionRegistry keeps subscriptions in one list ordered by
// registration, so exact and wildcard handlers share a single FIFO order.
type SubscriptionRegistry struct {
	mu            sync.RWMutex
	subscriptions []subscription
}

// NewSubscriptionRegistry creates an empty registry
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{}
}

// Register appends a subscription and returns its handle
func (r *SubscriptionRegistry) Register(topic string, handler shared.EventHandler) shared.SubscriptionHandle {
	handle := shared.SubscriptionHandle{ID: uuid.New(), Topic: topic}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions = append(r.subscriptions, subscription{handle: handle, handler: handler})
	return handle
}

// Unregister removes the subscription; returns false if it was not present
func (r *SubscriptionRegistry) Unregister(handle shared.SubscriptionHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subscriptions {
		if s.handle.ID == handle.ID {
			// Copy rather than shift in place so snapshots taken by
			// in-flight publishes keep their view.
			next := make([]subscription, 0, len(r.subscriptions)-1)
			next = append(next, r.subscriptions[:i]...)
			next = append(next, r.subscriptions[i+1:]...)
			r.subscriptions = next
			return true
		}
	}
	return false
}

// Matching returns a snapshot of subscriptions for eventType in registration order
func (r *SubscriptionRegistry) Matching(eventType shared.EventType) []subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]subscription, 0, len(r.subscriptions))
	for _, s := range r.subscriptions {
		if s.matches(eventType) {
			result = append(result, s)
		}
	}
	return result
}

// Len returns the number of live subscriptions
func (r *SubscriptionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}
