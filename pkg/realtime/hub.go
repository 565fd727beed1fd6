package realtime

import (
	"sync"
)

// Feed hands out change subscriptions. Each Subscription must be closed by its owner.
type Feed interface {
	Subscribe(filters ...Filter) Subscription
}

// Subscription is a disposable handle on a filtered slice of the change feed.
//
// C delivers at most one pending event: a subscriber that has not drained the
// previous signal does not receive another, because consumers re-read state in
// full on every signal. C is closed by Close.
type Subscription interface {
	C() <-chan Event
	Close()
}

// Sink accepts events from a driver. It returns the number of subscriptions signalled.
type Sink interface {
	Publish(e Event) int
}

// Observer is notified after every Publish.
type Observer func(e Event, delivered int)

// Hub is an in-process dispatcher between feed drivers and subscriptions.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscription]struct{}
	observer Observer
}

// NewHub constructs an empty hub. observer may be nil.
func NewHub(observer Observer) *Hub {
	return &Hub{subs: make(map[*subscription]struct{}), observer: observer}
}

// Subscribe registers a subscription for events matching any of filters.
func (h *Hub) Subscribe(filters ...Filter) Subscription {
	s := &subscription{
		hub:     h,
		filters: append([]Filter(nil), filters...),
		ch:      make(chan Event, 1),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish signals every subscription with a matching filter without blocking.
func (h *Hub) Publish(e Event) int {
	delivered := 0
	h.mu.RLock()
	for s := range h.subs {
		if !s.matches(e) {
			continue
		}
		select {
		case s.ch <- e:
			delivered++
		default:
			// a signal is already pending
		}
	}
	h.mu.RUnlock()

	if h.observer != nil {
		h.observer(e, delivered)
	}
	return delivered
}

// Active returns the number of open subscriptions.
func (h *Hub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(s *subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return false
	}
	delete(h.subs, s)
	return true
}

type subscription struct {
	hub     *Hub
	filters []Filter
	ch      chan Event
	once    sync.Once
}

func (s *subscription) C() <-chan Event { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() {
		// Publish holds the read lock while sending, so after remove no send can race the close.
		s.hub.remove(s)
		close(s.ch)
	})
}

func (s *subscription) matches(e Event) bool {
	for _, f := range s.filters {
		if f.Matches(e) {
			return true
		}
	}
	return false
}
