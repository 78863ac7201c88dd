package eventsync

import (
	"context"
	"sync"
)

// State is the observable status of the coordinator.
type State struct {
	// IsLoading is true while a sync is in flight.
	IsLoading bool `json:"is_loading"`
	// DataFromCache is true when the last sync could not confirm the cache against the remote source.
	DataFromCache bool `json:"data_from_cache"`
}

// StateListener is called synchronously, in publication order, for every state change.
type StateListener func(State)

// stateHub holds the current State and fans every change out to subscribers.
// Subscribers get every value in publication order; nothing is dropped.
type stateHub struct {
	mu        sync.Mutex
	current   State
	subs      map[*stateSubscriber]struct{}
	listeners []StateListener
}

type stateSubscriber struct {
	mu     sync.Mutex
	queue  []State
	notify chan struct{}
}

func newStateHub() *stateHub {
	return &stateHub{subs: make(map[*stateSubscriber]struct{})}
}

func (h *stateHub) get() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *stateHub) addListener(l StateListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// update applies fn to the current state and publishes the result.
func (h *stateHub) update(fn func(*State)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.current
	fn(&next)
	h.current = next

	for sub := range h.subs {
		sub.push(next)
	}
	for _, l := range h.listeners {
		l(next)
	}
}

func (h *stateHub) subscribe(ctx context.Context) <-chan State {
	sub := &stateSubscriber{notify: make(chan struct{}, 1)}
	out := make(chan State)

	h.mu.Lock()
	sub.push(h.current)
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(out)
		}()

		for {
			for _, s := range sub.drain() {
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-sub.notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *stateSubscriber) push(st State) {
	s.mu.Lock()
	s.queue = append(s.queue, st)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *stateSubscriber) drain() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue
	s.queue = nil
	return q
}
