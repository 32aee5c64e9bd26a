package convergence

import (
	"context"
	"sync"
)

// Subscription is a long-lived registration for refetches of one view key.
// It replaces polling timers: the owner receives a callback whenever a convergence
// run touches the key and must call Cancel when it goes away.
type Subscription struct {
	owner   *Synchronizer
	key     string
	fn      RefetchFunc
	mu      sync.RWMutex
	stopped bool
}

// Subscribe registers fn for key. fn must not call Cancel on its own subscription.
func (s *Synchronizer) Subscribe(key string, fn RefetchFunc) *Subscription {
	sub := &Subscription{owner: s, key: key, fn: fn}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		sub.stopped = true

		return sub
	}

	set, ok := s.subs[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		s.subs[key] = set
	}
	set[sub] = struct{}{}

	return sub
}

// Key returns the subscribed view key.
func (sub *Subscription) Key() string {
	return sub.key
}

// Cancel unregisters the subscription. Once it returns no further callback runs,
// including one that was in flight when Cancel was called.
func (sub *Subscription) Cancel() {
	s := sub.owner

	s.mu.Lock()
	if set, ok := s.subs[sub.key]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(s.subs, sub.key)
		}
	}
	s.mu.Unlock()

	sub.markCancelled()
}

// Subscribers returns the number of live subscriptions for key.
func (s *Synchronizer) Subscribers(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.subs[key])
}

func (sub *Subscription) markCancelled() {
	sub.mu.Lock()
	sub.stopped = true
	sub.mu.Unlock()
}

func (sub *Subscription) deliver(ctx context.Context) error {
	sub.mu.RLock()
	defer sub.mu.RUnlock()

	if sub.stopped {
		return nil
	}

	return sub.fn(ctx)
}
