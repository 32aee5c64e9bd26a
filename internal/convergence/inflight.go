package convergence

import "sync"

// InFlight tracks operations in progress per entity key, so that a second concurrent
// operation on the same entity is refused while unrelated entities proceed in parallel.
type InFlight struct {
	mu     sync.Mutex
	tokens map[string]uint64
	next   uint64
}

// NewInFlight creates an empty in-flight map.
func NewInFlight() *InFlight {
	return &InFlight{tokens: make(map[string]uint64)}
}

// Acquire claims key. It returns ok=false when another operation holds it.
// The returned release is idempotent and only frees the claim it created.
func (f *InFlight) Acquire(key string) (release func(), ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.tokens[key]; busy {
		return func() {}, false
	}

	f.next++
	token := f.next
	f.tokens[key] = token

	var once sync.Once

	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()

			if f.tokens[key] == token {
				delete(f.tokens, key)
			}
		})
	}, true
}
