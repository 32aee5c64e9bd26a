// Package convergence drives cached read views toward the state of a just-committed mutation.
//
// The store's read replicas lag the primary, so a view refetched right after a write can
// still show the old state. After every mutation the Synchronizer invalidates the affected
// view keys, refetches them immediately, repeats that on a fixed delay ladder and finally
// reads the mutated record once more to check it reached the expected state. Everything
// after the initial invalidation is best-effort: failures are logged, never returned.
package convergence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"darshan/config"
	"darshan/internal/domain/service"

	"go.uber.org/fx"
)

// RefetchFunc reloads one view from the store and repopulates its cache entry.
type RefetchFunc func(ctx context.Context) error

// VerifyFunc reads the mutated record and returns its observed state.
type VerifyFunc func(ctx context.Context) (string, error)

// Invalidator drops cached view entries.
type Invalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

// View is a cached read model that depends on the mutated entity.
type View struct {
	Key     string
	Refetch RefetchFunc // optional, subscribers of Key are refetched either way
}

// Mutation describes a committed write and the views it affects.
type Mutation struct {
	Entity   string // e.g. "booking", "account"
	ID       string
	Views    []View
	Expected string     // state Verify should observe once replicas caught up
	Verify   VerifyFunc // optional
	Ladder   []time.Duration
	// Once skips the ladder and verification. For high-frequency updates that the next one supersedes.
	Once bool
}

// Options configures a Synchronizer.
type Options struct {
	Ladder      []time.Duration
	StepTimeout time.Duration
}

// Synchronizer runs the convergence protocol and owns every pending timer and subscription.
type Synchronizer struct {
	cache       Invalidator
	logger      *slog.Logger
	ladder      []time.Duration
	stepTimeout time.Duration

	mu     sync.Mutex
	runs   map[*Run]struct{}
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// Params defines the dependencies injected by fx.
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
	Cache  service.ViewCache
}

// NewSynchronizer builds the fx-managed synchronizer; pending ladders are cancelled on stop.
func NewSynchronizer(params Params) *Synchronizer {
	opts := Options{}
	if params.Config.Sync != nil {
		opts.Ladder = params.Config.Sync.Ladder
		opts.StepTimeout = params.Config.Sync.StepTimeout
	}

	s := New(params.Cache, params.Logger, opts)

	params.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if n := s.ActiveRuns(); n > 0 {
				params.Logger.Info("Cancelling pending convergence runs", slog.Int("active_runs", n))
			}
			s.Close()

			return nil
		},
	})

	return s
}

// New creates a Synchronizer. A nil or empty ladder falls back to config.DefaultLadder.
func New(cache Invalidator, logger *slog.Logger, opts Options) *Synchronizer {
	ladder := opts.Ladder
	if len(ladder) == 0 {
		ladder = config.DefaultLadder
	}
	stepTimeout := opts.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = 5 * time.Second
	}

	return &Synchronizer{
		cache:       cache,
		logger:      logger,
		ladder:      append([]time.Duration(nil), ladder...),
		stepTimeout: stepTimeout,
		runs:        make(map[*Run]struct{}),
		subs:        make(map[string]map[*Subscription]struct{}),
	}
}

// Converge starts the protocol for m and returns immediately after the first invalidation.
// The run outlives ctx's cancellation; use Run.Cancel to stop it.
func (s *Synchronizer) Converge(ctx context.Context, m Mutation) *Run {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Run{
		owner:    s,
		mutation: m,
		ctx:      runCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger: s.logger.With(
			slog.String("entity", m.Entity),
			slog.String("entity_id", m.ID),
		),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		r.result.Cancelled = true
		close(r.done)

		return r
	}
	s.runs[r] = struct{}{}
	s.mu.Unlock()

	// Invalidate synchronously so that any read issued after the mutation returns misses the stale entry.
	r.invalidate()

	ladder := m.Ladder
	switch {
	case m.Once:
		ladder = nil
	case len(ladder) == 0:
		ladder = s.ladder
	}

	r.mu.Lock()
	if r.ctx.Err() != nil {
		// Cancelled by Close while invalidating.
		r.mu.Unlock()
		go r.finish()

		return r
	}
	r.pending.Add(len(ladder) + 1)
	go r.step(0)
	for i, delay := range ladder {
		attempt := i + 1
		r.timers = append(r.timers, time.AfterFunc(delay, func() { r.step(attempt) }))
	}
	r.mu.Unlock()

	go r.finish()

	return r
}

// Close cancels every active run and drops all subscriptions.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	runs := make([]*Run, 0, len(s.runs))
	for r := range s.runs {
		runs = append(runs, r)
	}
	subs := s.subs
	s.subs = make(map[string]map[*Subscription]struct{})
	s.mu.Unlock()

	for _, r := range runs {
		r.Cancel()
	}
	for _, set := range subs {
		for sub := range set {
			sub.markCancelled()
		}
	}
}

// ActiveRuns returns the number of runs that have not finished yet.
func (s *Synchronizer) ActiveRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.runs)
}

func (s *Synchronizer) forget(r *Run) {
	s.mu.Lock()
	delete(s.runs, r)
	s.mu.Unlock()
}

func (s *Synchronizer) subscribersOf(key string) []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.subs[key]
	out := make([]*Subscription, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}

	return out
}
