package convergence

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Result summarises a finished run.
type Result struct {
	Attempts  int  // immediate refetch plus ladder steps that actually ran
	Failures  int  // refetches or invalidations that returned an error
	Verified  bool // the verification read ran and observed the expected state
	Mismatch  bool // the verification read observed a different state
	Cancelled bool
}

// Run is one execution of the convergence protocol for a mutation.
type Run struct {
	owner    *Synchronizer
	mutation Mutation
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  []*time.Timer
	pending sync.WaitGroup

	attempts atomic.Int32
	failures atomic.Int32

	result Result
	done   chan struct{}
}

// Cancel stops every pending ladder step and skips verification.
// Steps already executing finish but their errors are ignored.
func (r *Run) Cancel() {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.timers {
		if t.Stop() {
			r.pending.Done()
		}
	}
	r.timers = nil
}

// Done is closed once the run finished or was cancelled.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the outcome; it is only meaningful after Done is closed.
func (r *Run) Result() Result {
	<-r.done

	return r.result
}

func (r *Run) step(attempt int) {
	defer r.pending.Done()

	if r.ctx.Err() != nil {
		return
	}
	r.attempts.Add(1)

	if attempt > 0 {
		r.invalidate()
	}

	for _, v := range r.mutation.Views {
		if v.Refetch != nil {
			r.refetch(attempt, v.Key, v.Refetch)
		}
		for _, sub := range r.owner.subscribersOf(v.Key) {
			r.refetch(attempt, v.Key, sub.deliver)
		}
	}
}

func (r *Run) refetch(attempt int, key string, fn RefetchFunc) {
	if r.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.owner.stepTimeout)
	defer cancel()

	if err := fn(ctx); err != nil && r.ctx.Err() == nil {
		r.failures.Add(1)
		r.logger.Debug("Convergence refetch failed",
			slog.Int("attempt", attempt),
			slog.String("view", key),
			slog.Any("error", err),
		)
	}
}

func (r *Run) invalidate() {
	keys := r.keys()
	if len(keys) == 0 || r.owner.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.owner.stepTimeout)
	defer cancel()

	if err := r.owner.cache.Delete(ctx, keys...); err != nil {
		r.failures.Add(1)
		r.logger.Warn("Convergence invalidation failed",
			slog.Any("views", keys),
			slog.Any("error", err),
		)
	}
}

func (r *Run) keys() []string {
	keys := make([]string, 0, len(r.mutation.Views))
	for _, v := range r.mutation.Views {
		keys = append(keys, v.Key)
	}

	return keys
}

// finish waits for the ladder, runs the verification read and releases the run.
func (r *Run) finish() {
	defer close(r.done)
	defer r.owner.forget(r)
	defer r.cancel()

	r.pending.Wait()

	r.result.Attempts = int(r.attempts.Load())
	if r.ctx.Err() != nil {
		r.result.Cancelled = true
		r.result.Failures = int(r.failures.Load())

		return
	}

	r.verify()
	r.result.Failures = int(r.failures.Load())

	if r.result.Failures > 0 {
		r.logger.Info("Convergence finished with failed attempts",
			slog.Int("attempts", r.result.Attempts),
			slog.Int("failures", r.result.Failures),
		)
	}
}

func (r *Run) verify() {
	if r.mutation.Verify == nil || r.mutation.Once {
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.owner.stepTimeout)
	defer cancel()

	observed, err := r.mutation.Verify(ctx)
	if err != nil {
		r.failures.Add(1)
		r.logger.Warn("Convergence verification read failed", slog.Any("error", err))

		return
	}

	if observed != r.mutation.Expected {
		r.result.Mismatch = true
		r.logger.Warn("Convergence verification mismatch",
			slog.String("expected", r.mutation.Expected),
			slog.String("observed", observed),
		)
		// Replicas are still behind; drop whatever the ladder cached so the next read retries.
		r.invalidate()

		return
	}

	r.result.Verified = true
}
