// Package scheduler implements the debounce/task engine: per-key pending
// task bookkeeping with replace-never-stack semantics, deferred dispatch,
// and per-key idle conditions.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is the deferred work armed behind a debounce timer.
type Task func()

// Scheduler arms at most one pending timer per key. Scheduling a key that
// already has a pending timer cancels the old timer and restarts the wait,
// so only the last schedule's delay decides when the coalesced task fires.
// A zero delay still defers execution off the caller's stack.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[string]*keyState
	stopped bool
	logger  *zap.Logger
}

// keyState tracks one key's pending timer, queued immediate tasks and
// in-flight execution. gen invalidates a fired timer that lost a
// cancel/replace race: the timer callback compares its generation against
// the current one and gives up on mismatch.
type keyState struct {
	timer   *time.Timer
	gen     uint64
	queued  int
	running bool
	waiters []chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		entries: make(map[string]*keyState),
		logger:  zap.NewNop(),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule cancels any pending timer for key and arms a new one. When the
// timer expires the pending record is cleared before task runs, so a task
// that fails synchronously cannot strand a stale handle. Tasks for the
// same key never overlap: a firing timer waits for the previous execution
// to finish before starting. It returns false when the scheduler is
// stopped and the task was dropped.
func (s *Scheduler) Schedule(key string, delay time.Duration, task Task) bool {
	if task == nil {
		return false
	}
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.logger.Debug("schedule after stop ignored", zap.String("key", key))
		return false
	}

	ks, ok := s.entries[key]
	if !ok {
		ks = &keyState{}
		s.entries[key] = ks
	}
	if ks.timer != nil {
		ks.timer.Stop()
		ks.timer = nil
	}
	ks.gen++
	gen := ks.gen
	ks.timer = time.AfterFunc(delay, func() {
		s.fire(key, gen, task)
	})
	return true
}

// Run executes task for key on its own goroutine as soon as the key's
// execution slot frees, outside the replaceable timer slot: a later
// Schedule for the same key arms its own timer but neither cancels this
// task nor fires before it. It returns false when the scheduler is
// stopped and the task was dropped.
func (s *Scheduler) Run(key string, task Task) bool {
	if task == nil {
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Debug("run after stop ignored", zap.String("key", key))
		return false
	}
	ks, ok := s.entries[key]
	if !ok {
		ks = &keyState{}
		s.entries[key] = ks
	}
	ks.queued++
	s.mu.Unlock()

	go func() {
		s.mu.Lock()
		for ks.running && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			ks.queued--
			s.release(key, ks)
			s.mu.Unlock()
			return
		}
		ks.queued--
		ks.running = true
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			ks.running = false
			s.cond.Broadcast()
			s.release(key, ks)
			s.mu.Unlock()
		}()
		task()
	}()
	return true
}

// fire runs the task for key if its generation is still current.
func (s *Scheduler) fire(key string, gen uint64, task Task) {
	s.mu.Lock()
	ks, ok := s.entries[key]
	if !ok || ks.gen != gen {
		s.mu.Unlock()
		return
	}
	// Clear the pending-timer record before the task body runs.
	ks.timer = nil

	// Serialize executions per key, yielding to queued immediate tasks
	// so a creation-time pull always lands before the push that queued
	// behind it. A replacement armed while we wait bumps the generation
	// and this firing gives up.
	for ks.running || ks.queued > 0 {
		s.cond.Wait()
		if s.stopped || ks.gen != gen {
			s.mu.Unlock()
			return
		}
	}
	ks.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		ks.running = false
		s.cond.Broadcast()
		s.release(key, ks)
		s.mu.Unlock()
	}()
	task()
}

// release drops the key's state and wakes idle waiters once no timer is
// armed, nothing is queued and nothing is executing. Callers must hold
// s.mu.
func (s *Scheduler) release(key string, ks *keyState) {
	if ks.timer != nil || ks.running || ks.queued > 0 {
		return
	}
	for _, w := range ks.waiters {
		close(w)
	}
	ks.waiters = nil
	if current, ok := s.entries[key]; ok && current == ks {
		delete(s.entries, key)
	}
}

// Cancel discards the pending timer for key, if any. It returns true when
// a pending timer was cancelled. An execution already in flight runs to
// completion; Cancel only prevents work that has not started.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks, ok := s.entries[key]
	if !ok {
		return false
	}
	cancelled := ks.timer != nil
	if ks.timer != nil {
		ks.timer.Stop()
		ks.timer = nil
	}
	ks.gen++
	s.release(key, ks)
	return cancelled
}

// Pending reports whether key has a scheduled, queued or in-flight task.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks, ok := s.entries[key]
	return ok && (ks.timer != nil || ks.running || ks.queued > 0)
}

// PendingKeys returns every key with a scheduled, queued or in-flight
// task.
func (s *Scheduler) PendingKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for key, ks := range s.entries {
		if ks.timer != nil || ks.running || ks.queued > 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

// Stopped reports whether Stop has been called.
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// AwaitIdle blocks until key has neither a scheduled nor an in-flight
// task, or until ctx is done. It returns immediately when the key is
// already idle.
func (s *Scheduler) AwaitIdle(ctx context.Context, key string) error {
	s.mu.Lock()
	ks, ok := s.entries[key]
	if !ok || (ks.timer == nil && !ks.running && ks.queued == 0) {
		s.mu.Unlock()
		return nil
	}
	idle := make(chan struct{})
	ks.waiters = append(ks.waiters, idle)
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels every pending timer, abandons queued tasks that have not
// started, and rejects further scheduling. Executions already in flight
// run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, ks := range s.entries {
		if ks.timer != nil {
			ks.timer.Stop()
			ks.timer = nil
		}
		ks.gen++
		s.release(key, ks)
	}
	s.cond.Broadcast()
}
