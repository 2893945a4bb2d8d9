package object

import (
	"sync"
	"time"
)

// DefaultUnloadPolicy applies when object options leave the policy empty.
const DefaultUnloadPolicy = UnloadAllow

// TrackedObject is the unit of synchronized state, identified by key.
// Callers mutate Data in place and then signal the registry, which
// coalesces the change signals into debounced syncs. All accessors are
// safe for concurrent use.
type TrackedObject struct {
	key  string
	mode Mode

	mu         sync.Mutex
	data       any
	pending    []string
	pendingSet map[string]struct{}
	debounce   time.Duration
	unload     UnloadPolicy
	status     Status
	strict     bool
	modifierID string
	deleted    bool

	pull      PullFunc
	push      PushFunc
	onSuccess Callback
	onError   Callback
}

// New constructs a tracked object from the given options. Validation
// happens at the registry boundary; New only normalizes defaults.
func New(key string, mode Mode, opts Options) *TrackedObject {
	strict := true
	if opts.StrictValidation != nil {
		strict = *opts.StrictValidation
	}
	unload := opts.UnloadPolicy
	if unload == "" {
		unload = DefaultUnloadPolicy
	}
	return &TrackedObject{
		key:        key,
		mode:       mode,
		data:       opts.DefaultValue,
		pendingSet: make(map[string]struct{}),
		debounce:   opts.DebounceInterval,
		unload:     unload,
		status:     Status{LastOutcome: OutcomeUnknown},
		strict:     strict,
		pull:       opts.Pull,
		push:       opts.Push,
		onSuccess:  opts.OnSuccess,
		onError:    opts.OnError,
	}
}

// Key returns the immutable identity of the object.
func (o *TrackedObject) Key() string { return o.key }

// Mode returns the current persistence mode.
func (o *TrackedObject) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// Decouple demotes the object to ModeNone so it no longer pulls or pushes.
func (o *TrackedObject) Decouple() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mode = ModeNone
}

// Data returns the current payload.
func (o *TrackedObject) Data() any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.data
}

// SetData replaces the payload wholesale.
func (o *TrackedObject) SetData(v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data = v
}

// DebounceInterval returns the default coalescing window.
func (o *TrackedObject) DebounceInterval() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.debounce
}

// UnloadPolicy returns the configured shutdown behavior.
func (o *TrackedObject) UnloadPolicy() UnloadPolicy {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.unload
}

// Strict reports whether precondition checks apply to this object.
func (o *TrackedObject) Strict() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.strict
}

// Status returns the observable result of the most recent sync attempt.
func (o *TrackedObject) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// SetStatus records the outcome of a sync attempt.
func (o *TrackedObject) SetStatus(s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}

// AddPendingProperties appends property names changed since the last
// successful sync. Names are kept in first-seen order and deduplicated, so
// coalesced modify signals accumulate the union of their properties.
func (o *TrackedObject) AddPendingProperties(names ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := o.pendingSet[name]; ok {
			continue
		}
		o.pendingSet[name] = struct{}{}
		o.pending = append(o.pending, name)
	}
}

// PendingProperties returns a snapshot of the accumulated property names.
func (o *TrackedObject) PendingProperties() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.pending))
	copy(out, o.pending)
	return out
}

// ClearPendingProperties empties the change log. Called exactly once per
// successful sync; failed syncs leave the log untouched so failures do not
// lose change tracking.
func (o *TrackedObject) ClearPendingProperties() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = nil
	o.pendingSet = make(map[string]struct{})
}

// SetLastModifier tags the in-flight modification with an opaque
// identifier, used by observers to tell self-triggered changes from
// external ones.
func (o *TrackedObject) SetLastModifier(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modifierID = id
}

// LastModifier returns the tag of the most recent in-flight modification,
// or the empty string when no modification is outstanding.
func (o *TrackedObject) LastModifier() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.modifierID
}

// MarkDeleted severs the object from future mutation. Modify attempts on a
// deleted instance fail with a validation error.
func (o *TrackedObject) MarkDeleted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = true
}

// Deleted reports whether the object was removed from its registry.
func (o *TrackedObject) Deleted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deleted
}

// PullFunc returns the caller-supplied read hook, nil unless ModeCustom.
func (o *TrackedObject) PullFunc() PullFunc { return o.pull }

// PushFunc returns the caller-supplied write hook, nil unless ModeCustom.
func (o *TrackedObject) PushFunc() PushFunc { return o.push }

// OnSuccess returns the success callback, if any.
func (o *TrackedObject) OnSuccess() Callback { return o.onSuccess }

// OnError returns the error callback, if any.
func (o *TrackedObject) OnError() Callback { return o.onError }
