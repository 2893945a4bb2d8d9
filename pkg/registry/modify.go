package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronkwan/synced-object/pkg/events"
	"github.com/aaronkwan/synced-object/pkg/object"
	"github.com/aaronkwan/synced-object/pkg/validation"
)

// ModifyOption adjusts one modification signal.
type ModifyOption func(*modifyConfig)

type modifyConfig struct {
	properties []string
	delay      *time.Duration
	modifierID string
}

// WithProperty names a payload field changed by this modification.
// Repeatable; names accumulate (deduplicated) across the debounce window.
func WithProperty(name string) ModifyOption {
	return func(c *modifyConfig) {
		c.properties = append(c.properties, name)
	}
}

// WithDebounce overrides the object's default coalescing window for this
// modification. The last modification's delay decides when the coalesced
// sync fires.
func WithDebounce(d time.Duration) ModifyOption {
	return func(c *modifyConfig) {
		c.delay = &d
	}
}

// WithModifier tags the modification with an opaque identifier so
// observers can tell self-triggered changes from external ones.
func WithModifier(id string) ModifyOption {
	return func(c *modifyConfig) {
		c.modifierID = id
	}
}

// Modify signals that the caller mutated the object's payload. It records
// the named properties, broadcasts a modify event, and schedules a
// debounced push: a signal arriving while a timer is outstanding replaces
// the timer, so rapid signals coalesce into one sync carrying the union
// of their property names. Modify returns immediately; the sync happens
// later, and its failure is absorbed into object status rather than
// raised here.
func (r *Registry) Modify(key string, opts ...ModifyOption) error {
	var cfg modifyConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	obj, ok := r.Get(key)
	if !ok {
		return validation.Errorf("modify", key, "no tracked object with this key")
	}
	if obj.Deleted() {
		return validation.Errorf("modify", key, "object was deleted")
	}
	if r.sched.Stopped() {
		return validation.Errorf("modify", key, "registry is shut down")
	}

	if obj.Strict() {
		checks := make([]error, 0, len(cfg.properties)+1)
		for _, name := range cfg.properties {
			checks = append(checks, validation.CheckProperty(obj.Data(), name))
		}
		if cfg.delay != nil {
			checks = append(checks, validation.CheckDebounce(*cfg.delay))
		}
		if err := validation.NewError("modify", key, checks...); err != nil {
			return err
		}
	}

	obj.AddPendingProperties(cfg.properties...)
	if cfg.modifierID != "" {
		obj.SetLastModifier(cfg.modifierID)
	}

	r.broker.Publish(events.Event{
		Key:        key,
		Request:    object.RequestModify,
		Properties: obj.PendingProperties(),
		Success:    true,
		ModifierID: obj.LastModifier(),
	})

	delay := obj.DebounceInterval()
	if cfg.delay != nil {
		delay = *cfg.delay
	}
	// Lost a race with Shutdown: the signal is recorded but no sync will
	// run, so do not leave the object reporting pending.
	if !r.scheduleSync(obj, delay, object.RequestPush) {
		return validation.Errorf("modify", key, "registry is shut down")
	}
	return nil
}

// Update is the synchronous read-modify-write path: it waits for any
// outstanding sync on key to finish, applies the new payload wholesale,
// and forces an immediate push. Waiting first means the update cannot
// clobber an in-flight push with stale data.
func (r *Registry) Update(ctx context.Context, key string, data any) error {
	obj, ok := r.Get(key)
	if !ok {
		return validation.Errorf("update", key, "no tracked object with this key")
	}
	if obj.Deleted() {
		return validation.Errorf("update", key, "object was deleted")
	}
	if r.sched.Stopped() {
		return validation.Errorf("update", key, "registry is shut down")
	}

	if err := r.sched.AwaitIdle(ctx, key); err != nil {
		return fmt.Errorf("waiting for pending sync on %q: %w", key, err)
	}

	obj.SetData(data)
	r.broker.Publish(events.Event{
		Key:        key,
		Request:    object.RequestModify,
		Properties: obj.PendingProperties(),
		Success:    true,
		ModifierID: obj.LastModifier(),
	})
	if !r.scheduleSync(obj, 0, object.RequestPush) {
		return validation.Errorf("update", key, "registry is shut down")
	}
	return nil
}
