// Package registry provides the management surface of the synced-object
// engine: a constructed service holding all tracked objects by key and
// mediating creation, modification, deletion, backend-wide queries and
// shutdown. A process typically owns one Registry created at startup and
// torn down via Shutdown; tests instantiate isolated registries.
package registry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/aaronkwan/synced-object/pkg/backend"
	"github.com/aaronkwan/synced-object/pkg/events"
	"github.com/aaronkwan/synced-object/pkg/object"
	"github.com/aaronkwan/synced-object/pkg/scheduler"
	"github.com/aaronkwan/synced-object/pkg/syncer"
	"github.com/aaronkwan/synced-object/pkg/telemetry"
	"github.com/aaronkwan/synced-object/pkg/validation"
)

// Registry is the single source of truth for tracked-object existence and
// identity. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]*object.TrackedObject

	store   backend.Store
	sched   *scheduler.Scheduler
	exec    *syncer.Executor
	broker  *events.Broker
	logger  *zap.Logger
	metrics *telemetry.RegistryMetrics
}

// Option configures a Registry.
type Option func(*config)

type config struct {
	store         backend.Store
	broker        *events.Broker
	logger        *zap.Logger
	meterProvider metric.MeterProvider
	maxAttempts   uint
}

// WithStore sets the persistence backend for durable objects.
// Defaults to an in-memory store.
func WithStore(store backend.Store) Option {
	return func(c *config) {
		if store != nil {
			c.store = store
		}
	}
}

// WithBroker sets the event broker observers subscribe through.
// Defaults to a fresh broker.
func WithBroker(broker *events.Broker) Option {
	return func(c *config) {
		if broker != nil {
			c.broker = broker
		}
	}
}

// WithLogger sets the registry's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMeterProvider enables OpenTelemetry metrics for sync operations and
// registry population. A nil provider keeps metrics disabled.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = provider
	}
}

// WithPushRetry enables retrying failed pushes with exponential backoff,
// up to maxAttempts attempts per sync.
func WithPushRetry(maxAttempts uint) Option {
	return func(c *config) {
		c.maxAttempts = maxAttempts
	}
}

// New constructs a registry. The zero configuration is fully functional:
// in-memory store, fresh broker, no-op logger, no metrics.
func New(opts ...Option) *Registry {
	cfg := &config{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = backend.NewMemoryStore()
	}
	if cfg.broker == nil {
		cfg.broker = events.NewBroker(events.WithLogger(cfg.logger))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(cfg.meterProvider)
	if err != nil {
		cfg.logger.Warn("failed to initialize sync metrics", zap.Error(err))
	}
	registryMetrics, err := telemetry.NewRegistryMetrics(cfg.meterProvider)
	if err != nil {
		cfg.logger.Warn("failed to initialize registry metrics", zap.Error(err))
	}

	execOpts := []syncer.Option{
		syncer.WithLogger(cfg.logger),
		syncer.WithMetrics(syncMetrics),
	}
	if cfg.maxAttempts > 1 {
		execOpts = append(execOpts, syncer.WithRetry(cfg.maxAttempts))
	}

	return &Registry{
		objects: make(map[string]*object.TrackedObject),
		store:   cfg.store,
		sched:   scheduler.New(scheduler.WithLogger(cfg.logger)),
		exec:    syncer.New(cfg.store, cfg.broker, execOpts...),
		broker:  cfg.broker,
		logger:  cfg.logger,
		metrics: registryMetrics,
	}
}

// Create returns the tracked object for key, constructing it when absent.
// Re-invoking with an existing key returns the existing instance and
// discards the new options. New objects immediately schedule an initial
// pull unless their mode is ModeNone.
func (r *Registry) Create(key string, mode object.Mode, opts object.Options) (*object.TrackedObject, error) {
	if existing, ok := r.Get(key); ok {
		return existing, nil
	}

	strict := opts.StrictValidation == nil || *opts.StrictValidation
	if strict {
		if err := validation.NewError("create", key,
			validation.CheckKey(key),
			validation.CheckMode(mode),
			validation.CheckDebounce(opts.DebounceInterval),
			validation.CheckUnloadPolicy(opts.UnloadPolicy),
		); err != nil {
			return nil, err
		}
	}
	r.reportUsageWarnings(key, mode, opts)

	obj := object.New(key, mode, opts)

	r.mu.Lock()
	if existing, ok := r.objects[key]; ok {
		// Lost a create race; the earlier instance wins.
		r.mu.Unlock()
		return existing, nil
	}
	r.objects[key] = obj
	r.mu.Unlock()

	r.metrics.RecordObjectAdded(context.Background())
	r.logger.Debug("tracked object created",
		zap.String("key", key),
		zap.String("mode", string(mode)))

	if mode != object.ModeNone {
		r.runInitialSync(obj)
	}
	return obj, nil
}

// Get returns the tracked object for key, if present.
func (r *Registry) Get(key string) (*object.TrackedObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[key]
	return obj, ok
}

// Keys returns the keys of every tracked object.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.objects))
	for key := range r.objects {
		keys = append(keys, key)
	}
	return keys
}

// Broker returns the event broker observers subscribe through.
func (r *Registry) Broker() *events.Broker { return r.broker }

// Delete removes the tracked object for key: the pending task is
// cancelled, the instance is severed from further mutation, and a
// terminal delete event is emitted asynchronously once the removal is
// visible to new lookups.
func (r *Registry) Delete(key string) error {
	r.mu.Lock()
	obj, ok := r.objects[key]
	if !ok {
		r.mu.Unlock()
		return validation.Errorf("delete", key, "no tracked object with this key")
	}
	delete(r.objects, key)
	r.mu.Unlock()

	r.sched.Cancel(key)
	obj.MarkDeleted()
	r.metrics.RecordObjectRemoved(context.Background())
	r.logger.Debug("tracked object deleted", zap.String("key", key))

	event := events.Event{
		Key:        key,
		Request:    object.RequestDelete,
		Properties: obj.PendingProperties(),
		Success:    true,
		ModifierID: obj.LastModifier(),
	}
	go r.broker.Publish(event)
	return nil
}

// runInitialSync performs the creation-time pull in the key's execution
// slot but outside the replaceable timer, so a Modify arriving right
// after Create cannot cancel it: the debounced push queues behind the
// pull instead of replacing it.
func (r *Registry) runInitialSync(obj *object.TrackedObject) {
	prev := obj.Status()
	obj.SetStatus(object.Status{LastOutcome: object.OutcomePending})
	accepted := r.sched.Run(obj.Key(), func() {
		r.exec.Execute(context.Background(), obj, object.RequestPull)
	})
	if !accepted {
		obj.SetStatus(prev)
	}
}

// scheduleSync marks the object pending and arms (or replaces) its
// debounce timer. It returns false, with the previous status restored,
// when the scheduler has been stopped.
func (r *Registry) scheduleSync(obj *object.TrackedObject, delay time.Duration, req object.Request) bool {
	prev := obj.Status()
	obj.SetStatus(object.Status{LastOutcome: object.OutcomePending})
	accepted := r.sched.Schedule(obj.Key(), delay, func() {
		r.exec.Execute(context.Background(), obj, req)
	})
	if !accepted {
		obj.SetStatus(prev)
	}
	return accepted
}

func (r *Registry) reportUsageWarnings(key string, mode object.Mode, opts object.Options) {
	hasHooks := opts.Pull != nil || opts.Push != nil
	if mode == object.ModeCustom && !hasHooks {
		r.logger.Warn("custom object has neither pull nor push hooks, syncs will be no-ops",
			zap.String("key", key))
	}
	if mode != object.ModeCustom && hasHooks {
		r.logger.Warn("pull/push hooks are ignored outside custom mode",
			zap.String("key", key),
			zap.String("mode", string(mode)))
	}
}
