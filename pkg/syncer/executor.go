// Package syncer implements the sync executor: it performs pull/push
// operations against a tracked object's backing mode, reduces the result
// to an observable outcome, and delegates notification.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/aaronkwan/synced-object/pkg/backend"
	"github.com/aaronkwan/synced-object/pkg/events"
	"github.com/aaronkwan/synced-object/pkg/object"
	"github.com/aaronkwan/synced-object/pkg/telemetry"
	"github.com/aaronkwan/synced-object/pkg/validation"
)

const defaultRetryInterval = 500 * time.Millisecond

// Outcome is the reduced result of one Execute call. Request reports the
// operation that actually ran: a pull that bootstrapped an absent backend
// slot reports the fallback push.
type Outcome struct {
	Request object.Request
	Success bool
	Err     error
}

// Executor runs pull/push operations for tracked objects. Failures inside
// backing stores or caller-supplied hooks are captured at this boundary
// and absorbed into object status; they never propagate to the caller
// that signaled the modification.
type Executor struct {
	store         backend.Store
	broker        *events.Broker
	logger        *zap.Logger
	metrics       *telemetry.SyncMetrics
	maxAttempts   uint
	retryInterval time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches sync metrics. A nil value disables recording.
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithRetry enables retrying failed push attempts with exponential
// backoff, up to maxAttempts attempts in total. All attempts run inside
// the one in-flight execution; the pending-task slot stays occupied until
// the final attempt resolves.
func WithRetry(maxAttempts uint) Option {
	return func(e *Executor) {
		e.maxAttempts = maxAttempts
	}
}

// WithRetryInterval overrides the initial backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.retryInterval = d
		}
	}
}

// New creates an executor over the given store and broker.
func New(store backend.Store, broker *events.Broker, opts ...Option) *Executor {
	e := &Executor{
		store:         store,
		broker:        broker,
		logger:        zap.NewNop(),
		maxAttempts:   1,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs one pull or push for obj and reduces the result:
// status updated, pending properties cleared on success only, matching
// callback invoked, modifier tag reset, and the outcome broadcast.
func (e *Executor) Execute(ctx context.Context, obj *object.TrackedObject, req object.Request) Outcome {
	start := time.Now()
	properties := obj.PendingProperties()
	modifierID := obj.LastModifier()

	outcome := e.attemptWithRetry(ctx, obj, req)
	e.reduce(obj, outcome, properties, modifierID)

	if e.metrics != nil {
		e.metrics.RecordSync(ctx, obj.Key(), string(outcome.Request), time.Since(start), outcome.Success)
	}
	return outcome
}

func (e *Executor) attemptWithRetry(ctx context.Context, obj *object.TrackedObject, req object.Request) Outcome {
	if req != object.RequestPush || e.maxAttempts <= 1 {
		return e.attempt(ctx, obj, req)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.retryInterval
	outcome, err := backoff.Retry(ctx, func() (Outcome, error) {
		out := e.attempt(ctx, obj, req)
		if !out.Success {
			return out, out.Err
		}
		return out, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(e.maxAttempts))
	if err != nil {
		return Outcome{Request: req, Err: err}
	}
	return outcome
}

// attempt runs the operation for the object's mode without touching
// status or notification state.
func (e *Executor) attempt(ctx context.Context, obj *object.TrackedObject, req object.Request) Outcome {
	switch obj.Mode() {
	case object.ModeNone:
		return Outcome{Request: req, Success: true}
	case object.ModeDurable:
		if req == object.RequestPull {
			return e.durablePull(ctx, obj)
		}
		return e.durablePush(ctx, obj)
	case object.ModeCustom:
		if req == object.RequestPull {
			return e.customPull(ctx, obj)
		}
		return e.customPush(ctx, obj)
	default:
		return Outcome{Request: req, Err: fmt.Errorf("unrecognized mode %q", obj.Mode())}
	}
}

func (e *Executor) durablePush(ctx context.Context, obj *object.TrackedObject) Outcome {
	data, err := json.Marshal(obj.Data())
	if err != nil {
		return Outcome{Request: object.RequestPush, Err: fmt.Errorf("failed to serialize payload: %w", err)}
	}
	if err := e.store.Set(ctx, obj.Key(), string(data)); err != nil {
		return Outcome{Request: object.RequestPush, Err: err}
	}
	return Outcome{Request: object.RequestPush, Success: true}
}

func (e *Executor) durablePull(ctx context.Context, obj *object.TrackedObject) Outcome {
	raw, ok, err := e.store.Get(ctx, obj.Key())
	if err != nil {
		return Outcome{Request: object.RequestPull, Err: err}
	}
	if !ok {
		// First run: seed the store with the current default value.
		e.logger.Debug("no stored value, bootstrapping with push", zap.String("key", obj.Key()))
		return e.durablePush(ctx, obj)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return Outcome{Request: object.RequestPull, Err: fmt.Errorf("failed to deserialize stored value: %w", err)}
	}
	obj.SetData(value)
	return Outcome{Request: object.RequestPull, Success: true}
}

func (e *Executor) customPush(ctx context.Context, obj *object.TrackedObject) Outcome {
	fn := obj.PushFunc()
	if fn == nil {
		e.logger.Warn("custom object has no push function, treating push as no-op",
			zap.String("key", obj.Key()))
		return Outcome{Request: object.RequestPush, Success: true}
	}
	if err := e.callPush(ctx, obj, fn); err != nil {
		return Outcome{Request: object.RequestPush, Err: err}
	}
	return Outcome{Request: object.RequestPush, Success: true}
}

func (e *Executor) customPull(ctx context.Context, obj *object.TrackedObject) Outcome {
	fn := obj.PullFunc()
	if fn == nil {
		e.logger.Warn("custom object has no pull function, treating pull as no-op",
			zap.String("key", obj.Key()))
		return Outcome{Request: object.RequestPull, Success: true}
	}

	value, err := e.callPull(ctx, obj, fn)
	if err != nil {
		return Outcome{Request: object.RequestPull, Err: err}
	}
	if emptyValue(value) {
		// No data yet: seed the target with the current default value.
		e.logger.Debug("custom pull returned no data, bootstrapping with push", zap.String("key", obj.Key()))
		return e.customPush(ctx, obj)
	}
	obj.SetData(value)
	return Outcome{Request: object.RequestPull, Success: true}
}

// callPush invokes the hook with panic isolation.
func (*Executor) callPush(ctx context.Context, obj *object.TrackedObject, fn object.PushFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("push hook panicked: %v", r)
		}
	}()
	return fn(ctx, obj)
}

// callPull invokes the hook with panic isolation.
func (*Executor) callPull(ctx context.Context, obj *object.TrackedObject, fn object.PullFunc) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("pull hook panicked: %v", r)
		}
	}()
	return fn(ctx, obj)
}

// reduce folds the outcome into object state and broadcasts it.
// properties and modifierID are the snapshots taken before the attempt;
// the event reports what the sync covered, not what accumulated since.
func (e *Executor) reduce(obj *object.TrackedObject, outcome Outcome, properties []string, modifierID string) {
	if outcome.Success {
		obj.SetStatus(object.Status{LastOutcome: object.OutcomeSuccess})
		obj.ClearPendingProperties()
	} else {
		syncErr := &validation.SyncError{Key: obj.Key(), Request: outcome.Request, Err: outcome.Err}
		obj.SetStatus(object.Status{LastOutcome: object.OutcomeFailure, LastError: syncErr})
		e.logger.Warn("sync failed",
			zap.String("key", obj.Key()),
			zap.String("request", string(outcome.Request)),
			zap.Error(outcome.Err))
	}
	obj.SetLastModifier("")

	e.invokeCallback(obj, outcome)

	if e.broker != nil {
		var eventErr error
		if !outcome.Success {
			eventErr = obj.Status().LastError
		}
		e.broker.Publish(events.Event{
			Key:        obj.Key(),
			Request:    outcome.Request,
			Properties: properties,
			Success:    outcome.Success,
			Err:        eventErr,
			ModifierID: modifierID,
		})
	}
}

func (e *Executor) invokeCallback(obj *object.TrackedObject, outcome Outcome) {
	var cb object.Callback
	if outcome.Success {
		cb = obj.OnSuccess()
	} else {
		cb = obj.OnError()
	}
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("sync callback panicked",
				zap.String("key", obj.Key()),
				zap.Any("panic", r))
		}
	}()
	cb(obj, outcome.Request)
}

// emptyValue reports whether a custom pull result counts as "no data
// yet": nil, a nil pointer, an empty string/map/slice, or a zero value.
func emptyValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return rv.IsZero()
	}
}
