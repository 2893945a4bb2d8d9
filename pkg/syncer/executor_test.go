package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronkwan/synced-object/pkg/backend"
	"github.com/aaronkwan/synced-object/pkg/events"
	"github.com/aaronkwan/synced-object/pkg/object"
	"github.com/aaronkwan/synced-object/pkg/validation"
)

// flakyStore fails the first n Set calls, then delegates.
type flakyStore struct {
	backend.Store

	mu       sync.Mutex
	failures int
	setCalls int
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.setCalls++
	fail := f.setCalls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("backend unavailable")
	}
	return f.Store.Set(ctx, key, value)
}

func TestExecute_DurablePushAndPull(t *testing.T) {
	t.Parallel()

	store := backend.NewMemoryStore()
	exec := New(store, nil)
	ctx := context.Background()

	writer := object.New("counter", object.ModeDurable, object.Options{
		DefaultValue: map[string]any{"value": float64(7)},
	})
	out := exec.Execute(ctx, writer, object.RequestPush)
	require.True(t, out.Success)
	assert.Equal(t, object.RequestPush, out.Request)

	raw, ok, err := store.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"value":7}`, raw)

	reader := object.New("counter", object.ModeDurable, object.Options{})
	out = exec.Execute(ctx, reader, object.RequestPull)
	require.True(t, out.Success)
	assert.Equal(t, object.RequestPull, out.Request)
	assert.Equal(t, map[string]any{"value": float64(7)}, reader.Data())
	assert.Equal(t, object.OutcomeSuccess, reader.Status().LastOutcome)
}

func TestExecute_DurablePullBootstrapsAbsentKey(t *testing.T) {
	t.Parallel()

	store := backend.NewMemoryStore()
	exec := New(store, nil)
	ctx := context.Background()

	obj := object.New("fresh", object.ModeDurable, object.Options{
		DefaultValue: map[string]any{"seed": true},
	})
	out := exec.Execute(ctx, obj, object.RequestPull)
	require.True(t, out.Success)
	// The fallback seeds the store, so the outcome reports a push.
	assert.Equal(t, object.RequestPush, out.Request)

	raw, ok, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"seed":true}`, raw)
	// The in-memory default survives the bootstrap untouched.
	assert.Equal(t, map[string]any{"seed": true}, obj.Data())
}

func TestExecute_FailureKeepsPendingProperties(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: backend.NewMemoryStore(), failures: 1}
	exec := New(store, nil)

	obj := object.New("counter", object.ModeDurable, object.Options{DefaultValue: map[string]any{}})
	obj.AddPendingProperties("value", "updatedAt")

	out := exec.Execute(context.Background(), obj, object.RequestPush)
	require.False(t, out.Success)

	status := obj.Status()
	assert.Equal(t, object.OutcomeFailure, status.LastOutcome)
	var syncErr *validation.SyncError
	require.ErrorAs(t, status.LastError, &syncErr)
	assert.Equal(t, "counter", syncErr.Key)
	assert.Equal(t, object.RequestPush, syncErr.Request)

	// Failed syncs keep the change log so a later attempt covers it.
	assert.Equal(t, []string{"value", "updatedAt"}, obj.PendingProperties())

	out = exec.Execute(context.Background(), obj, object.RequestPush)
	require.True(t, out.Success)
	assert.Empty(t, obj.PendingProperties())
	assert.Equal(t, object.OutcomeSuccess, obj.Status().LastOutcome)
}

func TestExecute_PushRetriesWithBackoff(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: backend.NewMemoryStore(), failures: 2}
	exec := New(store, nil, WithRetry(3), WithRetryInterval(time.Millisecond))

	obj := object.New("counter", object.ModeDurable, object.Options{DefaultValue: map[string]any{}})
	out := exec.Execute(context.Background(), obj, object.RequestPush)
	require.True(t, out.Success)
	assert.Equal(t, 3, store.setCalls)
}

func TestExecute_RetryExhaustionFails(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: backend.NewMemoryStore(), failures: 10}
	exec := New(store, nil, WithRetry(2), WithRetryInterval(time.Millisecond))

	obj := object.New("counter", object.ModeDurable, object.Options{DefaultValue: map[string]any{}})
	out := exec.Execute(context.Background(), obj, object.RequestPush)
	require.False(t, out.Success)
	assert.Equal(t, 2, store.setCalls)
	assert.Equal(t, object.OutcomeFailure, obj.Status().LastOutcome)
}

func TestExecute_CustomHooks(t *testing.T) {
	t.Parallel()

	var pushed any
	obj := object.New("session", object.ModeCustom, object.Options{
		DefaultValue: map[string]any{"token": "abc"},
		Pull: func(_ context.Context, _ *object.TrackedObject) (any, error) {
			return map[string]any{"token": "restored"}, nil
		},
		Push: func(_ context.Context, o *object.TrackedObject) error {
			pushed = o.Data()
			return nil
		},
	})

	exec := New(backend.NewMemoryStore(), nil)
	ctx := context.Background()

	out := exec.Execute(ctx, obj, object.RequestPull)
	require.True(t, out.Success)
	assert.Equal(t, map[string]any{"token": "restored"}, obj.Data())

	out = exec.Execute(ctx, obj, object.RequestPush)
	require.True(t, out.Success)
	assert.Equal(t, map[string]any{"token": "restored"}, pushed)
}

func TestExecute_CustomPullEmptyFallsBackToPush(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pulled any
	}{
		{name: "nil", pulled: nil},
		{name: "empty map", pulled: map[string]any{}},
		{name: "empty slice", pulled: []string{}},
		{name: "empty string", pulled: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pushCalled := false
			obj := object.New("session", object.ModeCustom, object.Options{
				DefaultValue: map[string]any{"fresh": true},
				Pull: func(_ context.Context, _ *object.TrackedObject) (any, error) {
					return tt.pulled, nil
				},
				Push: func(_ context.Context, _ *object.TrackedObject) error {
					pushCalled = true
					return nil
				},
			})

			exec := New(backend.NewMemoryStore(), nil)
			out := exec.Execute(context.Background(), obj, object.RequestPull)
			require.True(t, out.Success)
			assert.Equal(t, object.RequestPush, out.Request)
			assert.True(t, pushCalled)
			assert.Equal(t, map[string]any{"fresh": true}, obj.Data())
		})
	}
}

func TestExecute_CustomHookPanicBecomesFailure(t *testing.T) {
	t.Parallel()

	obj := object.New("session", object.ModeCustom, object.Options{
		Push: func(_ context.Context, _ *object.TrackedObject) error {
			panic("boom")
		},
	})

	exec := New(backend.NewMemoryStore(), nil)
	var out Outcome
	assert.NotPanics(t, func() {
		out = exec.Execute(context.Background(), obj, object.RequestPush)
	})
	require.False(t, out.Success)
	assert.Contains(t, out.Err.Error(), "panicked")
	assert.Equal(t, object.OutcomeFailure, obj.Status().LastOutcome)
}

func TestExecute_CustomMissingHooksNoOp(t *testing.T) {
	t.Parallel()

	obj := object.New("session", object.ModeCustom, object.Options{DefaultValue: "keep"})
	exec := New(backend.NewMemoryStore(), nil)
	ctx := context.Background()

	out := exec.Execute(ctx, obj, object.RequestPull)
	require.True(t, out.Success)
	assert.Equal(t, "keep", obj.Data())

	out = exec.Execute(ctx, obj, object.RequestPush)
	require.True(t, out.Success)
}

func TestExecute_ModeNoneSucceedsWithoutIO(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: backend.NewMemoryStore(), failures: 100}
	exec := New(store, nil)

	obj := object.New("local", object.ModeNone, object.Options{DefaultValue: 1})
	obj.AddPendingProperties("value")

	out := exec.Execute(context.Background(), obj, object.RequestPush)
	require.True(t, out.Success)
	assert.Zero(t, store.setCalls)
	assert.Empty(t, obj.PendingProperties())
}

func TestExecute_Callbacks(t *testing.T) {
	t.Parallel()

	var gotReq object.Request
	successObj := object.New("ok", object.ModeDurable, object.Options{
		DefaultValue: map[string]any{},
		OnSuccess: func(_ *object.TrackedObject, req object.Request) {
			gotReq = req
		},
		OnError: func(_ *object.TrackedObject, _ object.Request) {
			t.Error("error callback fired on success")
		},
	})

	exec := New(backend.NewMemoryStore(), nil)
	exec.Execute(context.Background(), successObj, object.RequestPush)
	assert.Equal(t, object.RequestPush, gotReq)

	errCalled := false
	failObj := object.New("bad", object.ModeDurable, object.Options{
		DefaultValue: func() {}, // not JSON-serializable
		OnError: func(_ *object.TrackedObject, _ object.Request) {
			errCalled = true
		},
	})
	out := exec.Execute(context.Background(), failObj, object.RequestPush)
	require.False(t, out.Success)
	assert.True(t, errCalled)
}

func TestExecute_CallbackPanicIsIsolated(t *testing.T) {
	t.Parallel()

	obj := object.New("ok", object.ModeDurable, object.Options{
		DefaultValue: map[string]any{},
		OnSuccess: func(_ *object.TrackedObject, _ object.Request) {
			panic("callback bug")
		},
	})

	exec := New(backend.NewMemoryStore(), nil)
	assert.NotPanics(t, func() {
		out := exec.Execute(context.Background(), obj, object.RequestPush)
		assert.True(t, out.Success)
	})
}

func TestExecute_PublishesOutcomeEvent(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker()
	received := make(chan events.Event, 1)
	broker.Subscribe("counter", events.Interest{}, func(ev events.Event) {
		received <- ev
	})

	exec := New(backend.NewMemoryStore(), broker)
	obj := object.New("counter", object.ModeDurable, object.Options{DefaultValue: map[string]any{}})
	obj.AddPendingProperties("value")
	obj.SetLastModifier("writer-1")

	exec.Execute(context.Background(), obj, object.RequestPush)

	select {
	case ev := <-received:
		assert.Equal(t, "counter", ev.Key)
		assert.Equal(t, object.RequestPush, ev.Request)
		assert.True(t, ev.Success)
		assert.Equal(t, []string{"value"}, ev.Properties)
		assert.Equal(t, "writer-1", ev.ModifierID)
	case <-time.After(2 * time.Second):
		t.Fatal("outcome event never published")
	}

	// The modifier tag resets once the sync resolves.
	assert.Equal(t, "", obj.LastModifier())
}

func TestExecute_FailureEventCarriesSyncError(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker()
	received := make(chan events.Event, 1)
	broker.Subscribe("counter", events.Interest{}, func(ev events.Event) {
		received <- ev
	})

	store := &flakyStore{Store: backend.NewMemoryStore(), failures: 1}
	exec := New(store, broker)
	obj := object.New("counter", object.ModeDurable, object.Options{DefaultValue: map[string]any{}})

	exec.Execute(context.Background(), obj, object.RequestPush)

	select {
	case ev := <-received:
		assert.False(t, ev.Success)
		var syncErr *validation.SyncError
		require.ErrorAs(t, ev.Err, &syncErr)
	case <-time.After(2 * time.Second):
		t.Fatal("failure event never published")
	}
}

func TestEmptyValue(t *testing.T) {
	t.Parallel()

	var nilPtr *int
	filled := 1

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "nil", value: nil, want: true},
		{name: "nil pointer", value: nilPtr, want: true},
		{name: "empty string", value: "", want: true},
		{name: "empty map", value: map[string]any{}, want: true},
		{name: "empty slice", value: []int{}, want: true},
		{name: "zero int", value: 0, want: true},
		{name: "non-empty string", value: "x", want: false},
		{name: "non-empty map", value: map[string]any{"k": 1}, want: false},
		{name: "pointer to value", value: &filled, want: false},
		{name: "non-zero int", value: 42, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, emptyValue(tt.value))
		})
	}
}
