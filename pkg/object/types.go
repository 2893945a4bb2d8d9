// Package object defines the tracked-object entity model: the unit of
// synchronized state, its persistence mode, unload policy and sync status.
package object

import (
	"context"
	"time"
)

// Mode governs which sync path applies to a tracked object.
type Mode string

const (
	// ModeNone never pulls from or pushes to a backing store.
	ModeNone Mode = "none"

	// ModeDurable reads and writes an external key-value store under the
	// object's key.
	ModeDurable Mode = "durable"

	// ModeCustom invokes caller-supplied pull/push functions.
	ModeCustom Mode = "custom"
)

// Valid reports whether the mode is one of the recognized values.
func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeDurable, ModeCustom:
		return true
	}
	return false
}

// UnloadPolicy describes the behavior when the host process is about to
// terminate while a sync is still pending for the object.
type UnloadPolicy string

const (
	// UnloadAllow lets shutdown proceed unconditionally.
	UnloadAllow UnloadPolicy = "allow"

	// UnloadFlush cancels the pending timer and forces a best-effort push.
	UnloadFlush UnloadPolicy = "flush"

	// UnloadBlock vetoes shutdown and surfaces a warning.
	UnloadBlock UnloadPolicy = "block"
)

// Valid reports whether the policy is one of the recognized values.
func (p UnloadPolicy) Valid() bool {
	switch p {
	case UnloadAllow, UnloadFlush, UnloadBlock:
		return true
	}
	return false
}

// Request identifies the kind of state transition an event or sync
// operation describes.
type Request string

const (
	// RequestModify signals that the caller mutated the payload.
	RequestModify Request = "modify"

	// RequestPull reads the payload from the backing store.
	RequestPull Request = "pull"

	// RequestPush writes the payload to the backing store.
	RequestPush Request = "push"

	// RequestDelete is the terminal notification after registry removal.
	RequestDelete Request = "delete"
)

// Outcome classifies the result of the most recent sync attempt.
type Outcome string

const (
	// OutcomeUnknown means no sync has been attempted yet.
	OutcomeUnknown Outcome = "unknown"

	// OutcomePending means a sync is scheduled or in flight.
	OutcomePending Outcome = "pending"

	// OutcomeSuccess means the last sync attempt completed successfully.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure means the last sync attempt failed.
	OutcomeFailure Outcome = "failure"
)

// Status is the observable result of the most recent sync attempt.
type Status struct {
	LastOutcome Outcome
	LastError   error
}

// PullFunc is a caller-supplied read hook for ModeCustom objects. A nil
// result (or an empty value) means "no data yet" and triggers a bootstrap
// push of the current payload.
type PullFunc func(ctx context.Context, obj *TrackedObject) (any, error)

// PushFunc is a caller-supplied write hook for ModeCustom objects. Any
// returned error is captured as a sync failure, never propagated to the
// caller that signaled the modification.
type PushFunc func(ctx context.Context, obj *TrackedObject) error

// Callback is invoked after a sync attempt resolves.
type Callback func(obj *TrackedObject, req Request)

// Options carries the mutable construction parameters for a tracked object.
type Options struct {
	DefaultValue     any
	DebounceInterval time.Duration
	UnloadPolicy     UnloadPolicy
	StrictValidation *bool
	Pull             PullFunc
	Push             PushFunc
	OnSuccess        Callback
	OnError          Callback
}
