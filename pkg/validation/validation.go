// Package validation provides the synchronous precondition checks applied
// at the registry API boundary and the error taxonomy shared across the
// module: aggregated validation errors raised at call sites, and sync
// errors absorbed into object status.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/multierr"

	"github.com/aaronkwan/synced-object/pkg/object"
)

// Error aggregates every failed precondition check for one operation,
// tagged with the offending key and operation name. It is the only error
// kind surfaced as a synchronous failure at the API boundary.
type Error struct {
	Op  string
	Key string
	err error
}

// NewError builds an aggregated validation error from the non-nil entries
// of errs. It returns nil when every entry is nil.
func NewError(op, key string, errs ...error) error {
	combined := multierr.Combine(errs...)
	if combined == nil {
		return nil
	}
	return &Error{Op: op, Key: key, err: combined}
}

// Errorf builds a single-check validation error.
func Errorf(op, key, format string, args ...any) error {
	return &Error{Op: op, Key: key, err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Violations returns the individual failed checks.
func (e *Error) Violations() []error {
	return multierr.Errors(e.err)
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// SyncError wraps a failed pull or push attempt. It is never raised to the
// caller that signaled the modification; it travels through object status,
// the OnError callback and the notifier event.
type SyncError struct {
	Key     string
	Request object.Request
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Request, e.Key, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// CheckKey verifies the key is non-empty.
func CheckKey(key string) error {
	if key == "" {
		return errors.New("key must be non-empty")
	}
	return nil
}

// CheckMode verifies the mode is one of the recognized values.
func CheckMode(m object.Mode) error {
	if !m.Valid() {
		return fmt.Errorf("unrecognized mode %q", m)
	}
	return nil
}

// CheckDebounce verifies the coalescing window is non-negative.
func CheckDebounce(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("debounce interval must be non-negative, got %s", d)
	}
	return nil
}

// CheckUnloadPolicy verifies the policy is one of the recognized values.
// The empty policy passes; it is normalized to the default at construction.
func CheckUnloadPolicy(p object.UnloadPolicy) error {
	if p == "" {
		return nil
	}
	if !p.Valid() {
		return fmt.Errorf("unrecognized unload policy %q", p)
	}
	return nil
}

// CheckProperty verifies that a named property exists on the payload.
// Map payloads are checked by key, struct payloads by exported field name.
// Payloads without named properties fail the check.
func CheckProperty(data any, name string) error {
	if name == "" {
		return errors.New("property name must be non-empty")
	}
	if data == nil {
		return fmt.Errorf("property %q: payload is nil", name)
	}

	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Errorf("property %q: payload is nil", name)
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("property %q: payload map is not string-keyed", name)
		}
		if !v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key())).IsValid() {
			return fmt.Errorf("property %q not present on payload", name)
		}
		return nil
	case reflect.Struct:
		if _, ok := v.Type().FieldByName(name); !ok {
			return fmt.Errorf("property %q not present on payload", name)
		}
		return nil
	default:
		return fmt.Errorf("property %q: payload of type %T has no named properties", name, data)
	}
}
