// Package events implements the notifier: typed broadcast payloads
// describing state transitions, and a broker owning an explicit subscriber
// list with per-subscriber interest filtering.
package events

import (
	"slices"

	"github.com/aaronkwan/synced-object/pkg/object"
)

// Event is the broadcast payload describing one modify/pull/push/delete
// occurrence for a tracked object.
type Event struct {
	// Key identifies the tracked object the event concerns.
	Key string

	// Request is the kind of transition: modify, pull, push or delete.
	Request object.Request

	// Properties is the pending-property snapshot at the time of the
	// event. For push/pull events it names the properties the sync covered.
	Properties []string

	// Success reports whether the operation succeeded. Modify and delete
	// events always carry true.
	Success bool

	// Err carries the failure when Success is false.
	Err error

	// ModifierID is the opaque tag of whoever triggered the in-flight
	// modification, empty when none was recorded.
	ModifierID string
}

// Interest selects which events a subscriber wants delivered.
// The zero value matches every event for the subscribed key.
type Interest struct {
	// Requests filters by event kind. Empty matches all kinds.
	Requests []object.Request

	// ExternalOnly drops events whose ModifierID equals OwnerID, so a
	// subscriber can ignore changes it triggered itself.
	ExternalOnly bool

	// OwnerID is the subscriber's own modifier tag, used with ExternalOnly.
	OwnerID string

	// Properties matches events whose property snapshot names at least one
	// of the listed properties. Empty (with NoProperties unset) matches
	// any property set.
	Properties []string

	// NoProperties matches only events with an empty property snapshot.
	NoProperties bool

	// FailuresOnly drops successful events.
	FailuresOnly bool
}

// Matches reports whether the event passes the interest filter.
func (i Interest) Matches(e Event) bool {
	if len(i.Requests) > 0 && !slices.Contains(i.Requests, e.Request) {
		return false
	}
	if i.ExternalOnly && e.ModifierID != "" && e.ModifierID == i.OwnerID {
		return false
	}
	if i.FailuresOnly && e.Success {
		return false
	}
	if i.NoProperties {
		return len(e.Properties) == 0
	}
	if len(i.Properties) > 0 {
		for _, want := range i.Properties {
			if slices.Contains(e.Properties, want) {
				return true
			}
		}
		return false
	}
	return true
}
