package registry

import (
	"context"
	"encoding/json"
	"regexp"

	"go.uber.org/zap"

	"github.com/aaronkwan/synced-object/pkg/validation"
)

// AffectedPolicy decides what happens to in-memory tracked objects whose
// key matched a Remove pattern.
type AffectedPolicy string

const (
	// AffectedIgnore leaves matching tracked objects alone.
	AffectedIgnore AffectedPolicy = "ignore"

	// AffectedDecouple demotes matching tracked objects to ModeNone.
	AffectedDecouple AffectedPolicy = "decouple"

	// AffectedDelete removes matching tracked objects from the registry.
	AffectedDelete AffectedPolicy = "delete"
)

// Valid reports whether the policy is one of the recognized values.
func (p AffectedPolicy) Valid() bool {
	switch p {
	case AffectedIgnore, AffectedDecouple, AffectedDelete:
		return true
	}
	return false
}

// FindKeys returns the backend keys matching pattern. A key matches when
// it equals the pattern exactly or when the pattern, compiled as an
// anchored regular expression, matches it. Patterns that are not valid
// regular expressions degrade to exact matching.
func (r *Registry) FindKeys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := r.store.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	return matchKeys(keys, pattern), nil
}

// FindValues returns the deserialized backend values for keys matching
// pattern. Entries whose stored value does not deserialize are returned
// as their raw string.
func (r *Registry) FindValues(ctx context.Context, pattern string) (map[string]any, error) {
	matched, err := r.FindKeys(ctx, pattern)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(matched))
	for _, key := range matched {
		raw, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			values[key] = raw
			continue
		}
		values[key] = value
	}
	return values, nil
}

// Remove deletes the backend entries matching pattern and applies policy
// to any tracked object whose key matched: left alone, decoupled to
// ModeNone, or deleted from the registry.
func (r *Registry) Remove(ctx context.Context, pattern string, policy AffectedPolicy) error {
	if !policy.Valid() {
		return validation.Errorf("remove", pattern, "unrecognized affected policy %q", policy)
	}

	matched, err := r.FindKeys(ctx, pattern)
	if err != nil {
		return err
	}

	for _, key := range matched {
		if err := r.store.Remove(ctx, key); err != nil {
			return err
		}

		obj, tracked := r.Get(key)
		if !tracked {
			continue
		}
		switch policy {
		case AffectedIgnore:
		case AffectedDecouple:
			obj.Decouple()
			r.logger.Debug("tracked object decoupled from storage", zap.String("key", key))
		case AffectedDelete:
			if err := r.Delete(key); err != nil {
				return err
			}
		}
	}
	return nil
}

// matchKeys filters keys by exact equality with pattern or by anchored
// regexp match when the pattern compiles.
func matchKeys(keys []string, pattern string) []string {
	re, reErr := regexp.Compile("^(?:" + pattern + ")$")

	matched := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == pattern || (reErr == nil && re.MatchString(key)) {
			matched = append(matched, key)
		}
	}
	return matched
}
