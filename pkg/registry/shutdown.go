package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aaronkwan/synced-object/pkg/object"
)

// Shutdown applies each pending object's unload policy and, when nothing
// vetoes, stops the scheduler:
//
//   - UnloadAllow: the pending sync is abandoned.
//   - UnloadFlush: the timer is cancelled and a best-effort push runs
//     immediately.
//   - UnloadBlock: shutdown is vetoed; Shutdown returns an error naming
//     every blocking key and leaves all timers armed.
func (r *Registry) Shutdown(ctx context.Context) error {
	pending := r.sched.PendingKeys()

	var blocked []string
	var flush []*object.TrackedObject
	for _, key := range pending {
		obj, ok := r.Get(key)
		if !ok {
			continue
		}
		switch obj.UnloadPolicy() {
		case object.UnloadAllow:
		case object.UnloadFlush:
			flush = append(flush, obj)
		case object.UnloadBlock:
			blocked = append(blocked, key)
		}
	}

	if len(blocked) > 0 {
		sort.Strings(blocked)
		r.logger.Warn("shutdown vetoed by pending syncs",
			zap.Strings("keys", blocked))
		return fmt.Errorf("shutdown blocked by pending syncs for keys: %s", strings.Join(blocked, ", "))
	}

	for _, obj := range flush {
		key := obj.Key()
		r.sched.Cancel(key)
		// Cancel only stops work that has not started; wait out any
		// execution already in flight so the forced push never overlaps
		// it.
		if err := r.sched.AwaitIdle(ctx, key); err != nil {
			r.logger.Warn("flush on shutdown abandoned",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		outcome := r.exec.Execute(ctx, obj, object.RequestPush)
		if !outcome.Success {
			r.logger.Warn("flush on shutdown failed",
				zap.String("key", key),
				zap.Error(outcome.Err))
		}
	}

	r.sched.Stop()
	return nil
}
