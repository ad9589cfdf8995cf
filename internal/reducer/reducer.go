// Package reducer folds the upstream WatchUpdates delta stream into a
// consolestate.ConsoleState and publishes each updated snapshot, per spec
// section 4.2.
package reducer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/davidpdrsn/console-web/internal/broadcast"
	"github.com/davidpdrsn/console-web/internal/consolestate"
	"github.com/davidpdrsn/console-web/internal/instrumentpb"
	"github.com/davidpdrsn/console-web/internal/metrics"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// GracePeriod is how long a dropped task or resource is retained before
// being reaped (invariant I2).
const GracePeriod = 5 * time.Second

// UpdateStream is the subset of the streaming RPC client the reducer
// depends on. instrumentpb.Instrument_WatchUpdatesClient satisfies it.
type UpdateStream interface {
	Recv() (*instrumentpb.Update, error)
}

// ErrMissingSubUpdate would be returned if an Update lacked task_update or
// resource_update under the strict reading of spec section 4.2. This
// implementation takes the permissive reading instead (see DESIGN.md): a
// missing sub-update is treated as empty, not as a conversion error. The
// sentinel only names the rejected alternative; nothing returns it.
var ErrMissingSubUpdate = errors.New("reducer: missing task_update or resource_update")

// Reducer owns one upstream subscription's working state exclusively and
// publishes immutable snapshots of it.
type Reducer struct {
	addr        string
	mu          sync.Mutex
	state       *consolestate.ConsoleState
	broadcaster *broadcast.Broadcaster[*consolestate.ConsoleState]
	dropped     *gocache.Cache
	log         *logrus.Entry
}

// New creates a reducer for addr, publishing through broadcaster. The
// broadcaster must already be seeded with an empty ConsoleState.
func New(addr string, broadcaster *broadcast.Broadcaster[*consolestate.ConsoleState]) *Reducer {
	r := &Reducer{
		addr:        addr,
		state:       consolestate.New(),
		broadcaster: broadcaster,
		log:         logrus.WithField("addr", addr),
	}

	// The janitor is a background safety net: it reaps a dropped entity
	// purely on elapsed time even if no further delta ever arrives to
	// trigger the per-step reap scan that applyDelta already performs.
	r.dropped = gocache.New(GracePeriod, GracePeriod/2)
	r.dropped.OnEvicted(func(_ string, _ interface{}) {
		r.mu.Lock()
		now := time.Now()
		r.reapLocked(now)
		err := r.publishLocked()
		r.mu.Unlock()
		if err != nil {
			r.log.WithError(err).Debug("background reap publish failed")
		}
	})

	return r
}

// Run consumes stream until it ends, errors, a delta fails to convert, or
// publishing fails, applying and publishing one snapshot per delta. It
// always returns a non-nil error describing why it stopped, including a
// clean end-of-stream.
func (r *Reducer) Run(ctx context.Context, stream UpdateStream) error {
	for {
		select {
		case <-ctx.Done():
			r.terminated("context-done")
			return ctx.Err()
		default:
		}

		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.log.Debug("watch stream ended")
				r.terminated("stream-eof")
				return io.EOF
			}
			r.log.WithError(err).Warn("watch stream error")
			r.terminated("stream-error")
			return fmt.Errorf("stream error: %w", err)
		}

		if err := r.applyDelta(msg); err != nil {
			r.log.WithError(err).Warn("delta conversion failed, terminating reducer")
			r.terminated("delta-conversion")
			return fmt.Errorf("delta conversion: %w", err)
		}

		metrics.ReducerSteps.WithLabelValues(r.addr).Inc()

		if err := r.publish(); err != nil {
			r.log.WithError(err).Debug("publish failed, no readers remain")
			r.terminated("publish-failure")
			return err
		}
	}
}

func (r *Reducer) terminated(reason string) {
	metrics.ReducerTerminations.WithLabelValues(r.addr, reason).Inc()
}

// applyDelta performs one reduce step, in a fixed order: metadata -> tasks
// -> task stats -> resources -> resource stats -> task target resolution ->
// resource target resolution -> reap.
func (r *Reducer) applyDelta(msg *instrumentpb.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, wireMeta := range msg.NewMetadata {
		meta, err := consolestate.MetadataFromWire(wireMeta)
		if err != nil {
			return err
		}
		r.state.Metadata[meta.ID] = meta
	}

	// Resolved Open Question: a missing task_update/resource_update is
	// treated as an empty one, not a conversion error.
	if msg.TaskUpdate != nil {
		if err := r.applyTaskUpdate(msg.TaskUpdate); err != nil {
			return err
		}
	}

	if msg.ResourceUpdate != nil {
		if err := r.applyResourceUpdate(msg.ResourceUpdate); err != nil {
			return err
		}
	}

	// Target resolution runs on every step regardless of which
	// sub-updates this delta carried: a metadata-only delta must still
	// resolve the target of a task/resource created on an earlier step
	// (invariant I1, scenario 3).
	r.resolveTaskTargets()
	r.resolveResourceTargets()

	r.reapLocked(time.Now())
	return nil
}

func (r *Reducer) applyTaskUpdate(update *instrumentpb.TaskUpdate) error {
	for _, wireTask := range update.NewTasks {
		task, err := consolestate.TaskFromWire(wireTask)
		if err != nil {
			return err
		}
		r.state.Tasks.Set(task.ID, task)
	}

	for rawID, wireStats := range update.StatsUpdate {
		id := consolestate.TaskId(rawID)
		existing, ok := r.state.Tasks.Get(id)
		if !ok {
			// P4: a stats_update for an unknown id is a no-op.
			continue
		}

		stats, err := consolestate.TaskStatsFromWire(wireStats)
		if err != nil {
			return err
		}

		updated := *existing
		updated.Stats = stats
		r.state.Tasks.Set(id, &updated)

		if stats.DroppedAt != nil {
			r.dropped.Set(taskCacheKey(id), struct{}{}, GracePeriod)
		}
	}

	return nil
}

func (r *Reducer) resolveTaskTargets() {
	r.state.Tasks.Range(func(id consolestate.TaskId, task *consolestate.Task) bool {
		meta, ok := r.state.Metadata[task.MetadataID]
		if !ok {
			return true
		}
		updated := *task
		target := meta.Target
		updated.Target = &target
		r.state.Tasks.Set(id, &updated)
		return true
	})
}

func (r *Reducer) applyResourceUpdate(update *instrumentpb.ResourceUpdate) error {
	for _, wireResource := range update.NewResources {
		resource, err := consolestate.ResourceFromWire(wireResource)
		if err != nil {
			return err
		}
		r.state.Resources.Set(resource.ID, resource)
	}

	for rawID, wireStats := range update.StatsUpdate {
		id := consolestate.ResourceId(rawID)
		existing, ok := r.state.Resources.Get(id)
		if !ok {
			continue
		}

		stats, err := consolestate.ResourceStatsFromWire(wireStats)
		if err != nil {
			return err
		}

		updated := *existing
		updated.Stats = stats
		r.state.Resources.Set(id, &updated)

		if stats.DroppedAt != nil {
			r.dropped.Set(resourceCacheKey(id), struct{}{}, GracePeriod)
		}
	}

	return nil
}

func (r *Reducer) resolveResourceTargets() {
	r.state.Resources.Range(func(id consolestate.ResourceId, resource *consolestate.Resource) bool {
		meta, ok := r.state.Metadata[resource.MetadataID]
		if !ok {
			return true
		}
		updated := *resource
		target := meta.Target
		updated.Target = &target
		r.state.Resources.Set(id, &updated)
		return true
	})
}

// reapLocked removes every task and resource whose stats.dropped_at is set
// and at least GracePeriod old, as of now. Callers must hold r.mu. Their
// r.dropped entries are left to expire: go-cache's Delete runs the
// OnEvicted callback, which takes r.mu.
func (r *Reducer) reapLocked(now time.Time) {
	var droppedTasks []consolestate.TaskId
	r.state.Tasks.Range(func(id consolestate.TaskId, task *consolestate.Task) bool {
		if task.Stats != nil && task.Stats.DroppedAt != nil && now.Sub(*task.Stats.DroppedAt) >= GracePeriod {
			droppedTasks = append(droppedTasks, id)
		}
		return true
	})
	for _, id := range droppedTasks {
		r.state.Tasks.Delete(id)
	}
	if len(droppedTasks) > 0 {
		metrics.ReapedEntities.WithLabelValues(r.addr, "task").Add(float64(len(droppedTasks)))
	}

	var droppedResources []consolestate.ResourceId
	r.state.Resources.Range(func(id consolestate.ResourceId, resource *consolestate.Resource) bool {
		if resource.Stats != nil && resource.Stats.DroppedAt != nil && now.Sub(*resource.Stats.DroppedAt) >= GracePeriod {
			droppedResources = append(droppedResources, id)
		}
		return true
	})
	for _, id := range droppedResources {
		r.state.Resources.Delete(id)
	}
	if len(droppedResources) > 0 {
		metrics.ReapedEntities.WithLabelValues(r.addr, "resource").Add(float64(len(droppedResources)))
	}
}

func (r *Reducer) publish() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publishLocked()
}

func (r *Reducer) publishLocked() error {
	return r.broadcaster.Publish(r.state.Clone())
}

func taskCacheKey(id consolestate.TaskId) string         { return "task:" + id.String() }
func resourceCacheKey(id consolestate.ResourceId) string { return "resource:" + id.String() }
