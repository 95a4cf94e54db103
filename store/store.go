// Package store provides task snapshot persistence.
//
// Save is an upsert keyed on task id guarded by the task's revision: writing
// the revision already stored is an idempotent no-op, writing the next
// revision applies, and anything else is reported as [ErrVersionConflict],
// never merged. Reads return the most recently committed snapshot; a Get
// after a successful Save in the same process always observes that write.
//
// Two backends ship with the package: [Memory] for process-lifetime storage
// and [Redis] for distributed storage with a configurable key prefix and TTL.
// Expiry and eviction live here, not in the adapter.
package store

import (
	"context"
	"errors"

	"github.com/tasklinehq/taskline"
)

// ErrNotFound is returned by Get when no task exists for the id.
var ErrNotFound = errors.New("store: task not found")

// ErrVersionConflict is returned by Save when the task's revision is stale
// relative to the stored snapshot.
var ErrVersionConflict = errors.New("store: task revision conflict")

// TaskStore persists task snapshots keyed by task id.
// Implementations must be safe for concurrent use; concurrent saves for
// different task ids never interfere.
type TaskStore interface {
	// Get returns the latest committed snapshot for the task id, or
	// ErrNotFound.
	Get(ctx context.Context, taskID string) (*taskline.Task, error)

	// Save upserts a task snapshot. The write applies only when
	// task.Revision is exactly one ahead of the stored revision (or the
	// task is new); an equal revision is a no-op, anything else returns
	// ErrVersionConflict.
	Save(ctx context.Context, task *taskline.Task) error

	// FindByContext returns all tasks grouped under a context id.
	FindByContext(ctx context.Context, contextID string) ([]*taskline.Task, error)
}
