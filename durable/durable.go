// Package durable makes steps of a workflow safe to replay.
//
// A [Runner] is scoped to one workflow run. [Step] executes a function once,
// caches its JSON-encoded result under the run id plus a stable step name,
// and on any replay of the same run returns the cached result without
// invoking the function again. That cache is the durability guarantee: a
// dice roll, an API charge, or any other side effect happens at most once
// per run even when the run is interrupted and retried.
//
// Transient failures inside a step are retried with bounded exponential
// backoff before the step is considered failed; permanent errors propagate
// immediately.
package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/tasklinehq/taskline/retry"
)

// Cache is the persistence contract for step results. Both keys and values
// survive the process when backed by an external store, which is what makes
// replay after a crash possible.
type Cache interface {
	// Get retrieves a cached value. Returns nil, false, nil if not present.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores a value by key.
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// Runner scopes durable steps to one workflow run. Step keys combine the
// run id with a per-runner sequence counter and the step name, so the same
// code path replayed in the same run resolves to the same key.
//
// A Runner is not safe for concurrent use; each execution owns its own.
type Runner struct {
	runID string
	cache Cache
	retry retry.Config

	mu   sync.Mutex
	next int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRetryConfig overrides the retry policy (default: 5 attempts,
// exponential backoff).
func WithRetryConfig(cfg retry.Config) RunnerOption {
	return func(r *Runner) {
		r.retry = cfg
	}
}

// NewRunner creates a Runner for the given run id backed by the cache.
func NewRunner(runID string, cache Cache, opts ...RunnerOption) *Runner {
	r := &Runner{
		runID: runID,
		cache: cache,
		retry: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID returns the workflow run id this runner is scoped to.
func (r *Runner) RunID() string {
	return r.runID
}

// stepKey reserves the next step index and derives the cache key.
func (r *Runner) stepKey(name string) string {
	r.mu.Lock()
	idx := r.next
	r.next++
	r.mu.Unlock()
	return r.runID + "/" + strconv.Itoa(idx) + ":" + name
}

// Step executes fn at most once per run. On first invocation the result is
// cached under the step's key; a replay with the same key returns the cached
// result without running fn. Transient errors from fn are retried per the
// runner's policy.
func Step[T any](ctx context.Context, r *Runner, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	key := r.stepKey(name)

	cached, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("durable: reading step %q: %w", name, err)
	}
	if ok {
		var result T
		if err := json.Unmarshal(cached, &result); err != nil {
			return zero, fmt.Errorf("durable: decoding cached step %q: %w", name, err)
		}
		return result, nil
	}

	result, err := retry.Do(ctx, r.retry, func() (T, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("durable: encoding step %q: %w", name, err)
	}
	if err := r.cache.Set(ctx, key, encoded); err != nil {
		return zero, fmt.Errorf("durable: caching step %q: %w", name, err)
	}
	return result, nil
}
