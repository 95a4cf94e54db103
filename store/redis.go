package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tasklinehq/taskline"
)

// Redis is a TaskStore backed by a Redis instance. Snapshots are stored as
// JSON under a configurable key prefix with an optional TTL, and a per-context
// set serves as the secondary index for FindByContext.
//
// The revision check and the write happen atomically in a Lua script, so
// concurrent writers racing on the same task id resolve to exactly one
// committed snapshot per revision.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithKeyPrefix sets the key prefix (default "taskline:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithRedisTTL sets the expiry applied to task keys on every write.
// Zero keeps snapshots until deleted externally.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// NewRedis creates a Redis-backed task store using the given client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "taskline:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ TaskStore = (*Redis)(nil)

// saveScript applies the revision rules atomically.
//
// KEYS[1] task snapshot, KEYS[2] revision counter, KEYS[3] context index.
// ARGV[1] revision, ARGV[2] payload, ARGV[3] ttl seconds, ARGV[4] task id.
// Returns 1 applied, 0 idempotent no-op, -1 conflict. An absent counter
// accepts any revision, matching the in-memory store.
var saveScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur then
  local rev = tonumber(cur)
  local new = tonumber(ARGV[1])
  if new == rev then
    return 0
  end
  if new ~= rev + 1 then
    return -1
  end
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[4])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
  redis.call('EXPIRE', KEYS[2], ttl)
  redis.call('EXPIRE', KEYS[3], ttl)
end
return 1
`)

// Get returns the snapshot stored under the task id.
func (r *Redis) Get(ctx context.Context, taskID string) (*taskline.Task, error) {
	data, err := r.client.Get(ctx, r.taskKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, taskline.NewTransientError("store: redis get failed", err)
	}

	var task taskline.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("store: decoding task %s: %w", taskID, err)
	}
	return &task, nil
}

// Save upserts a snapshot under the revision rules of the TaskStore
// contract.
func (r *Redis) Save(ctx context.Context, task *taskline.Task) error {
	if task == nil || task.ID == "" {
		return taskline.NewValidationError("store: task id required", nil)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("store: encoding task %s: %w", task.ID, err)
	}

	keys := []string{
		r.taskKey(task.ID),
		r.revKey(task.ID),
		r.contextKey(task.ContextID),
	}
	args := []any{
		strconv.FormatInt(task.Revision, 10),
		payload,
		strconv.Itoa(int(r.ttl / time.Second)),
		task.ID,
	}

	result, err := saveScript.Run(ctx, r.client, keys, args...).Int64()
	if err != nil {
		return taskline.NewTransientError("store: redis save failed", err)
	}
	if result < 0 {
		return ErrVersionConflict
	}
	return nil
}

// FindByContext resolves the context index set and fetches each live task.
// Ids whose snapshots have expired are pruned from the index as they are
// encountered.
func (r *Redis) FindByContext(ctx context.Context, contextID string) ([]*taskline.Task, error) {
	ids, err := r.client.SMembers(ctx, r.contextKey(contextID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, taskline.NewTransientError("store: redis context lookup failed", err)
	}

	var tasks []*taskline.Task
	for _, id := range ids {
		task, err := r.Get(ctx, id)
		if err == ErrNotFound {
			r.client.SRem(ctx, r.contextKey(contextID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *Redis) taskKey(taskID string) string {
	return r.prefix + "task:" + taskID
}

func (r *Redis) revKey(taskID string) string {
	return r.prefix + "task:" + taskID + ":rev"
}

func (r *Redis) contextKey(contextID string) string {
	return r.prefix + "ctx:" + contextID
}
