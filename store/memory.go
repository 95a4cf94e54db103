package store

import (
	"context"
	"sync"
	"time"

	"github.com/tasklinehq/taskline"
)

// Memory is a thread-safe in-memory TaskStore. Data lives for the process
// lifetime unless a TTL or entry cap is configured.
type Memory struct {
	mu         sync.RWMutex
	tasks      map[string]*memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	task    *taskline.Task
	savedAt time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithTTL evicts entries not written within d. Zero disables expiry.
func WithTTL(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.ttl = d
	}
}

// WithMaxEntries caps the number of stored tasks; the least recently
// written entries are evicted first. Zero means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) {
		m.maxEntries = n
	}
}

// NewMemory creates a new in-memory task store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		tasks: make(map[string]*memoryEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ TaskStore = (*Memory)(nil)

// Get returns a deep copy of the stored snapshot.
func (m *Memory) Get(_ context.Context, taskID string) (*taskline.Task, error) {
	m.mu.RLock()
	entry, ok := m.tasks[taskID]
	m.mu.RUnlock()

	if !ok || m.expired(entry) {
		return nil, ErrNotFound
	}
	return entry.task.Clone(), nil
}

// Save upserts a snapshot under the revision rules of the TaskStore
// contract. The stored copy is detached from the caller's task.
func (m *Memory) Save(_ context.Context, task *taskline.Task) error {
	if task == nil || task.ID == "" {
		return taskline.NewValidationError("store: task id required", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.tasks[task.ID]; ok && !m.expired(entry) {
		switch {
		case task.Revision == entry.task.Revision:
			// Duplicate delivery of an already committed write.
			return nil
		case task.Revision != entry.task.Revision+1:
			return ErrVersionConflict
		}
	}

	m.tasks[task.ID] = &memoryEntry{task: task.Clone(), savedAt: m.now()}
	m.evictLocked()
	return nil
}

// FindByContext returns deep copies of all live tasks in the context.
func (m *Memory) FindByContext(_ context.Context, contextID string) ([]*taskline.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []*taskline.Task
	for _, entry := range m.tasks {
		if m.expired(entry) {
			continue
		}
		if entry.task.ContextID == contextID {
			tasks = append(tasks, entry.task.Clone())
		}
	}
	return tasks, nil
}

// Len returns the number of stored tasks, counting expired entries not yet
// swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

func (m *Memory) expired(entry *memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(entry.savedAt) > m.ttl
}

// evictLocked drops expired entries and, if still over capacity, the least
// recently written ones. Caller holds the write lock.
func (m *Memory) evictLocked() {
	if m.ttl > 0 {
		for id, entry := range m.tasks {
			if m.expired(entry) {
				delete(m.tasks, id)
			}
		}
	}

	if m.maxEntries <= 0 {
		return
	}
	for len(m.tasks) > m.maxEntries {
		var oldestID string
		var oldest time.Time
		for id, entry := range m.tasks {
			if oldestID == "" || entry.savedAt.Before(oldest) {
				oldestID = id
				oldest = entry.savedAt
			}
		}
		delete(m.tasks, oldestID)
	}
}
