package store

import (
	"sort"
	"sync"
	"time"

	"github.com/olastephen/video-audio-downloader/internal/task"
)

// Memory holds the live task table. Mutations go through Mutate so there is
// exactly one code path that touches a task; readers only ever see value
// copies.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]*task.Task)}
}

// Put registers a new task.
func (m *Memory) Put(t task.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := t
	m.tasks[t.ID] = &copied
}

// Mutate applies fn to the task under the lock and stamps UpdatedAt.
// Returns false when the task does not exist.
func (m *Memory) Mutate(id string, fn func(*task.Task)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return false
	}
	fn(t)
	t.UpdatedAt = time.Now()
	return true
}

// Get returns a point-in-time copy of the task.
func (m *Memory) Get(id string) (task.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return task.Task{}, false
	}
	return *t, true
}

// List returns copies of all tasks, newest first.
func (m *Memory) List() []task.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Counts returns how many tasks sit in each state.
func (m *Memory) Counts() map[task.State]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[task.State]int)
	for _, t := range m.tasks {
		counts[t.State]++
	}
	return counts
}

// DeleteOlderThan evicts terminal tasks whose last update is older than age.
// Active tasks are never evicted regardless of age.
func (m *Memory) DeleteOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, t := range m.tasks {
		if t.State.IsTerminal() && t.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tasks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}
