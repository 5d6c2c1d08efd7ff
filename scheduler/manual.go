package scheduler

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Manual is a Scheduler whose tasks only run when fired explicitly.
// Tests use it to drive timers deterministically.
type Manual struct {
	mu      sync.Mutex
	tasks   map[*manualTask]struct{}
	stopped bool
}

// NewManual creates an empty manual scheduler
func NewManual() *Manual {
	return &Manual{tasks: make(map[*manualTask]struct{})}
}

type manualTask struct {
	owner     *Manual
	name      string
	fn        func()
	recurring bool
	delay     time.Duration
	period    time.Duration
}

func (t *manualTask) Stop() {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	delete(t.owner.tasks, t)
}

func (m *Manual) add(task *manualTask) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.tasks[task] = struct{}{}
	}
	return task
}

func (m *Manual) Every(name string, delay, period time.Duration, fn func()) Task {
	return m.add(&manualTask{owner: m, name: name, fn: fn, recurring: true, delay: delay, period: period})
}

func (m *Manual) After(name string, delay time.Duration, fn func()) Task {
	return m.add(&manualTask{owner: m, name: name, fn: fn, delay: delay})
}

func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.tasks = make(map[*manualTask]struct{})
}

// Fire runs every live task with the given name once. One-shot tasks are
// removed before they run. It returns the number of tasks run.
func (m *Manual) Fire(name string) int {
	return m.fire(func(task *manualTask) bool { return task.name == name })
}

// FirePrefix runs every live task whose name starts with prefix
func (m *Manual) FirePrefix(prefix string) int {
	return m.fire(func(task *manualTask) bool { return strings.HasPrefix(task.name, prefix) })
}

func (m *Manual) fire(match func(*manualTask) bool) int {
	m.mu.Lock()
	var due []*manualTask
	for task := range m.tasks {
		if match(task) {
			due = append(due, task)
			if !task.recurring {
				delete(m.tasks, task)
			}
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].name < due[j].name })
	for _, task := range due {
		task.fn()
	}
	return len(due)
}

// Pending reports whether a live task with the given name exists
func (m *Manual) Pending(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for task := range m.tasks {
		if task.name == name {
			return true
		}
	}
	return false
}

// Names lists the names of all live tasks, sorted
func (m *Manual) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tasks))
	for task := range m.tasks {
		names = append(names, task.name)
	}
	sort.Strings(names)
	return names
}
