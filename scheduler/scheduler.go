// Package scheduler runs the recurring and one-shot timer tasks of the game
// world. A Scheduler is created by its owner, passed to the components that
// need timers, and stopped exactly once when the owner shuts down.
package scheduler

import (
	"sync"
	"time"

	"gridrealm/server/logger"
)

// Task is a scheduled unit of work that can be cancelled.
// Stop never blocks and may be called from inside the task itself.
type Task interface {
	Stop()
}

// Scheduler creates named timer tasks
type Scheduler interface {
	// Every runs fn after delay and then once per period until stopped
	Every(name string, delay, period time.Duration, fn func()) Task
	// After runs fn once after delay unless stopped first
	After(name string, delay time.Duration, fn func()) Task
	// Stop cancels every task and waits for running callbacks to return
	Stop()
}

// TickerScheduler runs each task on its own goroutine driven by time.Timer
// and time.Ticker.
type TickerScheduler struct {
	mu       sync.Mutex
	stopped  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewTickerScheduler creates a running scheduler
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{stopChan: make(chan struct{})}
}

type tickerTask struct {
	name     string
	stopChan chan struct{}
	stopOnce sync.Once
}

func (t *tickerTask) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

func (s *TickerScheduler) newTask(name string) (*tickerTask, bool) {
	task := &tickerTask{name: name, stopChan: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		task.Stop()
		return task, false
	}
	s.wg.Add(1)
	return task, true
}

// Every runs fn after delay and then every period. A non-positive period
// yields a task that is already stopped.
func (s *TickerScheduler) Every(name string, delay, period time.Duration, fn func()) Task {
	if period <= 0 {
		logger.Error("Refusing recurring task with non-positive period", "task", name, "period", period)
		task := &tickerTask{name: name, stopChan: make(chan struct{})}
		task.Stop()
		return task
	}
	task, ok := s.newTask(name)
	if !ok {
		return task
	}

	go func() {
		defer s.wg.Done()

		if !s.wait(task, delay) {
			return
		}
		s.run(task, fn)

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if s.cancelled(task) {
					return
				}
				s.run(task, fn)
			case <-task.stopChan:
				return
			case <-s.stopChan:
				return
			}
		}
	}()
	return task
}

// After runs fn once after delay
func (s *TickerScheduler) After(name string, delay time.Duration, fn func()) Task {
	task, ok := s.newTask(name)
	if !ok {
		return task
	}

	go func() {
		defer s.wg.Done()
		if s.wait(task, delay) {
			s.run(task, fn)
		}
	}()
	return task
}

// Stop cancels all tasks and waits for in-flight callbacks
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// wait sleeps for delay and reports whether the task should still run
func (s *TickerScheduler) wait(task *tickerTask, delay time.Duration) bool {
	if delay <= 0 {
		return !s.cancelled(task)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !s.cancelled(task)
	case <-task.stopChan:
		return false
	case <-s.stopChan:
		return false
	}
}

func (s *TickerScheduler) cancelled(task *tickerTask) bool {
	select {
	case <-task.stopChan:
		return true
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

func (s *TickerScheduler) run(task *tickerTask, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Scheduled task panicked", "task", task.name, "panic", r)
		}
	}()
	fn()
}
