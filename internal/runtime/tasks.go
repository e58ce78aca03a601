// Package runtime hosts the gateway's long-lived background goroutines:
// the credential file watcher, the usage-log retention sweep, and anything
// else that must outlive a single request.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// TaskFunc runs until its context is canceled or it returns an error.
type TaskFunc func(ctx context.Context) error

type taskState string

const (
	taskRunning  taskState = "running"
	taskStopped  taskState = "stopped"
	taskFailed   taskState = "failed"
	taskCanceled taskState = "canceled"
)

type task struct {
	name    string
	started time.Time
	state   taskState
	err     error
}

// TaskManager tracks named background tasks, recovers their panics, and
// cancels them together on shutdown.
type TaskManager struct {
	mu     sync.Mutex
	tasks  map[string]*task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewTaskManager(ctx context.Context) *TaskManager {
	ctx, cancel := context.WithCancel(ctx)
	return &TaskManager{
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go starts fn under the manager's lifecycle. Names must be unique.
func (tm *TaskManager) Go(name string, fn TaskFunc) error {
	tm.mu.Lock()
	if _, exists := tm.tasks[name]; exists {
		tm.mu.Unlock()
		return fmt.Errorf("task %s already running", name)
	}
	t := &task{name: name, started: time.Now(), state: taskRunning}
	tm.tasks[name] = t
	tm.mu.Unlock()

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{"task": name, "panic": r}).Error("background task panicked")
				tm.setState(t, taskFailed, fmt.Errorf("panic: %v", r))
			}
		}()

		log.WithField("task", name).Info("background task started")
		err := fn(tm.ctx)
		switch {
		case err == nil:
			tm.setState(t, taskStopped, nil)
		case tm.ctx.Err() != nil:
			tm.setState(t, taskCanceled, nil)
		default:
			log.WithError(err).WithField("task", name).Error("background task failed")
			tm.setState(t, taskFailed, err)
		}
	}()
	return nil
}

func (tm *TaskManager) setState(t *task, state taskState, err error) {
	tm.mu.Lock()
	t.state = state
	t.err = err
	tm.mu.Unlock()
}

// Running reports how many tasks are still live.
func (tm *TaskManager) Running() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	n := 0
	for _, t := range tm.tasks {
		if t.state == taskRunning {
			n++
		}
	}
	return n
}

// Shutdown cancels every task and waits for them to drain, bounded by ctx.
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.cancel()
	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
