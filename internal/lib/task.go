package lib

import (
	"context"
	"errors"
	"sync/atomic"
)

// Task wraps a long-running function in a goroutine that can be started and
// stopped. Each market watcher runs as one Task so a single failing market can
// be observed (Done/Err) without affecting its siblings.
type Task struct {
	runFunc func(ctx context.Context) error
	name    string

	isRunning atomic.Bool
	stopCh    atomic.Value          // chan struct{}
	doneCh    atomic.Value          // chan struct{}
	cancel    atomic.Value          // context.CancelFunc
	err       atomic.Pointer[error] // error
}

type Runnable interface {
	Run(ctx context.Context) error
}

// NewTask creates a new task from a Runnable. The task is not started yet.
func NewTask(runnable Runnable, name string) *Task {
	return NewTaskFunc(runnable.Run, name)
}

// NewTaskFunc creates a new task from a plain function. The task is not
// started yet.
func NewTaskFunc(f func(ctx context.Context) error, name string) *Task {
	t := &Task{
		runFunc: f,
		name:    name,
	}
	t.doneCh.Store(make(chan struct{}))
	return t
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Start(ctx context.Context) {
	if !t.isRunning.CompareAndSwap(false, true) {
		panic("task already running: " + t.name)
	}
	subCtx, cancel := context.WithCancel(ctx)
	t.cancel.Store(cancel)
	t.stopCh.Store(make(chan struct{}))

	go func() {
		err := t.runFunc(subCtx)
		isContextErr := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)

		// returned due to calling Stop()
		if ctx.Err() == nil && subCtx.Err() != nil && isContextErr {
			close(t.stopCh.Load().(chan struct{}))
			return
		}

		// returned due to outer context cancellation or an internal error
		t.err.Store(&err)
		close(t.doneCh.Load().(chan struct{}))
		close(t.stopCh.Load().(chan struct{}))
	}()
}

func (t *Task) Stop() <-chan struct{} {
	if !t.isRunning.CompareAndSwap(true, false) {
		closedChan := make(chan struct{})
		close(closedChan)
		return closedChan
	}
	c := t.cancel.Load()
	if c != nil {
		c.(context.CancelFunc)()
	}
	return t.stopCh.Load().(chan struct{})
}

// Done returns a channel that's closed when the task exited on its own or was
// cancelled through the outer context. It is not closed when Stop is called.
func (t *Task) Done() <-chan struct{} {
	return t.doneCh.Load().(chan struct{})
}

// Err returns the error that caused the task to exit
func (t *Task) Err() error {
	e := t.err.Load()
	if e == nil {
		return nil
	}
	return *e
}
