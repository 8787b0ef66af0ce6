package framework

import (
	"context"
	"errors"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// Task is the join handle of a Runnable spawned in the background.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Spawn runs a Runnable in the background and returns its handle.
// The Runnable is stopped when ctx is done or Stop is called.
func Spawn(ctx context.Context, runnable Runnable) *Task {
	t := &Task{name: "task", done: make(chan struct{})}
	if named, ok := runnable.(Named); ok {
		t.name = named.Name()
	}
	var taskCtx context.Context
	taskCtx, t.cancel = context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(taskCtx)
	group.Go(func() error {
		return runnable.Run(groupCtx)
	})
	glog.V(4).Infof("Task[%s] started", t.name)
	go func() {
		err := group.Wait()
		t.cancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		t.err = err
		glog.V(4).Infof("Task[%s] stopped", t.name)
		close(t.done)
	}()
	return t
}

// Name implements Named.
func (t *Task) Name() string {
	return t.name
}

// Done is closed when the Runnable returns.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the Runnable returns and gets its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Stop cancels the Runnable and waits until it returns.
func (t *Task) Stop() error {
	t.cancel()
	return t.Wait()
}
