package ota

import (
	"context"
	"sync"
	"time"
)

// Waiter suspends the caller until a condition holds.
// Every state change a condition depends on must be followed by Notify.
type Waiter interface {
	// WaitFor returns nil once cond returns true, or the context error.
	WaitFor(ctx context.Context, cond func() bool) error
	// Notify wakes up waiters to re-evaluate their conditions.
	Notify()
}

// PollWaiter re-evaluates the condition at a fixed interval.
type PollWaiter struct {
	Interval time.Duration
}

// DefaultPollInterval is the default interval of PollWaiter.
const DefaultPollInterval = time.Millisecond

// WaitFor implements Waiter.
func (w *PollWaiter) WaitFor(ctx context.Context, cond func() bool) error {
	if cond() {
		return nil
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}

// Notify implements Waiter. Polling needs no wake-up.
func (w *PollWaiter) Notify() {}

// NotifyWaiter blocks until notified, then re-evaluates the condition.
type NotifyWaiter struct {
	lock   sync.Mutex
	wakeCh chan struct{}
}

// NewNotifyWaiter creates a NotifyWaiter.
func NewNotifyWaiter() *NotifyWaiter {
	return &NotifyWaiter{}
}

func (w *NotifyWaiter) wake() <-chan struct{} {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.wakeCh == nil {
		w.wakeCh = make(chan struct{})
	}
	return w.wakeCh
}

// WaitFor implements Waiter.
func (w *NotifyWaiter) WaitFor(ctx context.Context, cond func() bool) error {
	for {
		// take the channel before checking, so a Notify in between is not lost.
		ch := w.wake()
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Notify implements Waiter.
func (w *NotifyWaiter) Notify() {
	w.lock.Lock()
	if w.wakeCh != nil {
		close(w.wakeCh)
		w.wakeCh = nil
	}
	w.lock.Unlock()
}
