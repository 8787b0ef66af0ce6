package ota

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Region owners, used by access hooks.
const (
	ownerIngest = 1
	ownerWorker = 2
)

// accessHook observes access to a physical region.
type accessHook func(owner, region int, enter bool)

// stagingBuffer holds two equally sized regions. The region at index recv
// plays the "receive" role and is filled by the ingestion path; the other
// plays the "write" role and is drained by the flash worker while ready.
// Roles are exchanged by flipping recv under lock, never by copying.
type stagingBuffer struct {
	regions [2][]byte
	recv    int
	size    int
	ready   atomic.Bool
	lock    *semaphore.Weighted
	waiter  Waiter
	access  accessHook
}

func newStagingBuffer(capacity int, waiter Waiter) *stagingBuffer {
	return &stagingBuffer{
		regions: [2][]byte{make([]byte, capacity), make([]byte, capacity)},
		lock:    semaphore.NewWeighted(1),
		waiter:  waiter,
	}
}

func (b *stagingBuffer) capacity() int {
	return len(b.regions[0])
}

// isReady reports the write region holds contents pending for storage.
func (b *stagingBuffer) isReady() bool {
	return b.ready.Load()
}

// trySwap copies piece into the receive region and hands it to the worker by
// exchanging roles. It returns false without exchanging if the write region
// is still pending. piece must not exceed capacity.
func (b *stagingBuffer) trySwap(piece []byte) bool {
	if b.isReady() {
		return false
	}
	// only the ingestion path moves recv, reading it without lock is safe here.
	idx := b.recv
	b.enter(ownerIngest, idx)
	copy(b.regions[idx], piece)
	b.leave(ownerIngest, idx)

	// Background never cancels, Acquire blocks until available.
	b.lock.Acquire(context.Background(), 1)
	if b.ready.Load() {
		b.lock.Release(1)
		return false
	}
	b.recv = 1 - idx
	b.size = len(piece)
	b.ready.Store(true)
	b.lock.Release(1)
	b.waiter.Notify()
	return true
}

// drain passes the pending write region to write, waiting at most wait for
// the lock. The region is marked drained even if write fails so the
// ingestion path never waits on a region nobody will drain.
func (b *stagingBuffer) drain(ctx context.Context, wait time.Duration, write func([]byte) error) (bool, error) {
	if !b.acquireFor(ctx, wait) {
		return false, nil
	}
	if !b.ready.Load() {
		b.lock.Release(1)
		return false, nil
	}
	idx := 1 - b.recv
	b.enter(ownerWorker, idx)
	err := write(b.regions[idx][:b.size])
	b.leave(ownerWorker, idx)
	b.size = 0
	b.ready.Store(false)
	b.lock.Release(1)
	b.waiter.Notify()
	return true, err
}

func (b *stagingBuffer) acquireFor(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return b.lock.TryAcquire(1)
	}
	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return b.lock.Acquire(lockCtx, 1) == nil
}

func (b *stagingBuffer) enter(owner, region int) {
	if h := b.access; h != nil {
		h(owner, region, true)
	}
}

func (b *stagingBuffer) leave(owner, region int) {
	if h := b.access; h != nil {
		h(owner, region, false)
	}
}
