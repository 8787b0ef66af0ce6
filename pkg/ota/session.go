package ota

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	fx "github.com/robotalks/robofw/pkg/framework"
)

// session is one in-progress firmware transfer.
type session struct {
	id          string
	totalSize   int64
	totalChunks uint32

	// received counts bytes committed to storage, only the worker advances it.
	received       atomic.Int64
	receivedChunks atomic.Uint32
	lastActivity   atomic.Int64
	running        atomic.Bool

	// queued counts bytes handed to the staging buffer, touched by ingestion only.
	queued int64

	buf    *stagingBuffer
	waiter Waiter
	worker *fx.Task

	errLock sync.Mutex
	err     error
}

func (s *session) touch(now time.Time) {
	s.lastActivity.Store(now.UnixNano())
}

func (s *session) lastActive() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *session) fail(err error) {
	s.errLock.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errLock.Unlock()
	s.waiter.Notify()
}

func (s *session) failure() error {
	s.errLock.Lock()
	defer s.errLock.Unlock()
	return s.err
}

func (s *session) stop() {
	s.running.Store(false)
	s.waiter.Notify()
}

// waitDrained waits until the write region is no longer pending.
func (s *session) waitDrained(ctx context.Context) error {
	err := s.waiter.WaitFor(ctx, func() bool {
		return !s.buf.isReady() || !s.running.Load() || s.failure() != nil
	})
	if err != nil {
		return sessionError(KindAborted, err)
	}
	if err = s.failure(); err != nil {
		return sessionError(KindStorageWriteFailed, err)
	}
	if !s.running.Load() {
		return sessionError(KindAborted, ErrSessionAborted)
	}
	return nil
}

// ingest splits data into pieces and hands them to the worker one by one,
// returning once the last piece is committed.
func (s *session) ingest(ctx context.Context, data []byte) error {
	capacity := s.buf.capacity()
	for off := 0; off < len(data); {
		end := off + capacity
		if end > len(data) {
			end = len(data)
		}
		if err := s.waitDrained(ctx); err != nil {
			return err
		}
		if !s.buf.trySwap(data[off:end]) {
			continue
		}
		s.queued += int64(end - off)
		if err := s.waitDrained(ctx); err != nil {
			return err
		}
		off = end
	}
	return nil
}

func (s *session) progress(state State) Progress {
	return Progress{
		State:          state,
		SessionID:      s.id,
		TotalSize:      s.totalSize,
		ReceivedSize:   s.received.Load(),
		TotalChunks:    s.totalChunks,
		ReceivedChunks: s.receivedChunks.Load(),
		LastActivity:   s.lastActive(),
	}
}
