package ota

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	lock      sync.Mutex
	size      int64
	opened    int
	committed int
	aborted   int
	sizes     []int
	data      bytes.Buffer

	openErr   error
	commitErr error
	// failAt is the index of the write returning a short write, -1 for none.
	failAt int
	delay  time.Duration
	gate   chan struct{}
	writes chan int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{failAt: -1}
}

func (t *fakeTarget) Open(ctx context.Context, size int64) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.openErr != nil {
		return t.openErr
	}
	t.opened++
	t.size = size
	t.sizes = nil
	t.data.Reset()
	return nil
}

func (t *fakeTarget) Write(p []byte) (int, error) {
	if t.writes != nil {
		t.writes <- len(p)
	}
	if t.gate != nil {
		<-t.gate
	}
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.sizes) == t.failAt {
		t.sizes = append(t.sizes, len(p)/2)
		return len(p) / 2, nil
	}
	t.sizes = append(t.sizes, len(p))
	t.data.Write(p)
	return len(p), nil
}

func (t *fakeTarget) Commit(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed++
	return nil
}

func (t *fakeTarget) Abort(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.aborted++
	return nil
}

func (t *fakeTarget) writeSizes() []int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]int(nil), t.sizes...)
}

func (t *fakeTarget) bytes() []byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]byte(nil), t.data.Bytes()...)
}

func (t *fakeTarget) counts() (opened, committed, aborted int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.opened, t.committed, t.aborted
}

type recorder struct {
	lock     sync.Mutex
	statuses []Status
	progress []Progress
}

func (r *recorder) ReportStatus(ctx context.Context, st Status) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.statuses = append(r.statuses, st)
	return nil
}

func (r *recorder) ReportProgress(ctx context.Context, p Progress) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.progress = append(r.progress, p)
	return nil
}

func (r *recorder) all() []Status {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Status(nil), r.statuses...)
}

type fakeClock struct {
	lock sync.Mutex
	now  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	c.now = c.now.Add(d)
	c.lock.Unlock()
}

const testBufferSize = 512

func testConfig(wait string) Config {
	conf := DefaultConfig()
	conf.BufferSize = testBufferSize
	conf.PollInterval = 50 * time.Microsecond
	conf.LockWait = time.Millisecond
	conf.RestartDelay = time.Millisecond
	conf.Wait = wait
	return conf
}

type testEnv struct {
	updater  *Updater
	target   *fakeTarget
	reporter *recorder
	clock    *fakeClock
}

func newTestEnv(wait string) *testEnv {
	env := &testEnv{
		target:   newFakeTarget(),
		reporter: &recorder{},
		clock:    newFakeClock(),
	}
	env.updater = New(testConfig(wait), env.target)
	env.updater.Reporter = env.reporter
	env.updater.Heap = HeapProbeFunc(func() uint64 { return 1 << 20 })
	env.updater.Now = env.clock.Now
	return env
}

func forEachWaiter(t *testing.T, fn func(t *testing.T, wait string)) {
	for _, wait := range []string{WaitPoll, WaitNotify} {
		t.Run(wait, func(t *testing.T) {
			fn(t, wait)
		})
	}
}

func testImage(size int) []byte {
	image := make([]byte, size)
	for i := range image {
		image[i] = byte(i*7 + i/256)
	}
	return image
}

func requireSingleStatus(t *testing.T, r *recorder, status string) Status {
	all := r.all()
	require.Len(t, all, 1)
	require.Equal(t, StatusEvent, all[0].Event)
	require.Equal(t, status, all[0].Status)
	return all[0]
}
