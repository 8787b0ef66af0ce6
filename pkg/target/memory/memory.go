// Package memory implements an in-memory update target, used for dry runs
// and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/robofw/pkg/target"
)

// Target keeps the image in memory.
type Target struct {
	// Capacity limits the image size accepted by Open, 0 for unlimited.
	Capacity int64
	// ShortWriteAfter makes writes stop short once this many bytes are
	// written, 0 to disable. Used to simulate a failing storage.
	ShortWriteAfter int64

	lock    sync.Mutex
	open    bool
	size    int64
	pending bytes.Buffer
	image   []byte
	writes  []int
}

// New creates a Target.
func New(capacity int64) *Target {
	return &Target{Capacity: capacity}
}

// Open implements ota.Target.
func (t *Target) Open(ctx context.Context, size int64) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.Capacity > 0 && size > t.Capacity {
		return fmt.Errorf("%w: %d bytes exceeds capacity %d", target.ErrNoSpace, size, t.Capacity)
	}
	t.open, t.size = true, size
	t.pending.Reset()
	t.writes = nil
	return nil
}

// Write implements ota.Target.
func (t *Target) Write(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.open {
		return 0, target.ErrNotOpen
	}
	written := int64(t.pending.Len())
	if written+int64(len(p)) > t.size {
		return 0, target.ErrOverflow
	}
	n := len(p)
	if t.ShortWriteAfter > 0 && written+int64(n) > t.ShortWriteAfter {
		n = int(t.ShortWriteAfter - written)
		if n < 0 {
			n = 0
		}
	}
	t.pending.Write(p[:n])
	t.writes = append(t.writes, n)
	return n, nil
}

// Commit implements ota.Target.
func (t *Target) Commit(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.open {
		return target.ErrNotOpen
	}
	if written := int64(t.pending.Len()); written != t.size {
		return fmt.Errorf("%w: %d of %d bytes", target.ErrSizeMismatch, written, t.size)
	}
	t.image = append([]byte(nil), t.pending.Bytes()...)
	t.open = false
	t.pending.Reset()
	glog.Infof("memory target: committed %d bytes", len(t.image))
	return nil
}

// Abort implements ota.Target.
func (t *Target) Abort(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.open = false
	t.pending.Reset()
	return nil
}

// Image returns the last committed image.
func (t *Target) Image() []byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.image
}

// Writes returns the sizes of writes since the last Open.
func (t *Target) Writes() []int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]int(nil), t.writes...)
}
