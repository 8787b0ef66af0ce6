package ota

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
)

// flashWorker drains the staging buffer into the update target.
// It is the only caller of Target.Write.
type flashWorker struct {
	session  *session
	target   Target
	lockWait time.Duration
}

// Run implements Runnable. It returns nil when stopped and the write error
// when a piece could not be committed.
func (w *flashWorker) Run(ctx context.Context) error {
	buf := w.session.buf
	glog.V(2).Infof("flash worker[%s] started", w.session.id)
	defer glog.V(2).Infof("flash worker[%s] stopped", w.session.id)
	for ctx.Err() == nil {
		drained, err := buf.drain(ctx, w.lockWait, w.write)
		if err != nil {
			glog.Errorf("flash worker[%s]: %v", w.session.id, err)
			return err
		}
		if drained {
			continue
		}
		if err := w.session.waiter.WaitFor(ctx, buf.isReady); err != nil {
			break
		}
	}
	return nil
}

// write runs with the staging lock held. A failure is recorded on the
// session before the region is released to the ingestion path.
func (w *flashWorker) write(p []byte) error {
	n, err := w.target.Write(p)
	if err == nil && n != len(p) {
		err = fmt.Errorf("%w: wrote %d of %d bytes", ErrStorageWriteFailed, n, len(p))
	} else if err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	if err != nil {
		w.session.fail(err)
		return err
	}
	received := w.session.received.Add(int64(n))
	glog.V(4).Infof("flash worker[%s]: committed %d bytes, %d/%d", w.session.id, n, received, w.session.totalSize)
	return nil
}
