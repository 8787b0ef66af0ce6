// Package file implements an update target storing the image as a file.
// The image is written to a temporary file in the same directory and
// renamed into place on commit, so a partial image never replaces a good one.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/robofw/pkg/target"
)

// DefaultName is the default file name of the image.
const DefaultName = "firmware.bin"

// Target writes the image into Dir/Name.
type Target struct {
	Dir  string
	Name string
	// Reserve is the free space kept on the file system in addition to the image.
	Reserve uint64

	lock    sync.Mutex
	file    *os.File
	size    int64
	written int64
}

// New creates a Target writing to dir.
func New(dir string) *Target {
	return &Target{Dir: dir, Name: DefaultName}
}

// Path is the path of the committed image.
func (t *Target) Path() string {
	name := t.Name
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(t.Dir, name)
}

func (t *Target) tmpPath() string {
	return t.Path() + ".tmp"
}

// Open implements ota.Target.
func (t *Target) Open(ctx context.Context, size int64) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := os.MkdirAll(t.Dir, 0755); err != nil {
		return err
	}
	free, err := freeSpace(t.Dir)
	if err != nil {
		return fmt.Errorf("statfs %s: %w", t.Dir, err)
	}
	if uint64(size)+t.Reserve > free {
		return fmt.Errorf("%w: %d bytes required, %d available in %s", target.ErrNoSpace, uint64(size)+t.Reserve, free, t.Dir)
	}
	if t.file != nil {
		t.discard()
	}
	f, err := os.OpenFile(t.tmpPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	t.file, t.size, t.written = f, size, 0
	glog.V(2).Infof("file target: writing %d bytes to %s", size, f.Name())
	return nil
}

// Write implements ota.Target.
func (t *Target) Write(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.file == nil {
		return 0, target.ErrNotOpen
	}
	if t.written+int64(len(p)) > t.size {
		return 0, target.ErrOverflow
	}
	n, err := t.file.Write(p)
	t.written += int64(n)
	return n, err
}

// Commit implements ota.Target.
func (t *Target) Commit(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.file == nil {
		return target.ErrNotOpen
	}
	if t.written != t.size {
		t.discard()
		return fmt.Errorf("%w: %d of %d bytes", target.ErrSizeMismatch, t.written, t.size)
	}
	f := t.file
	t.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), t.Path()); err != nil {
		os.Remove(f.Name())
		return err
	}
	glog.Infof("file target: committed %d bytes to %s", t.written, t.Path())
	return nil
}

// Abort implements ota.Target.
func (t *Target) Abort(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.file == nil {
		return nil
	}
	return t.discard()
}

func (t *Target) discard() error {
	f := t.file
	t.file = nil
	f.Close()
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
