// Package gcs implements an update target uploading the image to Google
// Cloud Storage, for robots whose images are staged by a fleet service.
package gcs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/golang/glog"
	"google.golang.org/api/option"

	"github.com/robotalks/robofw/pkg/target"
)

// DefaultObjectName is the object name of the image under the prefix.
const DefaultObjectName = "firmware.bin"

// Location is an object location in a bucket.
type Location struct {
	Bucket string
	Object string
}

// ParseURL parses gs://bucket/path. A path ending with "/" is a prefix for
// DefaultObjectName.
func ParseURL(rawURL string) (Location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Location{}, err
	}
	if u.Scheme != "gs" || u.Host == "" {
		return Location{}, fmt.Errorf("invalid gcs url %q", rawURL)
	}
	obj := strings.TrimPrefix(u.Path, "/")
	if obj == "" || strings.HasSuffix(obj, "/") {
		obj = path.Join(obj, DefaultObjectName)
	}
	return Location{Bucket: u.Host, Object: obj}, nil
}

// String implements Stringer.
func (l Location) String() string {
	return "gs://" + l.Bucket + "/" + l.Object
}

// NewClient creates a storage client, using the credentials file if
// specified, otherwise the application default credentials.
func NewClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient failed: %w", err)
	}
	return client, nil
}

// Target uploads the image to an object. The object is created only when
// the upload is committed.
type Target struct {
	Client   *storage.Client
	Location Location

	lock    sync.Mutex
	writer  *storage.Writer
	cancel  context.CancelFunc
	size    int64
	written int64
}

// New creates a Target.
func New(client *storage.Client, loc Location) *Target {
	return &Target{Client: client, Location: loc}
}

// Open implements ota.Target.
func (t *Target) Open(ctx context.Context, size int64) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.writer != nil {
		t.cancelUpload()
	}
	// the upload outlives the begin request, and is canceled by Abort.
	uploadCtx, cancel := context.WithCancel(context.Background())
	w := t.Client.Bucket(t.Location.Bucket).Object(t.Location.Object).NewWriter(uploadCtx)
	w.ContentType = "application/octet-stream"
	w.Metadata = map[string]string{"size": fmt.Sprint(size)}
	t.writer, t.cancel, t.size, t.written = w, cancel, size, 0
	glog.V(2).Infof("gcs target: uploading %d bytes to %s", size, t.Location)
	return nil
}

// Write implements ota.Target.
func (t *Target) Write(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.writer == nil {
		return 0, target.ErrNotOpen
	}
	if t.written+int64(len(p)) > t.size {
		return 0, target.ErrOverflow
	}
	n, err := t.writer.Write(p)
	t.written += int64(n)
	return n, err
}

// Commit implements ota.Target.
func (t *Target) Commit(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.writer == nil {
		return target.ErrNotOpen
	}
	if t.written != t.size {
		t.cancelUpload()
		return fmt.Errorf("%w: %d of %d bytes", target.ErrSizeMismatch, t.written, t.size)
	}
	w, cancel := t.writer, t.cancel
	t.writer, t.cancel = nil, nil
	defer cancel()
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", t.Location, err)
	}
	glog.Infof("gcs target: committed %d bytes to %s", t.written, t.Location)
	return nil
}

// Abort implements ota.Target.
func (t *Target) Abort(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.writer != nil {
		t.cancelUpload()
	}
	return nil
}

// canceling the context discards the upload.
func (t *Target) cancelUpload() {
	t.cancel()
	t.writer.Close()
	t.writer, t.cancel = nil, nil
}

// OpenReader opens an object for reading, with its size.
func OpenReader(ctx context.Context, client *storage.Client, loc Location) (io.ReadCloser, int64, error) {
	rd, err := client.Bucket(loc.Bucket).Object(loc.Object).NewReader(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", loc, err)
	}
	return rd, rd.Attrs.Size, nil
}
