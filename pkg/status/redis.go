// Package status mirrors update statuses into a redis hash for local
// services watching the robot.
package status

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"github.com/robotalks/robofw/pkg/ota"
)

// Defaults
const (
	DefaultHash      = "ota"
	DefaultComponent = "firmware"
)

// Mirrored status values.
const (
	ValueDownloading = "downloading"
	ValueComplete    = "complete"
	ValueError       = "error"
)

// Fields are the hash fields to set and to delete.
type Fields struct {
	Set map[string]interface{}
	Del []string
}

// Keys are the hash field names of a component.
type Keys struct {
	Status        string
	Error         string
	ErrorMessage  string
	DownloadBytes string
	DownloadTotal string
}

// KeysOf returns the field names for component.
func KeysOf(component string) Keys {
	return Keys{
		Status:        "status:" + component,
		Error:         "error:" + component,
		ErrorMessage:  "error-message:" + component,
		DownloadBytes: "download-bytes:" + component,
		DownloadTotal: "download-total:" + component,
	}
}

// StatusFields builds the fields for a terminal status.
func (k Keys) StatusFields(st ota.Status) Fields {
	if st.Status == ota.StatusComplete {
		return Fields{
			Set: map[string]interface{}{
				k.Status:        ValueComplete,
				k.DownloadBytes: st.ReceivedSize,
				k.DownloadTotal: st.TotalSize,
			},
			Del: []string{k.Error, k.ErrorMessage},
		}
	}
	kind := st.Kind
	if kind == "" {
		kind = ota.KindAborted
	}
	return Fields{
		Set: map[string]interface{}{
			k.Status:       ValueError,
			k.Error:        string(kind),
			k.ErrorMessage: st.Detail,
		},
		Del: []string{k.DownloadBytes, k.DownloadTotal},
	}
}

// ProgressFields builds the fields for progress of an active session.
func (k Keys) ProgressFields(p ota.Progress) Fields {
	return Fields{
		Set: map[string]interface{}{
			k.Status:        ValueDownloading,
			k.DownloadBytes: p.ReceivedSize,
			k.DownloadTotal: p.TotalSize,
		},
		Del: []string{k.Error, k.ErrorMessage},
	}
}

// Reporter implements ota.StatusReporter and ota.ProgressReporter.
type Reporter struct {
	Client redis.Cmdable
	Hash   string
	Keys   Keys
}

// NewReporter creates a Reporter for component in the default hash.
func NewReporter(client redis.Cmdable, component string) *Reporter {
	return &Reporter{Client: client, Hash: DefaultHash, Keys: KeysOf(component)}
}

// Dial connects to redis at addr.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

// ReportStatus implements ota.StatusReporter.
func (r *Reporter) ReportStatus(ctx context.Context, st ota.Status) error {
	if err := r.apply(ctx, r.Keys.StatusFields(st)); err != nil {
		return err
	}
	glog.V(1).Infof("redis: %s %s=%s", r.Hash, r.Keys.Status, st.Status)
	return nil
}

// ReportProgress implements ota.ProgressReporter.
func (r *Reporter) ReportProgress(ctx context.Context, p ota.Progress) error {
	return r.apply(ctx, r.Keys.ProgressFields(p))
}

// Clear removes all fields of the component.
func (r *Reporter) Clear(ctx context.Context) error {
	k := r.Keys
	return r.apply(ctx, Fields{Del: []string{k.Status, k.Error, k.ErrorMessage, k.DownloadBytes, k.DownloadTotal}})
}

func (r *Reporter) apply(ctx context.Context, f Fields) error {
	pipe := r.Client.Pipeline()
	if len(f.Set) > 0 {
		pipe.HSet(ctx, r.Hash, f.Set)
	}
	if len(f.Del) > 0 {
		pipe.HDel(ctx, r.Hash, f.Del...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update redis hash %s: %w", r.Hash, err)
	}
	return nil
}
