package ota

import (
	"context"
	"time"

	fx "github.com/robotalks/robofw/pkg/framework"
)

// Target is the storage update target receiving the firmware image.
// Write is only ever invoked by the flash worker.
type Target interface {
	// Open prepares the target for an image of size bytes.
	Open(ctx context.Context, size int64) error
	// Write writes a piece and returns the number of bytes written.
	Write(p []byte) (int, error)
	// Commit finalizes a complete image and makes it bootable.
	Commit(ctx context.Context) error
	// Abort discards a partial image.
	Abort(ctx context.Context) error
}

// HeapProbe reports available heap memory.
type HeapProbe interface {
	FreeHeap() uint64
}

// HeapProbeFunc is func form of HeapProbe.
type HeapProbeFunc func() uint64

// FreeHeap implements HeapProbe.
func (f HeapProbeFunc) FreeHeap() uint64 {
	return f()
}

// Restarter restarts the device after a successful update.
type Restarter interface {
	Restart(ctx context.Context) error
}

// RestartFunc is func form of Restarter.
type RestartFunc func(context.Context) error

// Restart implements Restarter.
func (f RestartFunc) Restart(ctx context.Context) error {
	return f(ctx)
}

// StatusEvent is the event name for update status reports.
const StatusEvent = "update_status"

// Reported statuses.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Status is reported when a session terminates.
type Status struct {
	Event        string
	Status       string
	Detail       string
	Kind         ErrorKind
	SessionID    string
	ReceivedSize int64
	TotalSize    int64
}

// StatusReporter receives terminal session statuses.
type StatusReporter interface {
	ReportStatus(context.Context, Status) error
}

// ProgressReporter is optionally implemented by a StatusReporter to receive
// progress while a session is active.
type ProgressReporter interface {
	ReportProgress(context.Context, Progress) error
}

// ReporterMux fans out to multiple reporters.
type ReporterMux struct {
	Reporters []StatusReporter
}

// Add adds more reporters.
func (m *ReporterMux) Add(reporters ...StatusReporter) {
	m.Reporters = append(m.Reporters, reporters...)
}

// ReportStatus implements StatusReporter.
func (m *ReporterMux) ReportStatus(ctx context.Context, st Status) error {
	var errs fx.AggregatedError
	for _, r := range m.Reporters {
		errs.Add(r.ReportStatus(ctx, st))
	}
	return errs.Aggregate()
}

// ReportProgress implements ProgressReporter.
func (m *ReporterMux) ReportProgress(ctx context.Context, p Progress) error {
	var errs fx.AggregatedError
	for _, r := range m.Reporters {
		if pr, ok := r.(ProgressReporter); ok {
			errs.Add(pr.ReportProgress(ctx, p))
		}
	}
	return errs.Aggregate()
}

// State is the state of the Updater.
type State string

// States.
const (
	StateIdle      State = "idle"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Progress is a snapshot of the current session.
type Progress struct {
	State          State
	SessionID      string
	TotalSize      int64
	ReceivedSize   int64
	TotalChunks    uint32
	ReceivedChunks uint32
	LastActivity   time.Time
}

// Chunk is a transport-level unit of firmware bytes.
type Chunk struct {
	Data   []byte
	Index  uint32
	IsLast bool
}
