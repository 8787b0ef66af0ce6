package ota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/looplab/fsm"

	fx "github.com/robotalks/robofw/pkg/framework"
)

// Session events.
const (
	evBegin    = "begin"
	evComplete = "complete"
	evFail     = "fail"
	evReset    = "reset"
)

// ProgressInterval limits how often progress is reported.
const ProgressInterval = time.Second

// Updater is the update session controller. It owns the staging buffers,
// the flash worker and the session state machine.
type Updater struct {
	Config    Config
	Target    Target
	Heap      HeapProbe
	Reporter  StatusReporter
	Restarter Restarter
	// Now is the clock used for timeout detection.
	Now func() time.Time

	waiter Waiter
	state  *fsm.FSM

	// lock guards session and state transitions.
	lock    sync.Mutex
	session *session
	restart *time.Timer

	// ingestLock serializes chunk ingestion and begin.
	ingestLock   sync.Mutex
	lastProgress time.Time

	access accessHook
}

// New creates an Updater writing to target.
func New(conf Config, target Target) *Updater {
	conf = conf.withDefaults()
	u := &Updater{
		Config: conf,
		Target: target,
		Now:    time.Now,
		waiter: conf.NewWaiter(),
	}
	u.state = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evBegin, Src: []string{string(StateIdle)}, Dst: string(StateActive)},
			{Name: evComplete, Src: []string{string(StateActive)}, Dst: string(StateCompleted)},
			{Name: evFail, Src: []string{string(StateActive)}, Dst: string(StateFailed)},
			{Name: evReset, Src: []string{string(StateCompleted), string(StateFailed)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				glog.V(2).Infof("update state %s -> %s", e.Src, e.Dst)
			},
		},
	)
	return u
}

// State returns the current state.
func (u *Updater) State() State {
	return State(u.state.Current())
}

// InProgress indicates a session is active.
func (u *Updater) InProgress() bool {
	return u.state.Is(string(StateActive))
}

// Progress returns a snapshot of the current session.
func (u *Updater) Progress() Progress {
	u.lock.Lock()
	defer u.lock.Unlock()
	if u.session == nil {
		return Progress{State: u.State()}
	}
	return u.session.progress(u.State())
}

// Begin starts a session expecting size bytes. totalChunks is informational.
func (u *Updater) Begin(ctx context.Context, size int64, totalChunks uint32) error {
	u.ingestLock.Lock()
	defer u.ingestLock.Unlock()

	u.lock.Lock()
	s, err := u.begin(ctx, size, totalChunks)
	u.lock.Unlock()
	if err != nil {
		glog.Warningf("update begin(%d) rejected: %v", size, err)
		if !errors.Is(err, ErrUpdateInProgress) {
			u.report(ctx, Status{
				Event:     StatusEvent,
				Status:    StatusFailed,
				Detail:    err.Error(),
				Kind:      KindOf(err),
				TotalSize: size,
			})
		}
		return err
	}
	u.lastProgress = time.Time{}
	glog.Infof("update %s started: %d bytes, buffer %d", s.id, size, u.Config.BufferSize)
	return nil
}

func (u *Updater) begin(ctx context.Context, size int64, totalChunks uint32) (*session, error) {
	if !u.state.Is(string(StateIdle)) {
		return nil, ErrUpdateInProgress
	}
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if err := u.preflight(); err != nil {
		return nil, sessionError(KindInsufficientMemory, err)
	}
	if err := u.Target.Open(ctx, size); err != nil {
		return nil, sessionError(KindStorageOpenFailed, fmt.Errorf("%w: %v", ErrStorageOpenFailed, err))
	}
	if u.restart != nil {
		u.restart.Stop()
		u.restart = nil
	}
	s := &session{
		id:          uuid.NewString(),
		totalSize:   size,
		totalChunks: totalChunks,
		buf:         newStagingBuffer(u.Config.BufferSize, u.waiter),
		waiter:      u.waiter,
	}
	s.buf.access = u.access
	s.running.Store(true)
	s.touch(u.Now())
	worker := &flashWorker{session: s, target: u.Target, lockWait: u.Config.LockWait}
	s.worker = fx.Spawn(context.Background(), fx.NamedRun("flash-worker", fx.RunFunc(func(ctx context.Context) error {
		err := worker.Run(ctx)
		if err != nil {
			// the join in endSession waits for this func, so end from another goroutine.
			go u.endSession(context.Background(), s, false, sessionError(KindStorageWriteFailed, err))
		}
		return err
	})))
	if err := u.state.Event(evBegin); err != nil {
		panic(err)
	}
	u.session = s
	return s, nil
}

func (u *Updater) preflight() error {
	if u.Heap == nil {
		return nil
	}
	free, need := u.Heap.FreeHeap(), u.Config.StagingRequirement()
	if free <= u.Config.HeapOverhead || free-u.Config.HeapOverhead <= need {
		return fmt.Errorf("%w: %d bytes free, %d required plus %d overhead",
			ErrInsufficientMemory, free, need, u.Config.HeapOverhead)
	}
	return nil
}

func (u *Updater) current() *session {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.session
}

// ProcessChunk ingests a chunk and returns once all its bytes are committed
// to storage. The last chunk completes the session.
func (u *Updater) ProcessChunk(ctx context.Context, chunk Chunk) error {
	u.ingestLock.Lock()
	defer u.ingestLock.Unlock()

	s := u.current()
	if s == nil || !s.running.Load() {
		glog.Warningf("update chunk %d ignored: %v", chunk.Index, ErrNoSession)
		return ErrNoSession
	}
	s.touch(u.Now())
	s.receivedChunks.Add(1)
	glog.V(2).Infof("update %s: chunk %d, %d bytes, last=%v", s.id, chunk.Index, len(chunk.Data), chunk.IsLast)

	if s.queued+int64(len(chunk.Data)) > s.totalSize {
		err := sessionError(KindProtocolMisuse, fmt.Errorf("%w: chunk %d brings %d bytes over %d",
			ErrSizeExceeded, chunk.Index, s.queued+int64(len(chunk.Data)), s.totalSize))
		u.endSession(ctx, s, false, err)
		return err
	}
	if err := s.ingest(ctx, chunk.Data); err != nil {
		u.endSession(context.Background(), s, false, err)
		return err
	}
	u.reportProgress(ctx, s)
	if chunk.IsLast {
		return u.endSession(ctx, s, true, nil)
	}
	return nil
}

// CheckTimeout fails the session if no chunk arrived within the timeout.
// It is expected to be called periodically.
func (u *Updater) CheckTimeout(ctx context.Context) bool {
	s := u.current()
	if s == nil {
		return false
	}
	idle := u.Now().Sub(s.lastActive())
	if idle <= u.Config.Timeout {
		return false
	}
	glog.Warningf("update %s: no activity for %v", s.id, idle)
	u.endSession(ctx, s, false, sessionError(KindTimeout, fmt.Errorf("%w: no activity for %v", ErrTimeout, idle)))
	return true
}

// End terminates the current session. It is a no-op without an active session.
func (u *Updater) End(ctx context.Context, success bool) error {
	var cause error
	if !success {
		cause = sessionError(KindAborted, ErrSessionAborted)
	}
	return u.end(ctx, success, cause)
}

// Abort fails the current session with reason.
func (u *Updater) Abort(ctx context.Context, reason string) error {
	cause := sessionError(KindAborted, ErrSessionAborted)
	if reason != "" {
		cause = sessionError(KindAborted, fmt.Errorf("%w: %s", ErrSessionAborted, reason))
	}
	return u.end(ctx, false, cause)
}

func (u *Updater) end(ctx context.Context, success bool, cause error) error {
	s := u.current()
	if s == nil {
		return nil
	}
	return u.endSession(ctx, s, success, cause)
}

// endSession stops the worker, finalizes the target and reports the status.
// It returns the failure cause, nil on success or if s already ended.
func (u *Updater) endSession(ctx context.Context, s *session, success bool, cause error) error {
	u.lock.Lock()
	defer u.lock.Unlock()
	if s == nil || u.session != s {
		return nil
	}
	s.stop()
	if err := s.worker.Stop(); err != nil && cause == nil {
		success, cause = false, sessionError(KindStorageWriteFailed, err)
	}
	if success {
		if received := s.received.Load(); received != s.totalSize {
			success, cause = false, sessionError(KindCommitFailed,
				fmt.Errorf("%w: %d of %d bytes", ErrIncomplete, received, s.totalSize))
		} else if err := u.Target.Commit(ctx); err != nil {
			success, cause = false, sessionError(KindCommitFailed, err)
		}
	}
	status := Status{
		Event:        StatusEvent,
		Status:       StatusComplete,
		SessionID:    s.id,
		ReceivedSize: s.received.Load(),
		TotalSize:    s.totalSize,
	}
	event := evComplete
	if !success {
		if err := u.Target.Abort(ctx); err != nil {
			glog.Warningf("update %s: abort target: %v", s.id, err)
		}
		if cause == nil {
			cause = sessionError(KindAborted, ErrSessionAborted)
		}
		event, status.Status, status.Detail, status.Kind = evFail, StatusFailed, cause.Error(), KindOf(cause)
	}
	if err := u.state.Event(event); err != nil {
		panic(err)
	}
	// dropping the session releases the staging buffers.
	u.session = nil

	if success {
		glog.Infof("update %s complete: %d bytes", s.id, status.ReceivedSize)
	} else {
		glog.Errorf("update %s failed: %v", s.id, cause)
	}
	u.report(ctx, status)
	if err := u.state.Event(evReset); err != nil {
		panic(err)
	}
	if success {
		u.scheduleRestart()
		return nil
	}
	return cause
}

func (u *Updater) scheduleRestart() {
	if u.Restarter == nil {
		return
	}
	restarter := u.Restarter
	glog.Infof("restarting in %v", u.Config.RestartDelay)
	u.restart = time.AfterFunc(u.Config.RestartDelay, func() {
		if err := restarter.Restart(context.Background()); err != nil {
			glog.Errorf("restart failed: %v", err)
		}
	})
}

func (u *Updater) report(ctx context.Context, st Status) {
	if u.Reporter == nil {
		return
	}
	if err := u.Reporter.ReportStatus(ctx, st); err != nil {
		glog.Warningf("report update status: %v", err)
	}
}

func (u *Updater) reportProgress(ctx context.Context, s *session) {
	pr, ok := u.Reporter.(ProgressReporter)
	if !ok {
		return
	}
	now := u.Now()
	if now.Sub(u.lastProgress) < ProgressInterval {
		return
	}
	u.lastProgress = now
	if err := pr.ReportProgress(ctx, s.progress(StateActive)); err != nil {
		glog.Warningf("report update progress: %v", err)
	}
}
