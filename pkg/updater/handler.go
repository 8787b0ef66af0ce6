package updater

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1"
	"github.com/robotalks/robofw/pkg/l1/msgs"
	"github.com/robotalks/robofw/pkg/ota"
	otamsgs "github.com/robotalks/robofw/pkg/ota/msgs"
)

// DefaultCommandBacklog is the number of update commands queued for execution.
const DefaultCommandBacklog = 16

// ErrBusy indicates the command backlog is full.
var ErrBusy = errors.New("update handler busy")

// Handler takes update commands from the loop and executes them in order
// in its own goroutine, since chunk ingestion blocks until the bytes are
// committed.
type Handler struct {
	Updater *ota.Updater
	// CheckInterval is the interval of timeout checks.
	CheckInterval time.Duration

	cmds chan l1.Command
}

// NewHandler creates a Handler.
func NewHandler(u *ota.Updater) *Handler {
	interval := u.Config.Timeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return &Handler{
		Updater:       u,
		CheckInterval: interval,
		cmds:          make(chan l1.Command, DefaultCommandBacklog),
	}
}

// IsUpdateCommand indicates msg is handled by Handler.
func IsUpdateCommand(msg fx.Message) bool {
	switch msg.(type) {
	case *otamsgs.UpdateBegin, *otamsgs.UpdateChunk, *otamsgs.UpdateAbort, *otamsgs.UpdateStatusQuery:
		return true
	}
	return false
}

// Control implements Controller.
func (h *Handler) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok || !IsUpdateCommand(cmdMsg.Command.Msg()) {
			return
		}
		mctx.MessageTaken()
		select {
		case h.cmds <- cmdMsg.Command:
		default:
			glog.Warningf("update command %s rejected: %v", msgs.MessageName(cmdMsg.Command.Msg()), ErrBusy)
			errs.Add(cmdMsg.Command.Done(msgs.NewCommandErr(ErrBusy)))
		}
	}))
	return errs.Aggregate()
}

// Run implements Runnable.
func (h *Handler) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Updater.Abort(context.Background(), "controller stopped")
			return ctx.Err()
		case <-ticker.C:
			h.Updater.CheckTimeout(ctx)
		case cmd := <-h.cmds:
			reply := h.Execute(ctx, cmd.Msg())
			if err := cmd.Done(reply); err != nil {
				glog.Warningf("reply %s: %v", msgs.MessageName(cmd.Msg()), err)
			}
		}
	}
}

// Execute executes an update command and returns the reply.
func (h *Handler) Execute(ctx context.Context, msg fx.Message) fx.Message {
	var err error
	switch m := msg.(type) {
	case *otamsgs.UpdateBegin:
		err = h.Updater.Begin(ctx, m.TotalSize, m.TotalChunks)
	case *otamsgs.UpdateChunk:
		err = h.Updater.ProcessChunk(ctx, ota.Chunk{Index: m.Index, Data: m.Data, IsLast: m.Last})
	case *otamsgs.UpdateAbort:
		err = h.Updater.Abort(ctx, m.Reason)
		if errors.Is(err, ota.ErrSessionAborted) {
			// the requested outcome.
			err = nil
		}
	case *otamsgs.UpdateStatusQuery:
		return StatusReply(h.Updater.Progress())
	default:
		err = msgs.ErrUnsupportedCommand
	}
	if err != nil {
		return msgs.NewCommandErr(err)
	}
	return msgs.NewCommandOK()
}

// StatusReply converts a progress snapshot.
func StatusReply(p ota.Progress) *otamsgs.UpdateStatusReply {
	return &otamsgs.UpdateStatusReply{
		State:          string(p.State),
		SessionID:      p.SessionID,
		ReceivedSize:   p.ReceivedSize,
		TotalSize:      p.TotalSize,
		ReceivedChunks: p.ReceivedChunks,
		TotalChunks:    p.TotalChunks,
	}
}

// AddToLoop implements LoopAdder.
func (h *Handler) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvControl, fx.ControlFunc(h.Control))
	loop.AddRunnable(fx.NamedRun("ota-handler", h))
}

// EventReporter implements ota.StatusReporter and ota.ProgressReporter by
// sending L1 events.
type EventReporter struct {
	Registrar l1.Registrar
}

// ReportStatus implements ota.StatusReporter.
func (r *EventReporter) ReportStatus(ctx context.Context, st ota.Status) error {
	return r.Registrar.SendEvent(ctx, &otamsgs.UpdateStatus{
		Event:        st.Event,
		Status:       st.Status,
		Detail:       st.Detail,
		SessionID:    st.SessionID,
		ReceivedSize: st.ReceivedSize,
		TotalSize:    st.TotalSize,
	})
}

// ReportProgress implements ota.ProgressReporter.
func (r *EventReporter) ReportProgress(ctx context.Context, p ota.Progress) error {
	return r.Registrar.SendEvent(ctx, &otamsgs.UpdateProgress{
		SessionID:    p.SessionID,
		ReceivedSize: p.ReceivedSize,
		TotalSize:    p.TotalSize,
	})
}

// AddToLoop implements LoopAdder.
func (s *Service) AddToLoop(loop *fx.Loop) {
	loop.Add(s.Handler)
}
