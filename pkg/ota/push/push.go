// Package push sends a firmware image to a remote controller.
package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1"
	"github.com/robotalks/robofw/pkg/l1/msgs"
	otamsgs "github.com/robotalks/robofw/pkg/ota/msgs"
)

// DefaultChunkSize is the payload size of a chunk.
const DefaultChunkSize = 1024

// AbortTimeout bounds the abort sent after a failed push.
const AbortTimeout = 5 * time.Second

// ErrShortImage indicates the reader ended before size bytes.
var ErrShortImage = errors.New("image shorter than declared size")

// ProgressFunc is called after each chunk is acknowledged.
type ProgressFunc func(sent, total int64)

// Pusher pushes images over an L1 connection. Each chunk waits for its
// reply before the next is sent.
type Pusher struct {
	Conn      l1.ControllerConn
	ChunkSize int
	Progress  ProgressFunc
}

// New creates a Pusher.
func New(conn l1.ControllerConn) *Pusher {
	return &Pusher{Conn: conn, ChunkSize: DefaultChunkSize}
}

// Push sends size bytes read from r. On failure after the session began,
// the session is aborted.
func (p *Pusher) Push(ctx context.Context, r io.Reader, size int64) error {
	if size <= 0 {
		return fmt.Errorf("invalid image size %d", size)
	}
	chunkSize := p.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunks := uint32((size + int64(chunkSize) - 1) / int64(chunkSize))
	if err := p.do(ctx, &otamsgs.UpdateBegin{TotalSize: size, TotalChunks: chunks}); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	glog.V(1).Infof("push: %d bytes in %d chunks", size, chunks)
	if err := p.send(ctx, r, size, chunkSize); err != nil {
		p.abort(err)
		return err
	}
	return nil
}

func (p *Pusher) send(ctx context.Context, r io.Reader, size int64, chunkSize int) error {
	buf := make([]byte, chunkSize)
	var sent int64
	for index := uint32(0); sent < size; index++ {
		n := chunkSize
		if remain := size - sent; remain < int64(n) {
			n = int(remain)
		}
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: %d of %d bytes", ErrShortImage, sent, size)
			}
			return fmt.Errorf("read image: %w", err)
		}
		chunk := &otamsgs.UpdateChunk{
			Index: index,
			Data:  append([]byte(nil), buf[:n]...),
			Last:  sent+int64(n) == size,
		}
		if err := p.do(ctx, chunk); err != nil {
			return fmt.Errorf("chunk %d: %w", index, err)
		}
		sent += int64(n)
		if p.Progress != nil {
			p.Progress(sent, size)
		}
	}
	return nil
}

func (p *Pusher) abort(cause error) {
	// the push context may be the reason of failure.
	ctx, cancel := context.WithTimeout(context.Background(), AbortTimeout)
	defer cancel()
	if err := p.do(ctx, &otamsgs.UpdateAbort{Reason: cause.Error()}); err != nil {
		glog.Warningf("push: abort: %v", err)
	}
}

func (p *Pusher) do(ctx context.Context, msg fx.Message) error {
	reply, err := l1.Await(ctx, p.Conn.DoCommand(msg))
	if err != nil {
		return err
	}
	return ReplyError(reply)
}

// Status queries the session status.
func Status(ctx context.Context, conn l1.ControllerConn) (*otamsgs.UpdateStatusReply, error) {
	reply, err := l1.Await(ctx, conn.DoCommand(&otamsgs.UpdateStatusQuery{}))
	if err != nil {
		return nil, err
	}
	if st, ok := reply.(*otamsgs.UpdateStatusReply); ok {
		return st, nil
	}
	if err := ReplyError(reply); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("unexpected reply %s", msgs.MessageName(reply))
}

// Abort aborts the session with reason.
func Abort(ctx context.Context, conn l1.ControllerConn, reason string) error {
	reply, err := l1.Await(ctx, conn.DoCommand(&otamsgs.UpdateAbort{Reason: reason}))
	if err != nil {
		return err
	}
	return ReplyError(reply)
}

// ReplyError converts a CommandErr reply to an error.
func ReplyError(reply fx.Message) error {
	switch m := reply.(type) {
	case *msgs.CommandErr:
		return m
	case *msgs.CommandOK:
		return nil
	}
	return fmt.Errorf("unexpected reply %s", msgs.MessageName(reply))
}
