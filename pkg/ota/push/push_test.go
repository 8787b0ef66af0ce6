package push

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1"
	"github.com/robotalks/robofw/pkg/l1/msgs"
	otamsgs "github.com/robotalks/robofw/pkg/ota/msgs"
)

type future chan l1.Result

func (f future) ResultChan() <-chan l1.Result { return f }

// fakeConn replies to each command with the result of reply.
type fakeConn struct {
	lock  sync.Mutex
	sent  []fx.Message
	reply func(fx.Message) l1.Result
}

func (c *fakeConn) DoCommand(msg fx.Message) l1.CommandFuture {
	c.lock.Lock()
	c.sent = append(c.sent, msg)
	c.lock.Unlock()
	f := make(future, 1)
	f <- c.reply(msg)
	return f
}

func okReply(fx.Message) l1.Result {
	return l1.Result{Msg: msgs.NewCommandOK()}
}

func TestPush(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
		chunks    []int
	}{
		{name: "exact", size: 2048, chunkSize: 1024, chunks: []int{1024, 1024}},
		{name: "remainder", size: 2500, chunkSize: 1024, chunks: []int{1024, 1024, 452}},
		{name: "single", size: 10, chunkSize: 1024, chunks: []int{10}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			image := bytes.Repeat([]byte{0x5a}, test.size)
			conn := &fakeConn{reply: okReply}
			p := New(conn)
			p.ChunkSize = test.chunkSize
			var progress []int64
			p.Progress = func(sent, total int64) {
				require.Equal(t, int64(test.size), total)
				progress = append(progress, sent)
			}
			require.NoError(t, p.Push(context.Background(), bytes.NewReader(image), int64(test.size)))

			require.Len(t, conn.sent, len(test.chunks)+1)
			begin, ok := conn.sent[0].(*otamsgs.UpdateBegin)
			require.True(t, ok)
			require.Equal(t, int64(test.size), begin.TotalSize)
			require.Equal(t, uint32(len(test.chunks)), begin.TotalChunks)
			var received []byte
			var sent int64
			for i, size := range test.chunks {
				chunk, ok := conn.sent[i+1].(*otamsgs.UpdateChunk)
				require.True(t, ok)
				require.Equal(t, uint32(i), chunk.Index)
				require.Len(t, chunk.Data, size)
				require.Equal(t, i == len(test.chunks)-1, chunk.Last)
				received = append(received, chunk.Data...)
				sent += int64(size)
				require.Equal(t, sent, progress[i])
			}
			require.Equal(t, image, received)
		})
	}
}

func TestPushAborts(t *testing.T) {
	t.Run("short image", func(t *testing.T) {
		conn := &fakeConn{reply: okReply}
		err := New(conn).Push(context.Background(), bytes.NewReader(make([]byte, 100)), 2000)
		require.ErrorIs(t, err, ErrShortImage)
		abort, ok := conn.sent[len(conn.sent)-1].(*otamsgs.UpdateAbort)
		require.True(t, ok)
		require.Contains(t, abort.Reason, ErrShortImage.Error())
	})
	t.Run("rejected chunk", func(t *testing.T) {
		conn := &fakeConn{reply: func(msg fx.Message) l1.Result {
			if chunk, ok := msg.(*otamsgs.UpdateChunk); ok && chunk.Index == 1 {
				return l1.Result{Msg: msgs.NewCommandErrFromMsg("storage write failed")}
			}
			return okReply(msg)
		}}
		p := New(conn)
		p.ChunkSize = 10
		err := p.Push(context.Background(), bytes.NewReader(make([]byte, 30)), 30)
		require.Error(t, err)
		require.Contains(t, err.Error(), "chunk 1")
		require.Len(t, conn.sent, 4)
		require.IsType(t, &otamsgs.UpdateAbort{}, conn.sent[3])
	})
	t.Run("rejected begin", func(t *testing.T) {
		conn := &fakeConn{reply: func(fx.Message) l1.Result {
			return l1.Result{Msg: msgs.NewCommandErrFromMsg("update already in progress")}
		}}
		err := New(conn).Push(context.Background(), bytes.NewReader(make([]byte, 30)), 30)
		require.Error(t, err)
		require.Len(t, conn.sent, 1)
	})
	t.Run("invalid size", func(t *testing.T) {
		conn := &fakeConn{reply: okReply}
		require.Error(t, New(conn).Push(context.Background(), bytes.NewReader(nil), 0))
		require.Empty(t, conn.sent)
	})
}

func TestStatusAndAbort(t *testing.T) {
	conn := &fakeConn{reply: func(msg fx.Message) l1.Result {
		switch msg.(type) {
		case *otamsgs.UpdateStatusQuery:
			return l1.Result{Msg: &otamsgs.UpdateStatusReply{State: "active", ReceivedSize: 5}}
		case *otamsgs.UpdateAbort:
			return l1.Result{Err: errors.New("expired")}
		}
		return okReply(msg)
	}}
	st, err := Status(context.Background(), conn)
	require.NoError(t, err)
	require.Equal(t, "active", st.State)
	require.Equal(t, int64(5), st.ReceivedSize)
	require.EqualError(t, Abort(context.Background(), conn, "stop"), "expired")

	require.NoError(t, ReplyError(msgs.NewCommandOK()))
	require.EqualError(t, ReplyError(msgs.NewCommandErrFromMsg("bad")), "bad")
	require.Error(t, ReplyError(&otamsgs.UpdateStatus{}))
}
