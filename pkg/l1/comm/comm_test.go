package comm

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1"
	"github.com/robotalks/robofw/pkg/l1/msgs"
)

type testPing struct {
	Payload string `protobuf:"bytes,1,opt,name=payload,proto3" json:"payload,omitempty"`
}

func (m *testPing) NewMessage() fx.Message      { return &testPing{} }
func (m *testPing) TypeID() uint32              { return msgs.GroupCustom | 0x0001 }
func (m *testPing) Serializable() proto.Message { return m }
func (m *testPing) ProtoMessage()               {}
func (m *testPing) Reset()                      { *m = testPing{} }
func (m *testPing) String() string              { return proto.CompactTextString(m) }

type testOther struct{}

func (m *testOther) NewMessage() fx.Message      { return &testOther{} }
func (m *testOther) TypeID() uint32              { return msgs.GroupCustom | 0x0002 }
func (m *testOther) Serializable() proto.Message { return m }
func (m *testOther) ProtoMessage()               {}
func (m *testOther) Reset()                      { *m = testOther{} }
func (m *testOther) String() string              { return proto.CompactTextString(m) }

type testEvent struct {
	Value uint32 `protobuf:"varint,1,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *testEvent) NewMessage() fx.Message      { return &testEvent{} }
func (m *testEvent) TypeID() uint32              { return msgs.TypeIDKindEvent | msgs.GroupCustom | 0x0001 }
func (m *testEvent) Serializable() proto.Message { return m }
func (m *testEvent) ProtoMessage()               {}
func (m *testEvent) Reset()                      { *m = testEvent{} }
func (m *testEvent) String() string              { return proto.CompactTextString(m) }

func init() {
	msgs.Register(&testPing{}, &testOther{}, &testEvent{})
}

type chanRW struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once sync.Once
}

func chanPair() (*chanRW, *chanRW) {
	a, b := make(chan []byte, 16), make(chan []byte, 16)
	return &chanRW{in: a, out: b, done: make(chan struct{})},
		&chanRW{in: b, out: a, done: make(chan struct{})}
}

func (c *chanRW) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-c.in:
		return pkt, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *chanRW) WritePacket(pkt []byte) error {
	select {
	case c.out <- pkt:
		return nil
	case <-c.done:
		return io.ErrClosedPipe
	}
}

func (c *chanRW) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *chanRW) Run(ctx context.Context) error {
	<-ctx.Done()
	c.Close()
	return ctx.Err()
}

func awaitResult(t *testing.T, f l1.CommandFuture) l1.Result {
	select {
	case res := <-f.ResultChan():
		return res
	case <-time.After(3 * time.Second):
		require.Fail(t, "command not replied")
	}
	return l1.Result{}
}

func TestRegistrarAndConn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rwCtl, rwConn := chanPair()

	var reg Registrar
	reg.Init(rwCtl)
	pings, replies := make(chan string, 1), make(chan error, 1)
	ctlLoop := fx.NewLoop().Add(&reg, &UnsupportedCommands{})
	ctlLoop.AddController(fx.PrLvControl, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
			cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
			if !ok {
				return
			}
			if ping, ok := cmdMsg.Command.Msg().(*testPing); ok {
				mctx.MessageTaken()
				cmdMsg.Command.Done(msgs.NewCommandOK())
				pings <- ping.Payload
				replies <- cmdMsg.Command.Done(msgs.NewCommandOK())
			}
		}))
		return nil
	}))

	var conn ControllerConn
	conn.Init(rwConn)
	events := make(chan *testEvent, 1)
	connLoop := fx.NewLoop().Add(&conn)
	connLoop.AddController(fx.PrLvControl, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
			if ev, ok := mctx.CurrentMessage().(*testEvent); ok {
				mctx.MessageTaken()
				events <- ev
			}
		}))
		return nil
	}))

	go ctlLoop.Run(ctx)
	go connLoop.Run(ctx)

	res := awaitResult(t, conn.DoCommand(&testPing{Payload: "hello"}))
	require.NoError(t, res.Err)
	require.IsType(t, &msgs.CommandOK{}, res.Msg)
	require.Equal(t, "hello", <-pings)
	require.ErrorIs(t, <-replies, ErrReplied)

	res = awaitResult(t, conn.DoCommand(&testOther{}))
	require.Error(t, res.Err)
	require.Equal(t, msgs.ErrUnsupportedCommand.Error(), res.Err.Error())

	require.NoError(t, reg.SendEvent(ctx, &testEvent{Value: 42}))
	select {
	case ev := <-events:
		require.EqualValues(t, 42, ev.Value)
	case <-time.After(3 * time.Second):
		require.Fail(t, "event not received")
	}
}

func TestPipeRejectsWrongKind(t *testing.T) {
	rw, _ := chanPair()
	p := NewPipe(rw)
	require.ErrorIs(t, p.SendEventMsg(&testPing{}), ErrNotEvent)
	require.ErrorIs(t, p.SendCommandMsg(&testEvent{}, 1), ErrNotCommand)
}

func TestCommandExpiration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, rwConn := chanPair()
	var conn ControllerConn
	conn.Init(rwConn)
	conn.Expiration = 10 * time.Millisecond
	loop := fx.NewLoop().Add(&conn)
	loop.Interval = 5 * time.Millisecond
	go loop.Run(ctx)

	res := awaitResult(t, conn.DoCommand(&testPing{}))
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
}
