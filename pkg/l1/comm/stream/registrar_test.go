package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1"
	"github.com/robotalks/robofw/pkg/l1/comm"
	l1msgs "github.com/robotalks/robofw/pkg/l1/msgs"
	"github.com/robotalks/robofw/pkg/ota/msgs"
)

func TestRegistrarAndConnector(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := NewRegistrar("127.0.0.1:0")
	addr, err := reg.Listen()
	require.NoError(t, err)
	go fx.NewLoop().Add(reg, &comm.UnsupportedCommands{}).Run(ctx)

	connector, err := NewConnector(Scheme + "://" + addr.String())
	require.NoError(t, err)
	_, err = connector.Discover(ctx)
	require.ErrorIs(t, err, ErrNoDiscovery)
	c, err := connector.Connect(ctx, l1.ControllerRef{Type: "robofw", ID: "test"})
	require.NoError(t, err)
	conn := c.(*comm.ControllerConn)
	defer conn.Close()

	events := make(chan *msgs.UpdateProgress, 1)
	connLoop := fx.NewLoop().Add(conn)
	connLoop.AddController(fx.PrLvControl, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
			if ev, ok := mctx.CurrentMessage().(*msgs.UpdateProgress); ok {
				mctx.MessageTaken()
				events <- ev
			}
		}))
		return nil
	}))
	go connLoop.Run(ctx)

	reply, err := l1.Await(ctx, conn.DoCommand(&msgs.UpdateAbort{}))
	require.IsType(t, &l1msgs.CommandErr{}, reply)
	require.EqualError(t, err, l1msgs.ErrUnsupportedCommand.Error())

	require.Equal(t, 1, reg.Connections())
	require.NoError(t, reg.SendEvent(ctx, &msgs.UpdateProgress{ReceivedSize: 7, TotalSize: 9}))
	select {
	case ev := <-events:
		require.Equal(t, int64(7), ev.ReceivedSize)
	case <-time.After(3 * time.Second):
		require.Fail(t, "event not received")
	}
}

func TestNewConnectorInvalid(t *testing.T) {
	_, err := NewConnector("tcp://host:1883")
	require.Error(t, err)
	_, err = NewConnector(Scheme + "://")
	require.Error(t, err)
}
