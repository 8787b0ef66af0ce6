package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofw/pkg/l1/comm/mqtt"
	"github.com/robotalks/robofw/pkg/l1/comm/stream"
	"github.com/robotalks/robofw/pkg/l1/comm/websocket"
)

func TestNewConnector(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		expect interface{}
	}{
		{name: "mqtt", url: "mqtt://localhost:1883/robo/", expect: &mqtt.Connector{}},
		{name: "websocket", url: "ws://localhost:8080/l1", expect: &websocket.Connector{}},
		{name: "stream", url: "l1+tcp://localhost:8081", expect: &stream.Connector{}},
		{name: "stream without host", url: "l1+tcp://"},
		{name: "unknown", url: "http://localhost"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conf := NewConfig()
			conf.RegistryURL = test.url
			conn, err := conf.NewConnector()
			if test.expect == nil {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.IsType(t, test.expect, conn)
		})
	}
}

func TestConnectRequiresRef(t *testing.T) {
	conf := NewConfig()
	conf.Ref.Type, conf.Ref.ID = "", ""
	_, err := conf.Connect(context.Background())
	require.Error(t, err)
}
