package controller

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofw/pkg/l1"
)

func TestNewEnv(t *testing.T) {
	tests := []struct {
		name       string
		conf       Config
		registrars int
		fail       bool
	}{
		{name: "no ref", conf: Config{MQTTBrokerURL: "mqtt://localhost:1883/"}, fail: true},
		{name: "no registrar", conf: Config{Info: l1.ControllerInfo{Ref: l1.ControllerRef{Type: "rover", ID: "1"}}}, fail: true},
		{name: "mqtt", conf: Config{
			Info:          l1.ControllerInfo{Ref: l1.ControllerRef{Type: "rover", ID: "1"}},
			MQTTBrokerURL: "mqtt://localhost:1883/robo/",
		}, registrars: 1},
		{name: "both", conf: Config{
			Info:          l1.ControllerInfo{Ref: l1.ControllerRef{Type: "rover", ID: "1"}},
			MQTTBrokerURL: "mqtt://localhost:1883/robo/",
			WebsocketAddr: "127.0.0.1:0",
		}, registrars: 2},
		{name: "stream only", conf: Config{
			Info:       l1.ControllerInfo{Ref: l1.ControllerRef{Type: "rover", ID: "1"}},
			StreamAddr: "127.0.0.1:0",
		}, registrars: 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env, err := test.conf.NewEnv()
			if test.fail {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, env.Registrar.Registrars, test.registrars)
			require.Len(t, env.RegistryURLs, test.registrars)
		})
	}
}
