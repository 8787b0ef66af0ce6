package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/robotalks/robofw/pkg/l1"
	"github.com/robotalks/robofw/pkg/l1/comm"
)

// ErrNoDiscovery indicates the registry can't enumerate controllers.
var ErrNoDiscovery = errors.New("discovery not supported by websocket registry")

// Connector implements l1.Connector by dialing the websocket registrar
// of a single controller.
type Connector struct {
	URL               string
	CommandExpiration time.Duration
}

// NewConnector creates a Connector.
func NewConnector(url string) *Connector {
	return &Connector{URL: url}
}

// Discover implements Connector.
func (c *Connector) Discover(ctx context.Context) ([]l1.ControllerInfo, error) {
	return nil, ErrNoDiscovery
}

// Connect implements Connector. The ref is not verified as the URL
// addresses the controller directly.
func (c *Connector) Connect(ctx context.Context, ref l1.ControllerRef) (l1.ControllerConn, error) {
	rw, err := Dial(c.URL)
	if err != nil {
		return nil, err
	}
	conn := &comm.ControllerConn{}
	conn.Init(rw)
	if c.CommandExpiration > 0 {
		conn.Expiration = c.CommandExpiration
	}
	return conn, nil
}
