package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1"
	"github.com/robotalks/robofw/pkg/l1/comm"
)

// ErrNoDiscovery indicates the registry can't enumerate controllers.
var ErrNoDiscovery = errors.New("discovery not supported by stream registry")

// Scheme is the URL scheme of stream registries, e.g. l1+tcp://host:port.
const Scheme = "l1+tcp"

// Registrar implements l1.Registrar by accepting TCP connections carrying
// length-prefixed packets.
type Registrar struct {
	Addr string

	listener net.Listener
	peers    comm.Peers
}

// NewRegistrar creates a Registrar listening on addr.
func NewRegistrar(addr string) *Registrar {
	return &Registrar{Addr: addr}
}

// Listen starts listening, Run uses the listener if already started.
func (r *Registrar) Listen() (net.Addr, error) {
	if r.listener == nil {
		ln, err := net.Listen("tcp", r.Addr)
		if err != nil {
			return nil, err
		}
		r.listener = ln
	}
	return r.listener.Addr(), nil
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.peers.SendEvent(ctx, msg)
}

// Connections returns the number of connected peers.
func (r *Registrar) Connections() int {
	return r.peers.Len()
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("stream-registrar", r))
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	if _, err := r.Listen(); err != nil {
		return err
	}
	glog.Infof("stream registrar on %s", r.listener.Addr())
	return fx.RunWithContextCloser(ctx, r.listener, func() error {
		for {
			conn, err := r.listener.Accept()
			if err != nil {
				return err
			}
			go r.serve(ctx, conn)
		}
	})
}

func (r *Registrar) serve(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr()
	glog.V(2).Infof("stream peer %s connected", peer)
	err := r.peers.Serve(ctx, New(conn))
	glog.V(2).Infof("stream peer %s disconnected: %v", peer, err)
}

// Connector implements l1.Connector by dialing the stream registrar of a
// single controller.
type Connector struct {
	Addr              string
	CommandExpiration time.Duration
}

// NewConnector creates a Connector from l1+tcp://host:port.
func NewConnector(rawURL string) (*Connector, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != Scheme || u.Host == "" {
		return nil, fmt.Errorf("invalid stream registry URL %q", rawURL)
	}
	return &Connector{Addr: u.Host}, nil
}

// Discover implements Connector.
func (c *Connector) Discover(ctx context.Context) ([]l1.ControllerInfo, error) {
	return nil, ErrNoDiscovery
}

// Connect implements Connector. The ref is not verified as the address
// reaches the controller directly.
func (c *Connector) Connect(ctx context.Context, ref l1.ControllerRef) (l1.ControllerConn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, err
	}
	conn := &comm.ControllerConn{}
	conn.Init(New(nc))
	if c.CommandExpiration > 0 {
		conn.Expiration = c.CommandExpiration
	}
	return conn, nil
}
