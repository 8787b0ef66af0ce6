package websocket

import (
	"context"
	"net"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1/comm"
)

// DefaultPath is the default HTTP path serving websocket connections.
const DefaultPath = "/l1"

// Registrar implements l1.Registrar by accepting websocket connections from
// remote controllers. Events are sent to all connected peers.
type Registrar struct {
	Addr string
	Path string

	listener net.Listener
	peers    comm.Peers
}

// NewRegistrar creates a Registrar listening on addr.
func NewRegistrar(addr string) *Registrar {
	return &Registrar{Addr: addr, Path: DefaultPath}
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
	loop.AddRunnable(fx.NamedRun("websocket-registrar", r))
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	if _, err := r.Listen(); err != nil {
		return err
	}
	path := r.Path
	if path == "" {
		path = DefaultPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Handler(func(conn *websocket.Conn) {
		r.serve(ctx, conn)
	}))
	server := &http.Server{Handler: mux}
	glog.Infof("websocket registrar on %s%s", r.listener.Addr(), path)
	return fx.RunWithContextCloser(ctx, server, func() error {
		err := server.Serve(r.listener)
		if err == http.ErrServerClosed {
			err = nil
		}
		return err
	})
}

func (r *Registrar) serve(ctx context.Context, conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	peer := conn.Request().RemoteAddr
	glog.V(2).Infof("websocket peer %s connected", peer)
	err := r.peers.Serve(ctx, New(conn))
	glog.V(2).Infof("websocket peer %s disconnected: %v", peer, err)
}

// Dial connects to a websocket registrar, e.g. ws://host:port/l1.
func Dial(url string) (*ReadWriter, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return New(conn), nil
}
