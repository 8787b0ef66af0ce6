package comm

import (
	"context"
	"sync"

	fx "github.com/robotalks/robofw/pkg/framework"
)

// Peers tracks the pipes of connected peers for registrars accepting
// connections. Events are sent to all peers.
type Peers struct {
	lock  sync.Mutex
	pipes map[*Pipe]struct{}
}

// Serve runs a pipe for a connected peer until the peer disconnects or ctx
// is done. Received commands are posted to the loop in ctx.
func (p *Peers) Serve(ctx context.Context, rw PacketReadWriter) error {
	pipe := NewPipe(rw)
	pipe.Handler = LoopDispatcher(pipe)
	p.lock.Lock()
	if p.pipes == nil {
		p.pipes = make(map[*Pipe]struct{})
	}
	p.pipes[pipe] = struct{}{}
	p.lock.Unlock()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pipe.Close()
		case <-done:
		}
	}()
	err := pipe.Run(ctx)
	close(done)

	p.lock.Lock()
	delete(p.pipes, pipe)
	p.lock.Unlock()
	return err
}

// SendEvent implements Registrar.
func (p *Peers) SendEvent(ctx context.Context, msg fx.Message) error {
	p.lock.Lock()
	pipes := make([]*Pipe, 0, len(p.pipes))
	for pipe := range p.pipes {
		pipes = append(pipes, pipe)
	}
	p.lock.Unlock()
	var errs fx.AggregatedError
	for _, pipe := range pipes {
		errs.Add(pipe.SendEventMsg(msg))
	}
	return errs.Aggregate()
}

// Len returns the number of connected peers.
func (p *Peers) Len() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.pipes)
}
