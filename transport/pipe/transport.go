package pipe

import (
	"context"
	"sync"

	"webstack/transport"

	"github.com/benbjohnson/clock"
)

type dialRequest struct {
	conn     *end
	accepted chan struct{}
}

// Transport connects dialers to listeners by name, entirely in memory.
type Transport struct {
	listeners map[Addr]*Listener
	clock     clock.Clock

	mu sync.Mutex
}

var _ transport.ConnDialer = (*Transport)(nil)

func NewTransport(clock clock.Clock) *Transport {
	return &Transport{
		listeners: make(map[Addr]*Listener),
		clock:     clock,
	}
}

// Dial blocks until a listener on addr accepts the connection.
func (t *Transport) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	t.mu.Lock()
	l, ok := t.listeners[Addr{Name: addr.String()}]
	t.mu.Unlock()

	if !ok {
		return nil, transport.ErrConnRefused
	}

	local, remote := Pipe("dialer", l.addr.Name, t.clock)
	req := dialRequest{conn: remote, accepted: make(chan struct{})}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrConnRefused
	case l.requests <- req:
	}

	select {
	case <-ctx.Done():
		remote.Close()
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrConnRefused
	case <-req.accepted:
	}

	return local, nil
}

func (t *Transport) Listen(name string) (*Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	addr := Addr{Name: name}
	if _, ok := t.listeners[addr]; ok {
		return nil, transport.ErrAddrAlreadyInUse
	}

	l := &Listener{
		addr:      addr,
		transport: t,
		requests:  make(chan dialRequest),
		closed:    make(chan struct{}),
	}
	t.listeners[addr] = l

	return l, nil
}

type Listener struct {
	addr      Addr
	transport *Transport

	requests chan dialRequest
	closed   chan struct{}
	once     sync.Once
}

var _ transport.ConnListener = (*Listener)(nil)

func (l *Listener) Addr() transport.Addr { return l.addr }

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrConnListenerClosed
	case req := <-l.requests:
		close(req.accepted)
		return req.conn, nil
	}
}

func (l *Listener) Close() error {
	err := transport.ErrConnListenerClosed
	l.once.Do(func() {
		close(l.closed)

		l.transport.mu.Lock()
		delete(l.transport.listeners, l.addr)
		l.transport.mu.Unlock()

		err = nil
	})
	return err
}
