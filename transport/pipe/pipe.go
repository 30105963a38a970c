// Package pipe provides in-memory connections whose deadlines follow a
// [clock.Clock], so connection timeouts can be driven by a mock clock.
package pipe

import (
	"sync"
	"time"

	"webstack/transport"

	"github.com/benbjohnson/clock"
)

// Addr is the name of one end of a pipe. Names of the form host:port
// split like network addresses.
type Addr struct {
	Name string
}

func (a Addr) Network() string { return "pipe" }
func (a Addr) String() string  { return a.Name }

var (
	_ transport.Addr = Addr{}
	_ transport.Conn = (*end)(nil)
)

// end is one side of a pipe. A writer hands its slice to the peer's
// incoming channel and waits on acks for the number of bytes taken.
type end struct {
	addr Addr
	peer *end

	incoming chan []byte
	acks     chan int
	writeMu  sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	readLimit  *deadline
	writeLimit *deadline
}

func newEnd(name string, clk clock.Clock) *end {
	return &end{
		addr:       Addr{Name: name},
		incoming:   make(chan []byte),
		acks:       make(chan int),
		done:       make(chan struct{}),
		readLimit:  newDeadline(clk),
		writeLimit: newDeadline(clk),
	}
}

// Pipe returns two connected, unbuffered ends named local and remote.
func Pipe(local, remote string, clk clock.Clock) (c1, c2 *end) {
	c1, c2 = newEnd(local, clk), newEnd(remote, clk)
	c1.peer, c2.peer = c2, c1
	return c1, c2
}

func (e *end) LocalAddr() transport.Addr  { return e.addr }
func (e *end) RemoteAddr() transport.Addr { return e.peer.addr }

func (e *end) SetReadDeadLine(t time.Time)  { e.readLimit.set(t) }
func (e *end) SetWriteDeadLine(t time.Time) { e.writeLimit.set(t) }

func (e *end) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}

func (e *end) Read(b []byte) (int, error) {
	if err := e.usable(e.readLimit); err != nil {
		return 0, err
	}

	select {
	case chunk := <-e.incoming:
		n := copy(b, chunk)
		e.peer.acks <- n
		return n, nil
	case <-e.done:
		return 0, transport.ErrConnClosed
	case <-e.peer.done:
		return 0, transport.ErrConnClosed
	case <-e.readLimit.expired():
		return 0, transport.ErrDeadLineExceeded
	}
}

func (e *end) Write(b []byte) (int, error) {
	if err := e.usable(e.writeLimit); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	written := 0
	for len(b) > 0 {
		select {
		case e.peer.incoming <- b:
			n := <-e.acks
			b = b[n:]
			written += n
		case <-e.done:
			return written, transport.ErrConnClosed
		case <-e.peer.done:
			return written, transport.ErrConnClosed
		case <-e.writeLimit.expired():
			return written, transport.ErrDeadLineExceeded
		}
	}
	return written, nil
}

// usable reports why an operation bounded by d cannot start, if it cannot.
func (e *end) usable(d *deadline) error {
	if closed(e.done) || closed(e.peer.done) {
		return transport.ErrConnClosed
	}
	if closed(d.expired()) {
		return transport.ErrDeadLineExceeded
	}
	return nil
}

// deadline is a channel closed once its time passes on clk.
type deadline struct {
	clk clock.Clock

	mu    sync.Mutex
	timer *clock.Timer
	ch    chan struct{}
}

func newDeadline(clk clock.Clock) *deadline {
	return &deadline{clk: clk, ch: make(chan struct{})}
}

// set replaces the deadline. The zero time removes it.
func (d *deadline) set(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if closed(d.ch) {
		d.ch = make(chan struct{})
	}

	switch {
	case t.IsZero():
		return
	case !t.After(d.clk.Now()):
		close(d.ch)
		return
	}

	ch := d.ch
	d.timer = d.clk.AfterFunc(d.clk.Until(t), func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		// Only the channel this timer was armed for.
		if ch == d.ch && !closed(ch) {
			close(ch)
		}
	})
}

func (d *deadline) expired() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ch
}

func closed(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}
