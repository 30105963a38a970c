// Package netconn adapts the net package to [transport.Conn] and
// [transport.ConnListener].
package netconn

import (
	"context"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"webstack/transport"

	"github.com/pkg/errors"
)

type conn struct {
	nc net.Conn
}

var (
	_ transport.Conn     = (*conn)(nil)
	_ transport.FileConn = (*conn)(nil)
)

// Wrap adapts nc. Errors are translated to the transport sentinels,
// so a peer hanging up reads as [transport.ErrConnClosed].
func Wrap(nc net.Conn) transport.FileConn { return &conn{nc: nc} }

func (c *conn) Read(p []byte) (int, error) {
	n, err := c.nc.Read(p)
	return n, translate(err)
}

func (c *conn) Write(p []byte) (int, error) {
	n, err := c.nc.Write(p)
	return n, translate(err)
}

func (c *conn) Close() error {
	if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *conn) LocalAddr() transport.Addr  { return c.nc.LocalAddr() }
func (c *conn) RemoteAddr() transport.Addr { return c.nc.RemoteAddr() }

func (c *conn) SetReadDeadLine(t time.Time)  { _ = c.nc.SetReadDeadline(t) }
func (c *conn) SetWriteDeadLine(t time.Time) { _ = c.nc.SetWriteDeadline(t) }

func (c *conn) SendFile(f *os.File, n int64) (int64, error) {
	tc, ok := c.nc.(*net.TCPConn)
	if !ok || n <= 0 {
		return 0, transport.ErrSendFileUnsupported
	}

	written, err := sendFile(tc, f, n)
	return written, translate(err)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrSendFileUnsupported):
		return err
	case errors.Is(err, os.ErrDeadlineExceeded):
		return transport.ErrDeadLineExceeded
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return transport.ErrConnClosed
	}
	return err
}

type Listener struct {
	l net.Listener
}

var _ transport.ConnListener = (*Listener)(nil)

// Listen announces on a TCP address such as ":8000".
func Listen(addr string) (*Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", addr)
	}
	return &Listener{l: l}, nil
}

func (l *Listener) Addr() transport.Addr { return l.l.Addr() }

// Accept waits for a connection until ctx is done.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { l.setDeadline(time.Now()) })
	nc, err := l.l.Accept()
	if !stop() {
		l.setDeadline(time.Time{})
	}

	switch {
	case err == nil:
		return Wrap(nc), nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, net.ErrClosed):
		return nil, transport.ErrConnListenerClosed
	}
	return nil, errors.Wrap(err, "accepting connection")
}

func (l *Listener) Close() error {
	if err := l.l.Close(); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return transport.ErrConnListenerClosed
		}
		return err
	}
	return nil
}

func (l *Listener) setDeadline(t time.Time) {
	if dl, ok := l.l.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dl.SetDeadline(t)
	}
}
