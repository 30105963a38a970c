package transport

import (
	"context"
	"errors"
	"os"
	"time"
)

var (
	ErrConnClosed          = errors.New("connection is closed")
	ErrConnListenerClosed  = errors.New("conn listener is closed")
	ErrDeadLineExceeded    = errors.New("deadline exceeded")
	ErrAddrAlreadyInUse    = errors.New("address already in use")
	ErrConnRefused         = errors.New("connection refused")
	ErrSendFileUnsupported = errors.New("sendfile is not supported by this connection")
)

type Conn interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error

	LocalAddr() Addr
	RemoteAddr() Addr

	SetReadDeadLine(t time.Time)
	SetWriteDeadLine(t time.Time)
}

// FileConn is a [Conn] that can hand a file to the kernel directly.
// SendFile returns [ErrSendFileUnsupported] when nothing was written
// and the caller should copy the file itself.
type FileConn interface {
	Conn
	SendFile(f *os.File, n int64) (int64, error)
}

type ConnListener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() Addr
	Close() error
}

type ConnDialer interface {
	Dial(ctx context.Context, addr Addr) (Conn, error)
}
