//go:build linux

package netconn

import (
	"net"
	"os"

	"webstack/transport"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Keeps each call under the Linux per-call limit.
const maxSendfileChunk = 1 << 30

func sendFile(tc *net.TCPConn, f *os.File, n int64) (int64, error) {
	rc, err := tc.SyscallConn()
	if err != nil {
		return 0, transport.ErrSendFileUnsupported
	}

	src := int(f.Fd())

	var written int64
	var serr error
	err = rc.Write(func(fd uintptr) bool {
		for written < n {
			m, e := unix.Sendfile(int(fd), src, nil, int(min(n-written, maxSendfileChunk)))
			if m > 0 {
				written += int64(m)
			}

			switch {
			case e == unix.EAGAIN:
				// Wait until the socket is writable again.
				return false
			case e == unix.EINTR:
				continue
			case e != nil:
				serr = e
				return true
			case m == 0:
				// The file ended before n bytes.
				return true
			}
		}
		return true
	})

	if written == 0 && (serr == unix.EINVAL || serr == unix.ENOSYS) {
		return 0, transport.ErrSendFileUnsupported
	}
	if serr != nil {
		return written, errors.Wrap(serr, "sendfile")
	}
	if err != nil {
		return written, err
	}
	return written, nil
}
