//go:build !linux

package netconn

import (
	"net"
	"os"

	"webstack/transport"
)

func sendFile(*net.TCPConn, *os.File, int64) (int64, error) {
	return 0, transport.ErrSendFileUnsupported
}
