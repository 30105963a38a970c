package transport

import "net"

// Addr names an endpoint. It has the same shape as [net.Addr],
// so addresses from the net package can be used directly.
type Addr interface {
	Network() string
	String() string
}

// HostPort splits addr into host and port.
// Addresses without a port are returned whole as host.
func HostPort(addr Addr) (host, port string) {
	if addr == nil {
		return "", ""
	}

	s := addr.String()
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return s, ""
	}
	return host, port
}
