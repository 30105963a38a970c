package semantic

import (
	"context"
	"io"
)

// Environ is what a transport hands over for one inbound request.
// Values are already unescaped; the request escapes them again where needed.
type Environ struct {
	Method      string
	ScriptName  string
	PathInfo    string
	QueryString string
	Headers     *Headers

	ServerName string
	ServerPort string
	// Secure is set when the transport itself terminated TLS.
	Secure     bool
	RemoteAddr string

	// Body yields at most Content-Length bytes; it may be shared with the connection.
	Body    io.Reader
	Context context.Context
}
