// Package http implements the HTTP/1.1 message framing
// the server speaks on a connection: request line, status line and field lines.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
