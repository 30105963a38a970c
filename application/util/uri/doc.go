// Package uri implements the percent-encoding and query grammar
// of Uniform Resource Identifier (URI) used by request paths and forms.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc3986
//
// - https://url.spec.whatwg.org/#application/x-www-form-urlencoded
package uri
