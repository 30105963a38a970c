package iolib

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const (
	// DefaultMaxBuffer is the soft cap of bytes a [LimitedStream] buffers while seeking a line.
	DefaultMaxBuffer = 64 << 20

	readChunk                = 64 << 10
	maxConsecutiveEmptyReads = 100
)

// StreamError is returned when the source of a [LimitedStream] fails,
// or ends before the limit is reached.
type StreamError struct{ Err error }

func (e *StreamError) Error() string { return "reading limited stream: " + e.Err.Error() }
func (e *StreamError) Unwrap() error { return e.Err }

// LimitedStream reads at most a fixed number of bytes from a source.
// It never asks the source for more than the bytes left under the limit,
// so the source can be shared with whatever follows the limited part.
type LimitedStream struct {
	r         io.Reader
	remaining int64 // bytes that can still be read from r.
	buf       []byte
	maxBuf    int
}

type StreamOption func(*LimitedStream)

// WithMaxBuffer sets the soft cap of [LimitedStream.ReadLine] buffering.
// Non-positive values disable the cap.
func WithMaxBuffer(n int) StreamOption {
	return func(s *LimitedStream) { s.maxBuf = n }
}

func NewLimitedStream(r io.Reader, limit int64, opts ...StreamOption) *LimitedStream {
	s := &LimitedStream{
		r:         r,
		remaining: max(limit, 0),
		maxBuf:    DefaultMaxBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Remaining returns how many bytes are left to be returned.
func (s *LimitedStream) Remaining() int64 { return s.remaining + int64(len(s.buf)) }

func (s *LimitedStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if len(s.buf) > 0 {
		return copy(p, s.take(min(len(p), len(s.buf)))), nil
	}

	if s.remaining == 0 {
		return 0, io.EOF
	}

	b, err := s.readLimited(len(p))
	return copy(p, b), err
}

// ReadN returns up to size bytes. Negative size reads everything left.
// Like [io.Reader.Read], it may return less than size without an error.
func (s *LimitedStream) ReadN(size int) ([]byte, error) {
	if size < 0 {
		return s.ReadAll()
	}

	if size <= len(s.buf) {
		return s.take(size), nil
	}

	head := s.take(len(s.buf))
	more, err := s.readLimited(size - len(head))

	return append(head, more...), err
}

func (s *LimitedStream) ReadAll() ([]byte, error) {
	out := make([]byte, 0, min(s.Remaining(), readChunk))
	out = append(out, s.take(len(s.buf))...)

	empty := 0
	for s.remaining > 0 {
		more, err := s.readLimited(int(min(s.remaining, readChunk)))
		out = append(out, more...)
		if err != nil {
			return out, err
		}

		if len(more) > 0 {
			empty = 0
		} else if empty++; empty >= maxConsecutiveEmptyReads {
			return out, &StreamError{Err: io.ErrNoProgress}
		}
	}

	return out, nil
}

// ReadLine returns bytes up to and including the next '\n'.
// It stops earlier when size (if positive) bytes are collected,
// the buffer reaches its soft cap or the limit is reached.
func (s *LimitedStream) ReadLine(size int) ([]byte, error) {
	var err error

	empty := 0
	for s.remaining > 0 &&
		bytes.IndexByte(s.buf, '\n') < 0 &&
		(size <= 0 || len(s.buf) < size) &&
		(s.maxBuf <= 0 || len(s.buf) < s.maxBuf) {

		want := readChunk
		if size > 0 {
			want = size - len(s.buf)
		}
		if s.maxBuf > 0 {
			want = min(want, s.maxBuf-len(s.buf))
		}

		var more []byte
		more, err = s.readLimited(want)
		s.buf = append(s.buf, more...)
		if err != nil {
			break
		}

		if len(more) > 0 {
			empty = 0
		} else if empty++; empty >= maxConsecutiveEmptyReads {
			err = &StreamError{Err: io.ErrNoProgress}
			break
		}
	}

	n := len(s.buf)
	if size > 0 && size < n {
		n = size
	}
	if idx := bytes.IndexByte(s.buf[:n], '\n'); idx >= 0 {
		n = idx + 1
	}

	return s.take(n), err
}

// readLimited reads once from the source, asking for at most n bytes.
func (s *LimitedStream) readLimited(n int) ([]byte, error) {
	if int64(n) > s.remaining {
		n = int(s.remaining)
	}
	if n <= 0 {
		return nil, nil
	}

	p := make([]byte, n)
	got, err := s.r.Read(p)
	s.remaining -= int64(got)
	p = p[:got]

	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, io.EOF) && s.remaining == 0:
		return p, nil
	case errors.Is(err, io.EOF):
		// Source ended before the limit.
		s.remaining = 0
		return p, &StreamError{Err: io.ErrUnexpectedEOF}
	default:
		return p, &StreamError{Err: err}
	}
}

func (s *LimitedStream) take(n int) []byte {
	b := bytes.Clone(s.buf[:n])
	s.buf = s.buf[n:]
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return b
}
