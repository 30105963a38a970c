package iolib

import (
	"bytes"
	"errors"
	"io"
)

// UntilReader reads from r up to a delimiter.
// Bytes read past the delimiter are kept and served first by later reads.
type UntilReader struct {
	r   io.Reader
	tmp []byte
	buf []byte
	err error // error returned by r, held until buffered bytes are drained.
}

func NewUntilReader(r io.Reader) *UntilReader {
	return &UntilReader{r: r, tmp: make([]byte, 1024)}
}

func (ur *UntilReader) Read(p []byte) (n int, err error) {
	if len(ur.buf) > 0 {
		return copy(p, ur.take(min(len(p), len(ur.buf)))), nil
	}

	if ur.err != nil {
		err, ur.err = ur.err, nil
		return 0, err
	}

	return ur.r.Read(p)
}

// Buffered returns the number of bytes read from the source but not consumed yet.
func (ur *UntilReader) Buffered() int { return len(ur.buf) }

var (
	ErrZeroLenDelim = errors.New("delim has zero length")
	ErrLimitReached = errors.New("limit reached before delim")
)

func (ur *UntilReader) ReadUntil(delim []byte) ([]byte, error) {
	return ur.ReadUntilLimit(delim, 0)
}

// ReadUntilLimit is [UntilReader.ReadUntil] returning at most limit bytes.
// When the delim is not found within limit, the first limit bytes are returned
// with [ErrLimitReached]. Zero limit means no limit.
func (ur *UntilReader) ReadUntilLimit(delim []byte, limit uint) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}

	from := 0
	for {
		if idx := bytes.Index(ur.buf[from:], delim); idx >= 0 {
			end := from + idx + len(delim)
			if limit > 0 && uint(end) > limit {
				return ur.take(int(limit)), ErrLimitReached
			}
			return ur.take(end), nil
		}

		if limit > 0 && uint(len(ur.buf)) >= limit {
			return ur.take(int(limit)), ErrLimitReached
		}

		if ur.err != nil {
			// Underlying reader returned error before delim.
			err := ur.err
			ur.err = nil
			return ur.take(len(ur.buf)), err
		}

		// Delim could be split between the previous read and the next one.
		from = max(0, len(ur.buf)-len(delim)+1)

		n, err := ur.r.Read(ur.tmp)
		ur.buf = append(ur.buf, ur.tmp[:n]...)
		ur.err = err
	}
}

func (ur *UntilReader) take(n int) []byte {
	b := bytes.Clone(ur.buf[:n])
	ur.buf = ur.buf[n:]
	if len(ur.buf) == 0 {
		ur.buf = nil
	}
	return b
}
