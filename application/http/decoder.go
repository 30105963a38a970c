package http

import (
	"bytes"
	"strconv"

	"webstack/application/util/rule"
	iolib "webstack/lib/io"

	"github.com/pkg/errors"
)

// DecodeOptions bounds and relaxes message head parsing.
type DecodeOptions struct {
	// AllowSoleLF accepts a bare LF as a line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// LenientWhitespace turns every byte of [rule.Whitespaces] into SP
	// and trims the line.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-3
	LenientWhitespace bool

	// MaxFieldLineLength limits a single header line. Zero means no limit.
	MaxFieldLineLength uint

	// MaxFieldLines limits the number of header lines. Zero means no limit.
	MaxFieldLines uint

	// MaxRequestLineLength limits the request line. RFC 9112 suggests at least 8000.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-5
	MaxRequestLineLength uint

	// MaxStatusLineLength limits the status line.
	MaxStatusLineLength uint
}

var DefaultDecodeOptions = DecodeOptions{
	MaxFieldLineLength:   8 << 10,
	MaxFieldLines:        100,
	MaxRequestLineLength: 8 << 10,
	MaxStatusLineLength:  8 << 10,
}

var (
	errLineTooLong       = errors.New("line length exceeds limit")
	ErrMissingCRBeforeLF = errors.New("missing CR before LF")

	ErrFieldLineTooLong   = errors.New("field line length exceeds limit")
	ErrTooManyFieldLines  = errors.New("too many field lines")
	ErrMalformedFieldLine = errors.New("field line is malformed")

	ErrRequestLineTooLong   = errors.New("request line length exceeds limit")
	ErrMalformedRequestLine = errors.New("request line is malformed")

	ErrStatusLineTooLong   = errors.New("status line length exceeds limit")
	ErrMalformedStatusLine = errors.New("status line is malformed")
)

// MessageDecoder reads the parts shared by request and response heads.
type MessageDecoder struct {
	r    *iolib.UntilReader
	opts DecodeOptions
}

func (md *MessageDecoder) readLine(limit uint) ([]byte, error) {
	b, err := md.r.ReadUntilLimit([]byte{rule.LF}, limit)
	switch {
	case errors.Is(err, iolib.ErrLimitReached):
		return nil, errLineTooLong
	case err != nil:
		return nil, err
	}
	b = b[:len(b)-1]

	if !md.opts.AllowSoleLF {
		if !bytes.HasSuffix(b, []byte{rule.CR}) {
			return nil, ErrMissingCRBeforeLF
		}
		b = b[:len(b)-1]
	}

	if md.opts.LenientWhitespace {
		out := make([]byte, len(b))
		for i, c := range b {
			if bytes.IndexByte(rule.Whitespaces, c) >= 0 {
				c = rule.SP
			}
			out[i] = c
		}
		return bytes.Trim(out, " "), nil
	}

	// A bare CR left in the line is read as SP.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
	return bytes.ReplaceAll(b, []byte{rule.CR}, []byte{rule.SP}), nil
}

// readStartLine skips empty lines received before a message.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
func (md *MessageDecoder) readStartLine(limit uint) ([]byte, error) {
	for {
		b, err := md.readLine(limit)
		if err != nil || len(b) > 0 {
			return b, err
		}
	}
}

// decodeStartLine reads a start line and parses it, mapping failures
// to the given sentinels.
func decodeStartLine[T any](md *MessageDecoder, limit uint, tooLong, malformed error, parse func([]byte) (T, error)) (T, error) {
	var zero T

	line, err := md.readStartLine(limit)
	switch {
	case errors.Is(err, errLineTooLong):
		return zero, tooLong
	case err != nil:
		return zero, errors.Wrap(err, "reading line")
	}

	parsed, err := parse(line)
	if err != nil {
		return zero, errors.Wrap(malformed, err.Error())
	}
	return parsed, nil
}

func (md *MessageDecoder) decodeHeaders(headers *[]Field) error {
	fields := make([]Field, 0)
	for {
		line, err := md.readLine(md.opts.MaxFieldLineLength)
		switch {
		case errors.Is(err, errLineTooLong):
			return ErrFieldLineTooLong
		case err != nil:
			return errors.Wrap(err, "reading line")
		}

		if len(line) == 0 {
			*headers = fields
			return nil
		}

		if limit := md.opts.MaxFieldLines; limit > 0 && uint(len(fields)) >= limit {
			return ErrTooManyFieldLines
		}

		f, err := ParseField(line)
		if err != nil {
			return ErrMalformedFieldLine
		}
		fields = append(fields, f)
	}
}

type RequestDecoder struct{ MessageDecoder }

func NewRequestDecoder(r *iolib.UntilReader, opts DecodeOptions) *RequestDecoder {
	return &RequestDecoder{MessageDecoder{r: r, opts: opts}}
}

// Decode reads the request head into r, which must be non-nil.
// r.Body is left at the first byte after the head.
func (rd *RequestDecoder) Decode(r *Request) error {
	line, err := decodeStartLine(&rd.MessageDecoder, rd.opts.MaxRequestLineLength,
		ErrRequestLineTooLong, ErrMalformedRequestLine, parseRequestLine)
	if err != nil {
		return errors.Wrap(err, "parsing request line")
	}
	r.RequestLine = line

	if err := rd.decodeHeaders(&r.Headers); err != nil {
		return errors.Wrap(err, "parsing headers")
	}

	r.Body = rd.r
	return nil
}

func parseRequestLine(line []byte) (RequestLine, error) {
	parts := bytes.Split(line, []byte{rule.SP})
	if len(parts) != 3 {
		return RequestLine{}, errors.Errorf("expected 3 parts, got %d", len(parts))
	}

	method, target := string(parts[0]), string(parts[1])
	switch {
	case !rule.IsValidToken(method):
		return RequestLine{}, errors.Errorf("method %q is not a token", method)
	case target == "":
		return RequestLine{}, errors.New("empty request target")
	}

	ver, err := ParseVersion(parts[2])
	if err != nil {
		return RequestLine{}, errors.Wrap(err, "parsing version")
	}

	return RequestLine{Method: method, Target: target, Version: ver}, nil
}

type ResponseDecoder struct{ MessageDecoder }

func NewResponseDecoder(r *iolib.UntilReader, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{MessageDecoder{r: r, opts: opts}}
}

// Decode reads the response head into r, which must be non-nil.
// r.Body is left at the first byte after the head.
func (rd *ResponseDecoder) Decode(r *Response) error {
	line, err := decodeStartLine(&rd.MessageDecoder, rd.opts.MaxStatusLineLength,
		ErrStatusLineTooLong, ErrMalformedStatusLine, parseStatusLine)
	if err != nil {
		return errors.Wrap(err, "parsing status line")
	}
	r.StatusLine = line

	if err := rd.decodeHeaders(&r.Headers); err != nil {
		return errors.Wrap(err, "parsing headers")
	}

	r.Body = rd.r
	return nil
}

func parseStatusLine(line []byte) (StatusLine, error) {
	parts := bytes.SplitN(line, []byte{rule.SP}, 3)
	if len(parts) < 2 {
		return StatusLine{}, errors.New("missing status code")
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return StatusLine{}, errors.Wrap(err, "parsing version")
	}

	code, err := strconv.Atoi(string(parts[1]))
	if err != nil || len(parts[1]) != 3 || code < 100 {
		return StatusLine{}, errors.Errorf("status code is malformed: %q", parts[1])
	}

	// reason-phrase is optional.
	sl := StatusLine{Version: ver, StatusCode: code}
	if len(parts) == 3 {
		sl.ReasonPhrase = string(parts[2])
	}
	return sl, nil
}
