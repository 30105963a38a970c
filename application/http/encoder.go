package http

import (
	"bufio"
	"io"
	"strconv"

	"webstack/application/util/rule"

	"github.com/pkg/errors"
)

type EncodeOptions struct {
	// UseSoleLF specifies wheter a single LF character should be used as a line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	UseSoleLF bool
}

var DefaultEncodeOptions = EncodeOptions{
	UseSoleLF: false,
}

type MessageEncoder struct {
	bw   *bufio.Writer
	opts EncodeOptions
}

func (me *MessageEncoder) writeLine(line []byte) error {
	if _, err := me.bw.Write(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	term := rule.CRLF
	if me.opts.UseSoleLF {
		term = term[1:]
	}

	if _, err := me.bw.Write(term); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}

func (me *MessageEncoder) encodeHeaders(headers []Field) error {
	for _, field := range headers {
		if err := me.writeLine(field.Text()); err != nil {
			return errors.Wrap(err, "writing field")
		}
	}

	// Write a empty line as all the headers are written.
	if err := me.writeLine(nil); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}

func (me *MessageEncoder) encodeBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	if _, err := me.bw.ReadFrom(body); err != nil {
		return errors.Wrap(err, "writing body")
	}

	if err := me.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing body")
	}

	return nil
}

type RequestEncoder struct{ MessageEncoder }

func NewRequestEncoder(w io.Writer, opts EncodeOptions) *RequestEncoder {
	return &RequestEncoder{
		MessageEncoder{
			bw:   bufio.NewWriter(w),
			opts: opts,
		},
	}
}

func (re *RequestEncoder) Encode(request Request) error {
	if err := re.encodeRequestLine(request.RequestLine); err != nil {
		return errors.Wrap(err, "encoding request line")
	}

	if err := re.encodeHeaders(request.Headers); err != nil {
		return errors.Wrap(err, "encoding headers")
	}

	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing request line & header")
	}

	return re.encodeBody(request.Body)
}

func (re *RequestEncoder) encodeRequestLine(reqLine RequestLine) error {
	line := make([]byte, 0, len(reqLine.Method)+len(reqLine.Target)+10)
	line = append(line, reqLine.Method...)
	line = append(line, rule.SP)
	line = append(line, reqLine.Target...)
	line = append(line, rule.SP)
	line = append(line, reqLine.Version.Text()...)

	if err := re.writeLine(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	return nil
}

type ResponseEncoder struct{ MessageEncoder }

func NewResponseEncoder(w io.Writer, opts EncodeOptions) *ResponseEncoder {
	return &ResponseEncoder{
		MessageEncoder{
			bw:   bufio.NewWriter(w),
			opts: opts,
		},
	}
}

func (re *ResponseEncoder) Encode(response Response) error {
	if err := re.EncodeHead(response.StatusLine, response.Headers); err != nil {
		return err
	}

	return re.encodeBody(response.Body)
}

// EncodeHead writes and flushes the status line and headers,
// leaving the underlying writer ready for the body.
func (re *ResponseEncoder) EncodeHead(statLine StatusLine, headers []Field) error {
	if err := re.encodeStatusLine(statLine); err != nil {
		return errors.Wrap(err, "encoding status line")
	}

	if err := re.encodeHeaders(headers); err != nil {
		return errors.Wrap(err, "encoding headers")
	}

	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing response line & header")
	}

	return nil
}

func (re *ResponseEncoder) encodeStatusLine(statLine StatusLine) error {
	line := append(statLine.Version.Text(), rule.SP)
	line = strconv.AppendInt(line, int64(statLine.StatusCode), 10)
	line = append(line, rule.SP)
	line = append(line, statLine.ReasonPhrase...)

	if err := re.writeLine(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	return nil
}
