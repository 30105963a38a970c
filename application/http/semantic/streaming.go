package semantic

import (
	"io"
	"iter"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

const fileBlockSize = 4096

// StreamingResponse yields its body from a chunk source that can be consumed once.
type StreamingResponse struct {
	base
	chunks   iter.Seq2[[]byte, error]
	consumed bool
}

var _ Streaming = (*StreamingResponse)(nil)

func NewStreamingResponse(chunks iter.Seq2[[]byte, error], opts ...ResponseOption) *StreamingResponse {
	return &StreamingResponse{base: newBase(200, opts), chunks: chunks}
}

// StreamingContent returns the remaining chunk source.
// Ranging over it consumes the response.
func (r *StreamingResponse) StreamingContent() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if r.consumed || r.chunks == nil {
			return
		}
		r.consumed = true

		for b, err := range r.chunks {
			if !yield(b, err) || err != nil {
				return
			}
		}
	}
}

// SetStreamingContent replaces the chunk source, for example with a wrapped one.
func (r *StreamingResponse) SetStreamingContent(chunks iter.Seq2[[]byte, error]) {
	r.chunks, r.consumed = chunks, false
}

func (r *StreamingResponse) Chunks() iter.Seq2[[]byte, error] { return r.StreamingContent() }

// FileResponse streams a reader in fixed blocks. Files can be sent zero-copy
// by transports that support it.
type FileResponse struct {
	StreamingResponse
	file *os.File
}

var _ FileStreamer = (*FileResponse)(nil)

// NewFileResponse takes ownership of src and closes it with the response.
// Content-Length is set when src is a regular file.
func NewFileResponse(src io.Reader, opts ...ResponseOption) *FileResponse {
	r := &FileResponse{
		StreamingResponse: StreamingResponse{base: newBase(200, opts), chunks: ReaderChunks(src, fileBlockSize)},
	}

	if c, ok := src.(io.Closer); ok {
		r.RegisterClosable(c)
	}

	if f, ok := src.(*os.File); ok {
		r.file = f
		if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
			r.headers.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		}
	}

	return r
}

// FileToStream returns the underlying file, or nil when the source is not a file.
func (r *FileResponse) FileToStream() *os.File {
	if r.consumed {
		return nil
	}
	return r.file
}

// ReaderChunks yields blocks of at most size bytes read from src.
func ReaderChunks(src io.Reader, size int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !yield(chunk, nil) {
					return
				}
			}

			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, errors.Wrap(err, "reading response source"))
				return
			}
		}
	}
}
