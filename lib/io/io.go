package iolib

import (
	"io"
	"iter"
)

func WriteFull(w io.Writer, buf []byte) (uint, error) {
	total := uint(0)
	for total < uint(len(buf)) {
		n, err := w.Write(buf[total:])
		total += uint(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteChunks writes every chunk yielded by chunks, stopping at the first error.
func WriteChunks(w io.Writer, chunks iter.Seq2[[]byte, error]) (int64, error) {
	var total int64
	for chunk, err := range chunks {
		if err != nil {
			return total, err
		}

		n, err := WriteFull(w, chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
