package server

import (
	"time"

	"webstack/application/http"
)

type Options struct {
	Encode  http.EncodeOptions
	Decode  http.DecodeOptions
	Timeout TimeoutOptions

	// MaxContentLen rejects requests declaring a larger body with 413.
	// Zero means no limit.
	MaxContentLen int64
}

type TimeoutOptions struct {
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

var DefaultOptions = Options{
	Encode: http.DefaultEncodeOptions,
	Decode: http.DefaultDecodeOptions,
	Timeout: TimeoutOptions{
		IdleTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	},
	MaxContentLen: 32 << 20,
}
